package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"auction-coordinator/internal/broadcast"
	"auction-coordinator/internal/clock"
	"auction-coordinator/internal/config"
	"auction-coordinator/internal/ledger"
	"auction-coordinator/internal/pipeline"
	"auction-coordinator/internal/scheduler"
	"auction-coordinator/internal/server"
	"auction-coordinator/internal/statestore"
)

// TestEnv wires the full coordinator against in-memory infrastructure and a
// manual clock so tests can drive lifecycle deadlines deterministically.
type TestEnv struct {
	Router    *gin.Engine
	Clock     *clock.Manual
	Ledger    *ledger.MemoryLedger
	Store     *statestore.MemoryStore
	Scheduler *scheduler.Scheduler
}

// SetupTestEnv initializes the router with in-memory components for
// integration testing.
func SetupTestEnv() *TestEnv {
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := statestore.NewMemoryStore()
	gateway := ledger.NewMemoryLedger()
	broker := broadcast.NewBroker()

	bidding := pipeline.New(store, gateway, broker, clk, cfg)
	lifecycle := scheduler.New(store, gateway, broker, clk, cfg)
	bidding.SetCloser(lifecycle)
	lifecycle.SetGate(bidding)

	return &TestEnv{
		Router:    server.SetupRouter(bidding, lifecycle, broker),
		Clock:     clk,
		Ledger:    gateway,
		Store:     store,
		Scheduler: lifecycle,
	}
}

// Deposit credits a bidder's available balance.
func (env *TestEnv) Deposit(userID string, amount int64) {
	env.Ledger.Deposit(userID, decimal.NewFromInt(amount))
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if w.Code == 201 {
			resp = resp["data"].(map[string]any)
		}
	}

	return resp, w
}
