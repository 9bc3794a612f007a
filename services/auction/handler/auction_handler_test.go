package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"auction-coordinator/internal/auctionerrors"
	model "auction-coordinator/internal/models"
	"auction-coordinator/internal/pipeline"
	"auction-coordinator/services/auction/helpers"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// Test PlaceBidHandler
func TestPlaceBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBidding := NewMockBiddingServiceInterface(ctrl)
	mockLifecycle := NewMockLifecycleServiceInterface(ctrl)
	handler := NewAuctionHandler(mockBidding, mockLifecycle)

	// Initialize Gin in test mode
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions/:auction_id/bids", handler.PlaceBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		expectedHeader string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name: "success_accepted_bid",
			requestBody: helpers.PlaceBidRequest{
				BidderID: "user1",
				Amount:   d(110),
			},
			mockSetup: func() {
				mockBidding.EXPECT().
					PlaceBid(gomock.Any(), pipeline.BidRequest{
						AuctionID: "auction1",
						BidderID:  "user1",
						Amount:    d(110),
					}).
					Return(pipeline.BidResult{
						Accepted: true,
						Bid: model.Bid{
							BidID:      uuid.NewString(),
							AuctionID:  "auction1",
							BidderID:   "user1",
							Amount:     d(110),
							Seq:        1,
							Status:     model.BidAccepted,
							AcceptedAt: now,
						},
						CurrentPrice: d(110),
						EndTime:      now.Add(time.Hour),
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid accepted",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, true, data["accepted"])
				bid := data["bid"].(map[string]any)
				bidID := bid["bid_id"].(string)
				_, parseErr := uuid.Parse(bidID)
				require.NoError(t, parseErr, "BidID should be a valid UUID")
				require.Equal(t, "auction1", bid["auction_id"])
				require.Equal(t, "user1", bid["bidder_id"])
				require.Equal(t, float64(1), bid["seq"])
			},
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "missing_bidder_id",
			requestBody: helpers.PlaceBidRequest{
				BidderID: "",
				Amount:   d(110),
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "service_bid_too_low",
			requestBody: helpers.PlaceBidRequest{
				BidderID: "user1",
				Amount:   d(105),
			},
			mockSetup: func() {
				mockBidding.EXPECT().
					PlaceBid(gomock.Any(), gomock.Any()).
					Return(pipeline.BidResult{
						Accepted:     false,
						ReasonCode:   "InvalidAmount",
						CurrentPrice: d(110),
					}, auctionerrors.ErrInvalidAmount)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "bid does not improve the current price",
			expectedHeader: "110",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, false, data["accepted"])
				require.Equal(t, "InvalidAmount", data["reason_code"])
				require.Equal(t, "110", data["current_price"])
			},
		},
		{
			name: "service_insufficient_funds",
			requestBody: helpers.PlaceBidRequest{
				BidderID: "user1",
				Amount:   d(500),
			},
			mockSetup: func() {
				mockBidding.EXPECT().
					PlaceBid(gomock.Any(), gomock.Any()).
					Return(pipeline.BidResult{
						Accepted:     false,
						ReasonCode:   "InsufficientFunds",
						CurrentPrice: d(110),
					}, auctionerrors.ErrInsufficientFunds)
			},
			expectedStatus: http.StatusPaymentRequired,
			expectedMsg:    "insufficient funds",
		},
		{
			name: "service_contention",
			requestBody: helpers.PlaceBidRequest{
				BidderID: "user1",
				Amount:   d(120),
			},
			mockSetup: func() {
				mockBidding.EXPECT().
					PlaceBid(gomock.Any(), gomock.Any()).
					Return(pipeline.BidResult{
						Accepted:     false,
						ReasonCode:   "Contention",
						CurrentPrice: d(110),
					}, auctionerrors.ErrContention)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedMsg:    "temporarily unable to process bid",
		},
		{
			name: "service_auction_closed",
			requestBody: helpers.PlaceBidRequest{
				BidderID: "user1",
				Amount:   d(120),
			},
			mockSetup: func() {
				mockBidding.EXPECT().
					PlaceBid(gomock.Any(), gomock.Any()).
					Return(pipeline.BidResult{
						Accepted:     false,
						ReasonCode:   "AuctionNotActive",
						CurrentPrice: d(110),
					}, auctionerrors.ErrAuctionNotActive)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "auction is not accepting bids",
		},
		{
			name: "service_generic_error",
			requestBody: helpers.PlaceBidRequest{
				BidderID: "user1",
				Amount:   d(120),
			},
			mockSetup: func() {
				mockBidding.EXPECT().
					PlaceBid(gomock.Any(), gomock.Any()).
					Return(pipeline.BidResult{}, errors.New("store failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
			validateData: func(t *testing.T, data map[string]any) {
				// the reason code is filled in even when the service returned
				// a bare error
				require.Equal(t, "Internal", data["reason_code"])
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var reqBody []byte
			var err error
			switch v := tc.requestBody.(type) {
			case string:
				reqBody = []byte(v)
			default:
				reqBody, err = json.Marshal(v)
				require.NoError(t, err)
			}

			tc.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/auctions/auction1/bids", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			var resp map[string]any
			err = json.Unmarshal(w.Body.Bytes(), &resp)
			require.NoError(t, err)

			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.expectedHeader != "" {
				// assert on the headers a client receives, not the live
				// recorder map, which also shows headers set after the write
				require.Equal(t, tc.expectedHeader, w.Result().Header.Get("X-Current-Price"))
			}

			if tc.validateData != nil {
				data := resp["data"].(map[string]any)
				tc.validateData(t, data)
			}
		})
	}
}

// Test CreateAuctionHandler
func TestCreateAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBidding := NewMockBiddingServiceInterface(ctrl)
	mockLifecycle := NewMockLifecycleServiceInterface(ctrl)
	handler := NewAuctionHandler(mockBidding, mockLifecycle)

	// Initialize Gin in test mode
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions", handler.CreateAuctionHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name: "success_forward_auction",
			requestBody: helpers.CreateAuctionRequest{
				SellerID:      "seller1",
				Kind:          "forward",
				StartingPrice: d(100),
				EndTime:       now.Add(time.Hour),
			},
			mockSetup: func() {
				mockLifecycle.EXPECT().
					Register(gomock.Any(), gomock.Any()).
					Return(nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "auction created successfully",
		},
		{
			name: "success_reverse_with_reserve",
			requestBody: helpers.CreateAuctionRequest{
				SellerID:      "seller1",
				Kind:          "reverse",
				StartingPrice: d(500),
				ReservePrice:  d(350),
				EndTime:       now.Add(2 * time.Hour),
			},
			mockSetup: func() {
				mockLifecycle.EXPECT().
					Register(gomock.Any(), gomock.Any()).
					Return(nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "auction created successfully",
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "unknown_kind",
			requestBody: helpers.CreateAuctionRequest{
				SellerID:      "seller1",
				Kind:          "dutch",
				StartingPrice: d(100),
				EndTime:       now.Add(time.Hour),
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "missing_end_time",
			requestBody: helpers.CreateAuctionRequest{
				SellerID:      "seller1",
				Kind:          "forward",
				StartingPrice: d(100),
			},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name: "service_error",
			requestBody: helpers.CreateAuctionRequest{
				SellerID:      "seller1",
				Kind:          "forward",
				StartingPrice: d(100),
				EndTime:       now.Add(time.Hour),
			},
			mockSetup: func() {
				mockLifecycle.EXPECT().
					Register(gomock.Any(), gomock.Any()).
					Return(errors.New("store failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var reqBody []byte
			var err error
			switch v := tc.requestBody.(type) {
			case string:
				reqBody = []byte(v)
			default:
				reqBody, err = json.Marshal(v)
				require.NoError(t, err)
			}

			tc.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/auctions", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			var resp map[string]any
			err = json.Unmarshal(w.Body.Bytes(), &resp)
			require.NoError(t, err)

			require.Contains(t, resp["message"], tc.expectedMsg)

			if w.Code == http.StatusCreated {
				data := resp["data"].(map[string]any)
				require.NotEmpty(t, data["auction_id"])
			}
		})
	}
}

// Test WithdrawBidHandler
func TestWithdrawBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBidding := NewMockBiddingServiceInterface(ctrl)
	mockLifecycle := NewMockLifecycleServiceInterface(ctrl)
	handler := NewAuctionHandler(mockBidding, mockLifecycle)

	// Initialize Gin in test mode
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions/:auction_id/bids/:bid_id/withdraw", handler.WithdrawBidHandler)

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:        "success_withdrawal",
			requestBody: helpers.WithdrawBidRequest{BidderID: "user1"},
			mockSetup: func() {
				mockBidding.EXPECT().
					WithdrawBid(gomock.Any(), "auction1", "bid1", "user1").
					Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bid withdrawn successfully",
		},
		{
			name:           "missing_bidder_id",
			requestBody:    helpers.WithdrawBidRequest{},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:        "not_bid_owner",
			requestBody: helpers.WithdrawBidRequest{BidderID: "user2"},
			mockSetup: func() {
				mockBidding.EXPECT().
					WithdrawBid(gomock.Any(), "auction1", "bid1", "user2").
					Return(auctionerrors.ErrNotBidOwner)
			},
			expectedStatus: http.StatusForbidden,
			expectedMsg:    "bid belongs to another bidder",
		},
		{
			name:        "bid_not_found",
			requestBody: helpers.WithdrawBidRequest{BidderID: "user1"},
			mockSetup: func() {
				mockBidding.EXPECT().
					WithdrawBid(gomock.Any(), "auction1", "bid1", "user1").
					Return(auctionerrors.ErrBidNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "bid not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			reqBody, err := json.Marshal(tc.requestBody)
			require.NoError(t, err)

			tc.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/auctions/auction1/bids/bid1/withdraw", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			var resp map[string]any
			err = json.Unmarshal(w.Body.Bytes(), &resp)
			require.NoError(t, err)
			require.Contains(t, resp["message"], tc.expectedMsg)
		})
	}
}

// Test GetSnapshotHandler
func TestGetSnapshotHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBidding := NewMockBiddingServiceInterface(ctrl)
	mockLifecycle := NewMockLifecycleServiceInterface(ctrl)
	handler := NewAuctionHandler(mockBidding, mockLifecycle)

	// Initialize Gin in test mode
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id", handler.GetSnapshotHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:      "success_snapshot",
			auctionID: "auction1",
			mockSetup: func() {
				mockBidding.EXPECT().
					Snapshot(gomock.Any(), "auction1").
					Return(model.Auction{
						AuctionID:     "auction1",
						SellerID:      "seller1",
						Kind:          model.KindForward,
						StartingPrice: d(100),
						CurrentPrice:  d(120),
						LeaderID:      "user2",
						Status:        model.StatusActive,
						StartTime:     now,
						EndTime:       now.Add(time.Hour),
						BidSeq:        2,
						BidCount:      2,
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "snapshot retrieved successfully",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "auction1", data["auction_id"])
				require.Equal(t, "user2", data["leader_id"])
				require.Equal(t, "active", data["status"])
				require.Equal(t, float64(2), data["bid_seq"])
			},
		},
		{
			name:      "auction_not_found",
			auctionID: "missing",
			mockSetup: func() {
				mockBidding.EXPECT().
					Snapshot(gomock.Any(), "missing").
					Return(model.Auction{}, auctionerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			req := httptest.NewRequest(http.MethodGet, "/auctions/"+tc.auctionID, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			var resp map[string]any
			err := json.Unmarshal(w.Body.Bytes(), &resp)
			require.NoError(t, err)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil && w.Code == http.StatusOK {
				data := resp["data"].(map[string]any)
				tc.validateData(t, data)
			}
		})
	}
}

// Test GetBidsByAuctionHandler
func TestGetBidsByAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBidding := NewMockBiddingServiceInterface(ctrl)
	mockLifecycle := NewMockLifecycleServiceInterface(ctrl)
	handler := NewAuctionHandler(mockBidding, mockLifecycle)

	// Initialize Gin in test mode
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id/bids", handler.GetBidsByAuctionHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		expectedLen    int
	}{
		{
			name:      "success_multiple_bids",
			auctionID: "auction1",
			mockSetup: func() {
				mockBidding.EXPECT().
					BidsForAuction(gomock.Any(), "auction1").
					Return([]model.Bid{
						{BidID: uuid.NewString(), AuctionID: "auction1", BidderID: "user1", Amount: d(110), Seq: 1, Status: model.BidAccepted, AcceptedAt: now},
						{BidID: uuid.NewString(), AuctionID: "auction1", BidderID: "user2", Amount: d(120), Seq: 2, Status: model.BidAccepted, AcceptedAt: now},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			expectedLen:    2,
		},
		{
			name:      "service_nil_slice",
			auctionID: "auction2",
			mockSetup: func() {
				mockBidding.EXPECT().
					BidsForAuction(gomock.Any(), "auction2").
					Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			expectedLen:    0,
		},
		{
			name:      "service_generic_error",
			auctionID: "auction3",
			mockSetup: func() {
				mockBidding.EXPECT().
					BidsForAuction(gomock.Any(), "auction3").
					Return(nil, errors.New("store failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/auctions/%s/bids", tc.auctionID), nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			var resp map[string]any
			err := json.Unmarshal(w.Body.Bytes(), &resp)
			require.NoError(t, err)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if w.Code == http.StatusOK {
				data := resp["data"].([]any)
				require.Len(t, data, tc.expectedLen)
			}
		})
	}
}

// Test CancelAuctionHandler
func TestCancelAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBidding := NewMockBiddingServiceInterface(ctrl)
	mockLifecycle := NewMockLifecycleServiceInterface(ctrl)
	handler := NewAuctionHandler(mockBidding, mockLifecycle)

	// Initialize Gin in test mode
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions/:auction_id/cancel", handler.CancelAuctionHandler)

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:      "success_cancel",
			auctionID: "auction1",
			mockSetup: func() {
				mockLifecycle.EXPECT().
					Cancel(gomock.Any(), "auction1").
					Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "auction cancelled",
		},
		{
			name:      "already_closed",
			auctionID: "auction2",
			mockSetup: func() {
				mockLifecycle.EXPECT().
					Cancel(gomock.Any(), "auction2").
					Return(auctionerrors.ErrAuctionNotActive)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "auction is not accepting bids",
		},
		{
			name:      "auction_not_found",
			auctionID: "missing",
			mockSetup: func() {
				mockLifecycle.EXPECT().
					Cancel(gomock.Any(), "missing").
					Return(auctionerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/auctions/"+tc.auctionID+"/cancel", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			var resp map[string]any
			err := json.Unmarshal(w.Body.Bytes(), &resp)
			require.NoError(t, err)
			require.Contains(t, resp["message"], tc.expectedMsg)
		})
	}
}
