package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"auction-coordinator/internal/broadcast"
	"auction-coordinator/services/auction/helpers"
	"auction-coordinator/utils"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API layer in front of the coordinator owns origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler streams auction events and user notifications over websockets.
type WSHandler struct {
	broker  *broadcast.Broker
	bidding BiddingServiceInterface
}

func NewWSHandler(broker *broadcast.Broker, bidding BiddingServiceInterface) *WSHandler {
	return &WSHandler{broker: broker, bidding: bidding}
}

// SubscribeAuctionHandler handles GET /auctions/:auction_id/ws. The first
// frame is the full snapshot so a reconnecting client reconciles before the
// delta stream begins.
func (h *WSHandler) SubscribeAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")

	snap, err := h.bidding.Snapshot(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, err, message)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("SubscribeAuctionHandler: upgrade failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}

	sub := h.broker.Subscribe(auctionID)
	defer sub.Unsubscribe()

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(gin.H{"type": "snapshot", "auction": snap}); err != nil {
		conn.Close()
		return
	}

	done := make(chan struct{})
	go readUntilClose(conn, done)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	defer conn.Close()

	for {
		select {
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// SubscribeUserHandler handles GET /users/:user_id/ws, the per-user
// notification channel (outbid, won, refunded).
func (h *WSHandler) SubscribeUserHandler(c *gin.Context) {
	userID := c.Param("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("SubscribeUserHandler: upgrade failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	sub := h.broker.SubscribeUser(userID)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go readUntilClose(conn, done)

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	defer conn.Close()

	for {
		select {
		case n, ok := <-sub.C:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readUntilClose drains client frames so pongs and close frames are
// processed, signalling done when the peer goes away.
func readUntilClose(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
