package server

import (
	"github.com/gin-gonic/gin"

	"auction-coordinator/internal/broadcast"
	handler "auction-coordinator/services/auction/handler"
)

// SetupRouter configures all Gin routes for the coordinator
func SetupRouter(bidding handler.BiddingServiceInterface, lifecycle handler.LifecycleServiceInterface, broker *broadcast.Broker) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	auctionHandler := handler.NewAuctionHandler(bidding, lifecycle)
	wsHandler := handler.NewWSHandler(broker, bidding)

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetSnapshotHandler)
		auctions.POST("/:auction_id/bids", auctionHandler.PlaceBidHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetBidsByAuctionHandler)
		auctions.POST("/:auction_id/bids/:bid_id/withdraw", auctionHandler.WithdrawBidHandler)
		auctions.POST("/:auction_id/cancel", auctionHandler.CancelAuctionHandler)
		auctions.GET("/:auction_id/ws", wsHandler.SubscribeAuctionHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/bids", auctionHandler.GetBidsByUserHandler)
		users.GET("/:user_id/ws", wsHandler.SubscribeUserHandler)
	}

	return router
}
