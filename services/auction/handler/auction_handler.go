package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"auction-coordinator/internal/auctionerrors"
	model "auction-coordinator/internal/models"
	"auction-coordinator/internal/pipeline"
	"auction-coordinator/services/auction/helpers"
	"auction-coordinator/utils"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, req pipeline.BidRequest) (pipeline.BidResult, error)
	WithdrawBid(ctx context.Context, auctionID, bidID, bidderID string) error
	Snapshot(ctx context.Context, auctionID string) (model.Auction, error)
	BidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	BidsForBidder(ctx context.Context, bidderID string) ([]model.Bid, error)
}

type LifecycleServiceInterface interface {
	Register(ctx context.Context, auction model.Auction) error
	Cancel(ctx context.Context, auctionID string) error
}

type AuctionHandler struct {
	bidding   BiddingServiceInterface
	lifecycle LifecycleServiceInterface
}

func NewAuctionHandler(bidding BiddingServiceInterface, lifecycle LifecycleServiceInterface) *AuctionHandler {
	return &AuctionHandler{bidding: bidding, lifecycle: lifecycle}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	start := req.StartTime
	if start.IsZero() {
		start = time.Now().UTC()
	}
	auction := model.Auction{
		AuctionID:     utils.GenerateID(),
		SellerID:      req.SellerID,
		Kind:          model.AuctionKind(req.Kind),
		StartingPrice: req.StartingPrice,
		ReservePrice:  req.ReservePrice,
		BuyNowPrice:   req.BuyNowPrice,
		StartTime:     start.UTC(),
		EndTime:       req.EndTime.UTC(),
	}

	if err := h.lifecycle.Register(c.Request.Context(), auction); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Error("CreateAuctionHandler: failed to register auction", map[string]any{
			"seller_id": req.SellerID,
			"error":     err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, gin.H{"auction_id": auction.AuctionID}, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  auction.SellerID,
		"kind":       string(auction.Kind),
	})
}

// PlaceBidHandler handles POST /auctions/:auction_id/bids
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	result, err := h.bidding.PlaceBid(c.Request.Context(), pipeline.BidRequest{
		AuctionID:  auctionID,
		BidderID:   req.BidderID,
		Amount:     req.Amount,
		AutoBidMax: req.AutoBidMax,
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		rejection := toBidResult(result)
		if rejection.ReasonCode == "" {
			rejection.ReasonCode = auctionerrors.ReasonCode(err)
		}
		// The header must go on before the body write, and the rejection body
		// repeats the reason code and authoritative price.
		c.Header("X-Current-Price", result.CurrentPrice.String())
		utils.JSONErrorWithData(c, status, fmt.Errorf("%s: %w", message, err), message, rejection)
		utils.Warn("PlaceBidHandler: bid rejected", map[string]any{
			"auction_id": auctionID,
			"bidder_id":  req.BidderID,
			"amount":     req.Amount.String(),
			"reason":     rejection.ReasonCode,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, toBidResult(result), "bid accepted")
	helpers.LogSuccess("PlaceBidHandler", "bid accepted", map[string]any{
		"auction_id": auctionID,
		"bid_id":     result.Bid.BidID,
		"bidder_id":  req.BidderID,
		"amount":     req.Amount.String(),
		"extended":   result.Extended,
		"buy_now":    result.BuyNow,
	})
}

// WithdrawBidHandler handles POST /auctions/:auction_id/bids/:bid_id/withdraw
func (h *AuctionHandler) WithdrawBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bidID := c.Param("bid_id")
	var req helpers.WithdrawBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "WithdrawBidHandler", err)
		return
	}

	if err := h.bidding.WithdrawBid(c.Request.Context(), auctionID, bidID, req.BidderID); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("WithdrawBidHandler: withdrawal rejected", map[string]any{
			"auction_id": auctionID,
			"bid_id":     bidID,
			"error":      err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{"bid_id": bidID}, "bid withdrawn successfully")
	helpers.LogSuccess("WithdrawBidHandler", "bid withdrawn successfully", map[string]any{
		"auction_id": auctionID,
		"bid_id":     bidID,
	})
}

// GetSnapshotHandler handles GET /auctions/:auction_id
func (h *AuctionHandler) GetSnapshotHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	snap, err := h.bidding.Snapshot(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetSnapshotHandler: snapshot error", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, snap, "snapshot retrieved successfully")
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.bidding.BidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByAuctionHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}
	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
}

// GetBidsByUserHandler handles GET /users/:user_id/bids
func (h *AuctionHandler) GetBidsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	bids, err := h.bidding.BidsForBidder(c.Request.Context(), userID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsByUserHandler: error retrieving bids", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}
	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
}

// CancelAuctionHandler handles POST /auctions/:auction_id/cancel
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	if err := h.lifecycle.Cancel(c.Request.Context(), auctionID); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CancelAuctionHandler: cancel rejected", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{"auction_id": auctionID}, "auction cancelled")
	helpers.LogSuccess("CancelAuctionHandler", "auction cancelled", map[string]any{"auction_id": auctionID})
}

func toBidResult(result pipeline.BidResult) helpers.BidResultResponse {
	resp := helpers.BidResultResponse{
		Accepted:     result.Accepted,
		ReasonCode:   result.ReasonCode,
		CurrentPrice: result.CurrentPrice,
		EndTime:      result.EndTime.UTC().Format(time.RFC3339),
		Extended:     result.Extended,
		BuyNow:       result.BuyNow,
	}
	if result.Accepted {
		resp.Bid = &helpers.BidResponse{
			BidID:      result.Bid.BidID,
			AuctionID:  result.Bid.AuctionID,
			BidderID:   result.Bid.BidderID,
			Amount:     result.Bid.Amount,
			Seq:        result.Bid.Seq,
			AutoBid:    result.Bid.AutoBid,
			AcceptedAt: result.Bid.AcceptedAt.UTC().Format(time.RFC3339),
		}
	}
	return resp
}
