package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type confirmPayoutRequest struct {
	ProviderRef string `json:"provider_ref"`
}

type failPayoutRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRequestPayout(c *gin.Context) {
	creatorID, ok := parseID(c, c.Param("creator_id"))
	if !ok {
		return
	}

	payout, err := s.payout.RequestPayout(c.Request.Context(), creatorID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, payout)
}

func (s *Server) handleGetPayout(c *gin.Context) {
	payoutID, ok := parseID(c, c.Param("payout_id"))
	if !ok {
		return
	}

	payout, err := s.payout.Find(c.Request.Context(), payoutID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

func (s *Server) handleConfirmPayout(c *gin.Context) {
	payoutID, ok := parseID(c, c.Param("payout_id"))
	if !ok {
		return
	}
	var req confirmPayoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := s.payout.ConfirmPayout(c.Request.Context(), payoutID, req.ProviderRef); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (s *Server) handleFailPayout(c *gin.Context) {
	payoutID, ok := parseID(c, c.Param("payout_id"))
	if !ok {
		return
	}
	var req failPayoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := s.payout.FailPayout(c.Request.Context(), payoutID, req.Reason); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "failed"})
}
