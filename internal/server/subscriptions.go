package server

import (
	"net/http"

	reconciliationdomain "github.com/Arnzyy/AIFANS-sub001/internal/reconciliation/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleSubscriptionStatus(c *gin.Context) {
	fanID, ok := parseID(c, c.Query("fan_id"))
	if !ok {
		return
	}
	creatorID, ok := parseID(c, c.Query("creator_id"))
	if !ok {
		return
	}

	sub, err := s.subscription.FindByFanCreator(c.Request.Context(), fanID, creatorID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     sub.Status,
		"auto_renew": sub.AutoRenew,
		"expires_at": sub.ExpiresAt,
	})
}

func (s *Server) handleResolveCase(c *gin.Context) {
	caseID, ok := parseID(c, c.Param("case_id"))
	if !ok {
		return
	}

	if err := s.reconciliation.Resolve(c.Request.Context(), caseID); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (s *Server) handleListCases(c *gin.Context) {
	status := reconciliationdomain.ReviewCaseStatus(c.Query("status"))

	cases, err := s.reconciliation.List(c.Request.Context(), status)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}
