package server

import (
	"net/http"
	"strconv"

	ledgerdomain "github.com/Arnzyy/AIFANS-sub001/internal/ledger/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleBalance(c *gin.Context) {
	creatorID, ok := parseID(c, c.Param("creator_id"))
	if !ok {
		return
	}

	balance, err := s.ledger.Balance(c.Request.Context(), creatorID)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func parseID(c *gin.Context, raw string) (snowflake.ID, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		abort(c, ledgerdomain.ErrInvalidCreator)
		return 0, false
	}
	return snowflake.ID(id), true
}
