package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
)

type spendLogsQuery struct {
	UserID     string `form:"user_id"`
	ResponseID string `form:"response_id"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	Skip       int    `form:"skip,default=0"`
	Limit      int    `form:"limit,default=100"`
}

// ListSpendLogs pages through recorded usage events. Non-admins only ever see
// their own rows, whatever filters they pass.
func (s *Server) ListSpendLogs(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		AbortWithError(c, principaldomain.ErrUnauthenticated)
		return
	}

	var query spendLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	startDate, err := parseTimeParam(query.StartDate)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	endDate, err := parseTimeParam(query.EndDate)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := ledgerdomain.ListRequest{
		UserID:     query.UserID,
		ResponseID: query.ResponseID,
		StartDate:  startDate,
		EndDate:    endDate,
		Skip:       query.Skip,
		Limit:      query.Limit,
	}
	if !principal.IsAdmin {
		req.UserID = principal.ID
	}

	resp, err := s.ledgerSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
