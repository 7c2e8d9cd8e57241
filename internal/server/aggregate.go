package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	aggregatedomain "github.com/marginlens/marginlens/internal/aggregate/domain"
)

func (s *Server) MaterializeAggregates(c *gin.Context) {
	date, err := parseDateOnly(c.Query("date"))
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}

	resp, err := s.aggregateSvc.Materialize(c.Request.Context(), aggregatedomain.MaterializeRequest{
		Date: date,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
