package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/marginlens/marginlens/internal/dashboard/domain"
)

const defaultDashboardWindowDays = 30

func (s *Server) dashboardRange(c *gin.Context) (time.Time, time.Time, bool) {
	var query struct {
		Start string `form:"start"`
		End   string `form:"end"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return time.Time{}, time.Time{}, false
	}

	now := s.clock.Now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -defaultDashboardWindowDays)

	if query.Start != "" {
		parsed, err := parseDateOnly(query.Start)
		if err != nil {
			AbortWithError(c, newValidationError("start", "invalid_start", "start must be YYYY-MM-DD"))
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if query.End != "" {
		parsed, err := parseDateOnly(query.End)
		if err != nil {
			AbortWithError(c, newValidationError("end", "invalid_end", "end must be YYYY-MM-DD"))
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}

	return start, end, true
}

func (s *Server) GetDashboard(c *gin.Context) {
	start, end, ok := s.dashboardRange(c)
	if !ok {
		return
	}

	resp, err := s.dashboardSvc.GetDashboardData(c.Request.Context(), dashboarddomain.DashboardRequest{
		Start: start,
		End:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTimeSeries(c *gin.Context) {
	start, end, ok := s.dashboardRange(c)
	if !ok {
		return
	}

	resp, err := s.dashboardSvc.GetDashboardData(c.Request.Context(), dashboarddomain.DashboardRequest{
		Start: start,
		End:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.TimeSeries})
}

func (s *Server) GetFeatureMetrics(c *gin.Context) {
	start, end, ok := s.dashboardRange(c)
	if !ok {
		return
	}

	resp, err := s.dashboardSvc.GetDashboardData(c.Request.Context(), dashboarddomain.DashboardRequest{
		Start: start,
		End:   end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.FeatureMetrics})
}
