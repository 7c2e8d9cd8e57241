package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// insightView is the dashboard-facing shape of an insight flag. The stored
// severity is exposed as "type" and the message as "description".
type insightView struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Metric      string `json:"metric"`
}

func (s *Server) ListInsights(c *gin.Context) {
	flags, err := s.insightSvc.ListActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]insightView, 0, len(flags))
	for _, flag := range flags {
		views = append(views, insightView{
			ID:          flag.ID.String(),
			Type:        string(flag.Severity),
			Category:    flag.Category,
			Title:       flag.Title,
			Description: flag.Message,
			Metric:      flag.MetricValue,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) ComputeInsights(c *gin.Context) {
	resp, err := s.insightSvc.Compute(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
