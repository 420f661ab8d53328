// Recommendation HTTP handlers.
//
// This file exposes the recent-recommendations feed:
//   - GET /recommendations  (latest derived advice across scans, ETag support)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
	"github.com/healthscan/go-healthscan-backend/internal/repo"
	"github.com/healthscan/go-healthscan-backend/internal/services"
	"github.com/healthscan/go-healthscan-backend/internal/utils"
)

// defaultRecommendLimit caps the feed when the client sends no limit.
const defaultRecommendLimit = 10

// RecommendationsResponse wraps the recent-advice feed.
type RecommendationsResponse struct {
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// GetRecommendations godoc
// @ID          getRecommendations
// @Summary     Recent recommendations
// @Description Returns the latest derived advice rows across all scans, newest first.
// @Tags        Recommendations
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       limit          query   int     false "Maximum rows"  minimum(1) maximum(100) default(10)
//
// @Success     200  {object} handlers.RecommendationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /recommendations [get]
func (h *Handlers) GetRecommendations(c *gin.Context) {
	ctx := c.Request.Context()

	fallback := h.FeedLimit
	if fallback < 1 {
		fallback = defaultRecommendLimit
	}
	limit := utils.AtoiDefault(c.Query("limit"), fallback)
	if limit < 1 {
		limit = fallback
	}
	if limit > 100 {
		limit = 100
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.scanSvc.(*services.ScanService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.RecommendationsStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"recommendations:%d:%d:%d"`, count, ts, limit)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, err := h.scanSvc.RecentRecommendations(ctx, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Recommendation{}
	}
	ok(c, http.StatusOK, RecommendationsResponse{Recommendations: items})
}
