package lookup

import (
	"net/http"
	"strconv"
	"time"

	httperr "github.com/wikimesh/centralindex/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the read API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/active-users", s.HandleActiveUsers)
	r.GET("/v1/users/:global_id/sites", s.HandleUserSites)
}

// HandleActiveUsers handles GET /v1/active-users?since=<RFC3339>.
// Optional batch_size tunes the underlying scan page size.
func (s *Service) HandleActiveUsers(c *gin.Context) {
	var query struct {
		Since     time.Time `form:"since" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
		BatchSize int       `form:"batch_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	ids, err := s.UsersActiveSince(c.Request.Context(), query.Since, query.BatchSize).Collect()
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to scan active users",
			Details:   err.Error(),
		})
		return
	}
	if ids == nil {
		ids = []int64{}
	}

	c.JSON(http.StatusOK, gin.H{"since": query.Since, "user_ids": ids})
}

// HandleUserSites handles GET /v1/users/:global_id/sites for users whose
// global id is already known to the caller.
func (s *Service) HandleUserSites(c *gin.Context) {
	globalID, err := strconv.ParseInt(c.Param("global_id"), 10, 64)
	if err != nil || globalID <= 0 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid global user id",
		})
		return
	}

	keys, err := s.store.SiteKeysForUser(c.Request.Context(), globalID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to read user activity",
			Details:   err.Error(),
		})
		return
	}

	sites, err := s.siteNames(c.Request.Context(), keys)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to resolve site names",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"global_user_id": globalID, "sites": sites})
}
