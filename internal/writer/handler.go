package writer

import (
	"log/slog"
	"net/http"
	"time"

	httperr "github.com/wikimesh/centralindex/internal/core/errors"
	"github.com/wikimesh/centralindex/internal/identity"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the host-facing record endpoint.
func (w *Writer) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/record", w.RecordHandler)
}

type recordRequest struct {
	Performer struct {
		Name    string   `json:"name" binding:"required"`
		LocalID int64    `json:"local_id"`
		IsTemp  bool     `json:"is_temp"`
		Groups  []string `json:"groups"`
	} `json:"performer" binding:"required"`
	IP                  string    `json:"ip"`
	SiteID              string    `json:"site_id" binding:"required"`
	Timestamp           time.Time `json:"timestamp"`
	HasQualifyingAction bool      `json:"has_qualifying_action"`
}

// RecordHandler handles HTTP POST requests observing a trackable action.
// The index write is best-effort: a well-formed request is always accepted,
// whatever happens to the deferred mutation afterwards.
func (w *Writer) RecordHandler(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("[Writer] Invalid record request body", "error", err)
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid record request body",
			Details:   err.Error(),
		})
		return
	}

	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	w.Record(c.Request.Context(), Event{
		Performer: identity.UserRef{
			Name:    req.Performer.Name,
			LocalID: req.Performer.LocalID,
			IsTemp:  req.Performer.IsTemp,
			Groups:  req.Performer.Groups,
		},
		IP:                  req.IP,
		SiteID:              req.SiteID,
		Timestamp:           req.Timestamp,
		HasQualifyingAction: req.HasQualifyingAction,
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
