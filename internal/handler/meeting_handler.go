package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sales-credit-api/internal/dto"
	"github.com/noah-isme/sales-credit-api/internal/middleware"
	"github.com/noah-isme/sales-credit-api/internal/models"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
	"github.com/noah-isme/sales-credit-api/pkg/response"
)

type meetingService interface {
	List(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, bool, error)
	Stats(ctx context.Context, id int64) (*models.MeetingStats, bool, error)
}

// MeetingHandler exposes meeting listings and stats.
type MeetingHandler struct {
	service meetingService
}

// NewMeetingHandler constructs the handler.
func NewMeetingHandler(service meetingService) *MeetingHandler {
	return &MeetingHandler{service: service}
}

// List godoc
// @Summary List credit meetings
// @Tags Meetings
// @Produce json
// @Param status query string false "PLANNED, PREPARING, ON_GOING or FINISHED"
// @Param from query string false "Earliest meeting date (YYYY-MM-DD)"
// @Param to query string false "Latest meeting date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	var q dto.MeetingListQuery
	if err := bindQuery(c, &q); err != nil {
		response.Error(c, err)
		return
	}
	filter := models.MeetingFilter{Status: models.MeetingStatus(q.Status)}
	if q.From != "" {
		from, _ := time.Parse("2006-01-02", q.From)
		filter.From = &from
	}
	if q.To != "" {
		to, _ := time.Parse("2006-01-02", q.To)
		filter.To = &to
	}

	meetings, hit, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, gin.H{"meetings": meetings, "total": len(meetings)}, middleware.ExtractMeta(c))
}

// Stats godoc
// @Summary Meeting dashboard statistics and approval status
// @Tags Meetings
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} response.ErrorEnvelope
// @Router /meetings/{id}/stats [get]
func (h *MeetingHandler) Stats(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, hit, err := h.service.Stats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if stats == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, gin.H{
		"meetingId":       stats.MeetingID,
		"meetingStatus":   stats.MeetingStatus,
		"totalCount":      stats.TotalCount,
		"totalAmount":     stats.TotalAmount,
		"statusBreakdown": stats.StatusBreakdown,
		"topRequesters":   stats.TopRequesters,
		"approvalStatus":  stats.ApprovalStatus,
	}, middleware.ExtractMeta(c))
}
