package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sales-credit-api/internal/dto"
	"github.com/noah-isme/sales-credit-api/internal/middleware"
	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/internal/service"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
	"github.com/noah-isme/sales-credit-api/pkg/response"
)

type unblockRequestService interface {
	List(ctx context.Context, meetingID int64) ([]models.UnblockRequest, bool, error)
	Decide(ctx context.Context, cmd service.SingleDecisionCommand) (*service.SingleDecisionResult, error)
}

// UnblockRequestHandler exposes request listings and single-row decisions.
type UnblockRequestHandler struct {
	service unblockRequestService
}

// NewUnblockRequestHandler constructs the handler.
func NewUnblockRequestHandler(service unblockRequestService) *UnblockRequestHandler {
	return &UnblockRequestHandler{service: service}
}

// List godoc
// @Summary List unblock requests of a meeting
// @Tags UnblockRequests
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} map[string]interface{}
// @Router /meetings/{id}/unblock-requests [get]
func (h *UnblockRequestHandler) List(c *gin.Context) {
	meetingID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	items, hit, err := h.service.List(c.Request.Context(), meetingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, gin.H{"items": items}, middleware.ExtractMeta(c))
}

// Decide godoc
// @Summary Approve, reject or hold one unblock request
// @Tags UnblockRequests
// @Accept json
// @Produce json
// @Param id path int true "Unblock request ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} response.ErrorEnvelope
// @Router /unblock-requests/{id}/decision [post]
func (h *UnblockRequestHandler) Decide(c *gin.Context) {
	requestID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.DecisionRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	approverID := strings.TrimSpace(req.ApproverID)
	if approverID == "" {
		approverID = claims.UserID
	}
	result, err := h.service.Decide(c.Request.Context(), service.SingleDecisionCommand{
		RequestID:  requestID,
		Decision:   service.SingleDecision(req.Decision),
		ApproverID: approverID,
		Comment:    req.Comment,
		ActorRole:  claims.Role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{
		"requestId": result.RequestID,
		"meetingId": result.MeetingID,
		"decision":  result.Decision,
	}
	if out := result.Outcome; out != nil {
		payload["approverLevel"] = out.Level
		payload["approvalId"] = out.ApprovalID
		payload["approverRole"] = out.Role
		payload["decisionResult"] = out.Result
		payload["message"] = out.Message
		payload["warnings"] = out.Warnings
	} else {
		payload["requestStatus"] = models.RequestStatusHold
		payload["warnings"] = []service.DecisionWarning{}
	}
	response.OK(c, payload)
}
