package handler

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sales-credit-api/internal/dto"
	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/internal/service"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
	"github.com/noah-isme/sales-credit-api/pkg/response"
)

type batchDecider interface {
	Decide(ctx context.Context, cmd service.DecisionCommand) (*service.DecisionOutcome, error)
}

type approvalHistoryService interface {
	List(ctx context.Context, meetingID int64) ([]models.ApprovalHistoryEntry, error)
	Export(ctx context.Context, meetingID int64, format string) (*service.HistoryExport, error)
}

// ApprovalHandler exposes batch approval and the approval audit log.
type ApprovalHandler struct {
	decisions batchDecider
	history   approvalHistoryService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(decisions batchDecider, history approvalHistoryService) *ApprovalHandler {
	return &ApprovalHandler{decisions: decisions, history: history}
}

// Batch godoc
// @Summary Submit a first- or second-level approval decision for a meeting
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param payload body dto.BatchApprovalRequest true "Decision"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 409 {object} response.ErrorEnvelope
// @Failure 503 {object} response.ErrorEnvelope
// @Router /meetings/{id}/batch-approval [post]
func (h *ApprovalHandler) Batch(c *gin.Context) {
	meetingID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BatchApprovalRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if !claims.Role.CanActAt(req.ApproverLevel) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot decide at %s level", claims.Role, req.ApproverLevel)))
		return
	}

	out, err := h.decisions.Decide(c.Request.Context(), service.DecisionCommand{
		MeetingID:  meetingID,
		Level:      req.ApproverLevel,
		ApproveIDs: req.ApproveRequestIDs,
		RejectIDs:  req.RejectRequestIDs,
		ApproverID: req.ApproverID,
		Comment:    req.Comment,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"approvalId":     out.ApprovalID,
		"histId":         out.HistoryID,
		"approverRole":   out.Role,
		"decisionResult": out.Result,
		"state":          out.State,
		"approvedCount":  out.ApprovedCount,
		"rejectedCount":  out.RejectedCount,
		"affectedCount":  out.AffectedCount,
		"approverId":     out.ApproverID,
		"approverName":   out.ApproverName,
		"message":        out.Message,
		"warnings":       out.Warnings,
	})
}

// History godoc
// @Summary Approval audit log of a meeting, newest first
// @Tags Approvals
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} map[string]interface{}
// @Router /meetings/{id}/approval-history [get]
func (h *ApprovalHandler) History(c *gin.Context) {
	meetingID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.history.List(c.Request.Context(), meetingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"history": entries})
}

// Export godoc
// @Summary Download the approval audit log
// @Tags Approvals
// @Produce text/csv
// @Produce application/pdf
// @Param id path int true "Meeting ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /meetings/{id}/approval-history/export [get]
func (h *ApprovalHandler) Export(c *gin.Context) {
	meetingID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var q dto.ExportQuery
	if err := bindQuery(c, &q); err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.history.Export(c.Request.Context(), meetingID, q.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
