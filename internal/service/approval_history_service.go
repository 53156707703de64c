package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sales-credit-api/internal/models"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
	"github.com/noah-isme/sales-credit-api/pkg/export"
)

type historyReader interface {
	ListByMeeting(ctx context.Context, meetingID int64) ([]models.ApprovalHistoryEntry, error)
}

// HistoryExport is a rendered audit log ready to be sent as an attachment.
type HistoryExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ApprovalHistoryService reads the append-only approval audit log.
type ApprovalHistoryService struct {
	meetings  meetingReader
	history   historyReader
	renderers func(export.Format) export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewApprovalHistoryService constructs the service.
func NewApprovalHistoryService(meetings meetingReader, history historyReader, logger *zap.Logger) *ApprovalHistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalHistoryService{
		meetings:  meetings,
		history:   history,
		renderers: export.RendererFor,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the meeting's history entries, newest first. Reads never mutate.
func (s *ApprovalHistoryService) List(ctx context.Context, meetingID int64) ([]models.ApprovalHistoryEntry, error) {
	if _, err := s.meeting(ctx, meetingID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval history")
	}
	if entries == nil {
		entries = []models.ApprovalHistoryEntry{}
	}
	return entries, nil
}

// Export renders the meeting's audit log as CSV or PDF.
func (s *ApprovalHistoryService) Export(ctx context.Context, meetingID int64, rawFormat string) (*HistoryExport, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	meeting, err := s.meeting(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.ListByMeeting(ctx, meetingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval history")
	}

	body, err := s.renderers(format).Render(historyDataset(meeting, entries))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render approval history")
	}
	s.logger.Info("approval history exported",
		zap.Int64("meeting_id", meetingID),
		zap.String("format", string(format)),
		zap.Int("entries", len(entries)))

	return &HistoryExport{
		Filename:    fmt.Sprintf("approval_history_%s_%s.%s", sanitizeFilename(meeting.Code), s.now().UTC().Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (s *ApprovalHistoryService) meeting(ctx context.Context, id int64) (*models.Meeting, error) {
	meeting, err := s.meetings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	return meeting, nil
}

func historyDataset(meeting *models.Meeting, entries []models.ApprovalHistoryEntry) export.Dataset {
	headers := []string{"Decided At", "Role", "Approver ID", "Approver", "Result", "Affected", "Comment"}
	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]string{
			"Decided At":  e.DecidedAt.UTC().Format(time.RFC3339),
			"Role":        string(e.ApproverRole),
			"Approver ID": e.ApproverID,
			"Approver":    deref(e.ApproverName),
			"Result":      string(e.Result),
			"Affected":    strconv.Itoa(e.AffectedCount),
			"Comment":     deref(e.Comment),
		})
	}
	title := fmt.Sprintf("Approval history %s", meeting.Code)
	if meeting.Name != "" {
		title += " - " + meeting.Name
	}
	return export.Dataset{
		Title:   title,
		Headers: headers,
		Rows:    rows,
		Widths:  []float64{1.6, 1.3, 1.1, 1.6, 1.3, 0.7, 3},
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
