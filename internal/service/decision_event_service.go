package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/sales-credit-api/internal/models"
	"github.com/noah-isme/sales-credit-api/pkg/events"
	"github.com/noah-isme/sales-credit-api/pkg/jobs"
)

type eventPublisher interface {
	Publish(ctx context.Context, msgs ...events.Message) error
}

// DecisionEventService hands committed decisions to the event bus through an
// in-memory worker queue, so publishing never delays or fails a decision.
type DecisionEventService struct {
	publisher eventPublisher
	queue     *jobs.Queue[models.DecisionEvent]
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewDecisionEventService wires the queue to publisher.
func NewDecisionEventService(publisher eventPublisher, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *DecisionEventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	s := &DecisionEventService{publisher: publisher, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue[models.DecisionEvent]("decision-events", s.handle, cfg)
	return s
}

// Start begins background delivery.
func (s *DecisionEventService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts delivery; queued events that were not yet published are dropped.
func (s *DecisionEventService) Stop() {
	s.queue.Stop()
}

// Notify enqueues evt. Failures are logged and counted, never returned.
func (s *DecisionEventService) Notify(evt models.DecisionEvent) {
	if s == nil {
		return
	}
	if err := s.queue.Enqueue(evt); err != nil {
		s.metrics.RecordEvent("dropped")
		s.logger.Warn("decision event not enqueued",
			zap.Int64("meeting_id", evt.MeetingID),
			zap.String("event_id", evt.EventID),
			zap.Error(err))
		return
	}
	s.metrics.RecordEvent("queued")
}

func (s *DecisionEventService) handle(ctx context.Context, job jobs.Job[models.DecisionEvent]) error {
	msg, err := encodeDecisionEvent(job.Payload)
	if err != nil {
		s.logger.Error("decision event not encodable", zap.String("event_id", job.Payload.EventID), zap.Error(err))
		return nil
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.metrics.RecordEvent("failed")
		return err
	}
	s.metrics.RecordEvent("published")
	return nil
}

func encodeDecisionEvent(evt models.DecisionEvent) (events.Message, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return events.Message{}, fmt.Errorf("marshal decision event: %w", err)
	}
	return events.Message{
		Key:   []byte(strconv.FormatInt(evt.MeetingID, 10)),
		Value: body,
		Headers: map[string]string{
			"event-type": models.DecisionEventType,
			"event-id":   evt.EventID,
		},
	}, nil
}
