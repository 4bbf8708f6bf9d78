// Package event exposes the document event outbox to operators: delivery
// statistics, the dead letter queue and manual requeueing.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/erp/salesdocs/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// OutboxService inspects and requeues outbox entries
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

func NewOutboxService(repo shared.OutboxRepository, log *zap.Logger) *OutboxService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxService{repo: repo, logger: log.Named("outbox_service")}
}

// EntryView is an outbox entry without its payload
type EntryView struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func viewOf(e *shared.OutboxEntry) EntryView {
	return EntryView{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// DeadLetterQuery selects a page of dead entries. Zero values mean the
// first page at the default size.
type DeadLetterQuery struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

func (q DeadLetterQuery) bounds() (page, size int) {
	page = max(q.Page, 1)
	size = q.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	return page, min(size, maxPageSize)
}

// DeadLetterPage is one page of dead entries
type DeadLetterPage struct {
	Entries    []EntryView `json:"entries"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// DeliveryStats counts entries per delivery status. Backlog is everything
// not yet delivered and not dead.
type DeliveryStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Backlog    int64 `json:"backlog"`
	Total      int64 `json:"total"`
}

// DeadLetters lists dead entries, most recent failure first
func (s *OutboxService) DeadLetters(ctx context.Context, q DeadLetterQuery) (*DeadLetterPage, error) {
	page, size := q.bounds()
	entries, total, err := s.repo.FindDead(ctx, page, size)
	if err != nil {
		s.logger.Error("Failed to list dead letters", zap.Error(err))
		return nil, err
	}

	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, viewOf(e))
	}
	return &DeadLetterPage{
		Entries:    views,
		Total:      total,
		Page:       page,
		PageSize:   size,
		TotalPages: int((total + int64(size) - 1) / int64(size)),
	}, nil
}

func (s *OutboxService) Entry(ctx context.Context, id uuid.UUID) (*EntryView, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := viewOf(entry)
	return &view, nil
}

// Requeue puts one dead entry back into the pending queue. Entries in any
// other status are rejected with ErrInvalidState.
func (s *OutboxService) Requeue(ctx context.Context, id uuid.UUID) (*EntryView, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requeue(ctx, entry); err != nil {
		if errors.Is(err, shared.ErrOutboxTransition) {
			return nil, shared.ErrInvalidState.WithMessage("only dead entries can be retried")
		}
		return nil, err
	}

	s.logger.Info("Dead letter requeued",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
	)
	view := viewOf(entry)
	return &view, nil
}

// RequeueAll requeues every dead entry and returns how many moved
func (s *OutboxService) RequeueAll(ctx context.Context) (int64, error) {
	var moved int64
	for {
		// requeued entries leave the dead set, so page one is always the next batch
		batch, _, err := s.repo.FindDead(ctx, 1, maxPageSize)
		if err != nil {
			return moved, err
		}

		n := 0
		for _, entry := range batch {
			if err := s.requeue(ctx, entry); err == nil {
				n++
			}
		}
		moved += int64(n)
		if n == 0 || len(batch) < maxPageSize {
			break
		}
	}

	s.logger.Info("Dead letters requeued", zap.Int64("count", moved))
	return moved, nil
}

func (s *OutboxService) requeue(ctx context.Context, entry *shared.OutboxEntry) error {
	if err := entry.ResetForRetry(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("Failed to requeue outbox entry", zap.Error(err), zap.String("id", entry.ID.String()))
		return err
	}
	return nil
}

func (s *OutboxService) Stats(ctx context.Context) (*DeliveryStats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("Failed to count outbox entries", zap.Error(err))
		return nil, err
	}

	stats := &DeliveryStats{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
	}
	stats.Backlog = stats.Pending + stats.Processing + stats.Failed
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}
