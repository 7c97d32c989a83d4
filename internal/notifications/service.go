package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stockpile-erp/stockpile-erp/internal/shared"
	"github.com/stockpile-erp/stockpile-erp/internal/stock"
	"github.com/stockpile-erp/stockpile-erp/internal/users"
	"github.com/stockpile-erp/stockpile-erp/jobs"
)

const unreadCountTTL = 5 * time.Minute

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]Notification, error)
	ListUnreadByUser(ctx context.Context, userID int64) ([]Notification, error)
	CountUnread(ctx context.Context, userID int64) (int64, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserDirectory resolves alert recipients.
type UserDirectory interface {
	ListAdmins(ctx context.Context) ([]users.User, error)
}

// Service stores notifications, fans alerts out to administrators and keeps
// a short-lived unread counter in Redis.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	directory UserDirectory
	cache     *redis.Client
	enqueuer  Enqueuer
	printer   *message.Printer
}

// NewService constructs the notifications service. cache and enqueuer may be
// nil; the service then skips counter caching and email delivery.
func NewService(logger *slog.Logger, repo RepositoryPort, directory UserDirectory, cache *redis.Client, enqueuer Enqueuer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:    logger,
		repo:      repo,
		directory: directory,
		cache:     cache,
		enqueuer:  enqueuer,
		printer:   message.NewPrinter(language.English),
	}
}

var _ jobs.ThresholdNotifier = (*Service)(nil)
var _ jobs.NotificationPurger = (*Service)(nil)

// FanOutThresholdAlert persists one notification per active administrator
// and enqueues an email for each. A partial failure is returned so the task
// retries; inserts are idempotent per (user, item, created window) only in
// the sense that duplicates are harmless reads.
func (s *Service) FanOutThresholdAlert(ctx context.Context, payload jobs.ThresholdAlertPayload) error {
	admins, err := s.directory.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("notifications: list admins: %w", err)
	}
	if len(admins) == 0 {
		s.logger.Warn("threshold alert has no recipients", slog.Int64("item_id", payload.ItemID))
		return nil
	}

	title, body := s.composeAlert(payload)
	kind := TypeLowStock
	if payload.Class == string(stock.ThresholdOutOfStock) {
		kind = TypeOutOfStock
	}

	var failed int
	for _, admin := range admins {
		n := Notification{
			UserID:  admin.ID,
			ItemID:  payload.ItemID,
			Type:    kind,
			Title:   title,
			Message: body,
		}
		if _, err := s.repo.Insert(ctx, n); err != nil {
			failed++
			s.logger.Error("insert notification failed",
				slog.Int64("user_id", admin.ID),
				slog.Any("error", err))
			continue
		}
		s.invalidateUnreadCount(ctx, admin.ID)
		s.enqueueEmail(ctx, admin.Email, title, body)
	}
	if failed > 0 {
		return fmt.Errorf("notifications: %d of %d inserts failed", failed, len(admins))
	}
	s.logger.Info("threshold alert fanned out",
		slog.String("event_id", payload.EventID),
		slog.Int64("item_id", payload.ItemID),
		slog.Int("recipients", len(admins)))
	return nil
}

func (s *Service) composeAlert(payload jobs.ThresholdAlertPayload) (title, body string) {
	if payload.Class == string(stock.ThresholdOutOfStock) {
		title = s.printer.Sprintf("Out of stock: %s", payload.Name)
		body = s.printer.Sprintf("Product %s - %s is out of stock.", payload.SKU, payload.Name)
		return title, body
	}
	title = s.printer.Sprintf("Low stock: %s", payload.Name)
	body = s.printer.Sprintf("Product %s - %s has only %d units. Minimum required: %d.",
		payload.SKU, payload.Name, payload.Quantity, payload.MinStock)
	return title, body
}

func (s *Service) enqueueEmail(ctx context.Context, to, subject, body string) {
	if s.enqueuer == nil {
		return
	}
	task, err := jobs.NewSendEmailTask(jobs.SendEmailPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		s.logger.Error("build email task failed", slog.Any("error", err))
		return
	}
	if _, err := s.enqueuer.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault)); err != nil {
		s.logger.Error("enqueue email failed", slog.String("to", to), slog.Any("error", err))
	}
}

// ListForActor returns the acting user's notifications.
func (s *Service) ListForActor(ctx context.Context, limit, offset int) ([]Notification, error) {
	actorID := shared.ActorFromContext(ctx)
	if actorID == 0 {
		return nil, shared.ErrUnauthorized
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, actorID, limit, offset)
}

// ListUnreadForActor returns the acting user's unread notifications.
func (s *Service) ListUnreadForActor(ctx context.Context) ([]Notification, error) {
	actorID := shared.ActorFromContext(ctx)
	if actorID == 0 {
		return nil, shared.ErrUnauthorized
	}
	return s.repo.ListUnreadByUser(ctx, actorID)
}

// UnreadCount returns the acting user's unread counter, served from Redis
// when a fresh value is cached.
func (s *Service) UnreadCount(ctx context.Context) (int64, error) {
	actorID := shared.ActorFromContext(ctx)
	if actorID == 0 {
		return 0, shared.ErrUnauthorized
	}
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, unreadCountKey(actorID)).Result()
		if err == nil {
			if count, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
				return count, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("unread counter cache read failed", slog.Any("error", err))
		}
	}
	count, err := s.repo.CountUnread(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, unreadCountKey(actorID), count, unreadCountTTL).Err(); err != nil {
			s.logger.Warn("unread counter cache write failed", slog.Any("error", err))
		}
	}
	return count, nil
}

// MarkRead acknowledges one notification for the acting user.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	actorID := shared.ActorFromContext(ctx)
	if actorID == 0 {
		return shared.ErrUnauthorized
	}
	if err := s.repo.MarkRead(ctx, actorID, id); err != nil {
		return err
	}
	s.invalidateUnreadCount(ctx, actorID)
	return nil
}

// MarkAllRead acknowledges every unread notification for the acting user.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	actorID := shared.ActorFromContext(ctx)
	if actorID == 0 {
		return 0, shared.ErrUnauthorized
	}
	updated, err := s.repo.MarkAllRead(ctx, actorID)
	if err != nil {
		return 0, err
	}
	s.invalidateUnreadCount(ctx, actorID)
	return updated, nil
}

// PurgeRead deletes read notifications older than the retention window.
func (s *Service) PurgeRead(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	deleted, err := s.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("notifications: purge read: %w", err)
	}
	s.logger.Info("purged read notifications",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff))
	return nil
}

func (s *Service) invalidateUnreadCount(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, unreadCountKey(userID)).Err(); err != nil {
		s.logger.Warn("unread counter invalidation failed", slog.Any("error", err))
	}
}

func unreadCountKey(userID int64) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}
