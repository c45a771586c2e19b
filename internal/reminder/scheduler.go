// Package reminder schedules user reminders and delivers them from a polling loop.
//
// Delivery is attempted at most once: a due reminder is removed after its
// delivery attempt whether or not the attempt succeeded.
package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
	"github.com/weastcoast/weastcoastbot/internal/timeparse"
)

const (
	DefaultPollInterval    = 30 * time.Second
	DefaultDeliveryTimeout = 10 * time.Second

	// MaxMessageLength keeps the delivered text under Discord's 2000 character limit
	MaxMessageLength = 1500
)

// Store persists reminders
type Store interface {
	CreateReminder(ctx context.Context, r *models.Reminder) error
	GetDueReminders(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	DeleteReminder(ctx context.Context, id uuid.UUID) error
	ListRemindersForOwner(ctx context.Context, userID, channelID string) ([]*models.Reminder, error)
	DeleteReminderForOwner(ctx context.Context, id uuid.UUID, userID string) error
}

// Deliverer sends a due reminder to its channel
type Deliverer interface {
	Deliver(ctx context.Context, r *models.Reminder) error
}

// DelivererFunc adapts a function to the Deliverer interface
type DelivererFunc func(ctx context.Context, r *models.Reminder) error

// Deliver calls f(ctx, r)
func (f DelivererFunc) Deliver(ctx context.Context, r *models.Reminder) error {
	return f(ctx, r)
}

// ScheduleRequest describes a reminder to create. GuildID, MessageID and
// Message are optional.
type ScheduleRequest struct {
	UserID    string
	ChannelID string
	GuildID   string
	MessageID string
	Message   string
	RemindAt  time.Time
}

// Outcome is the result of one due reminder in a poll cycle
type Outcome struct {
	Reminder  *models.Reminder
	Delivered bool
	Err       error // *apperrors.DeliveryError when Delivered is false
	DeleteErr error
}

// Scheduler creates reminders and runs the delivery poll loop
type Scheduler struct {
	store           Store
	deliverer       Deliverer
	parser          *timeparse.Parser
	logger          *zap.Logger
	interval        time.Duration
	deliveryTimeout time.Duration
	now             func() time.Time

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithPollInterval sets how often due reminders are checked
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithDeliveryTimeout bounds each delivery attempt
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.deliveryTimeout = d }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithParser replaces the default time parser
func WithParser(p *timeparse.Parser) Option {
	return func(s *Scheduler) { s.parser = p }
}

// NewScheduler creates a Scheduler. It does not start polling until Start is called.
func NewScheduler(store Store, deliverer Deliverer, logger *zap.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:           store,
		deliverer:       deliverer,
		logger:          logger,
		interval:        DefaultPollInterval,
		deliveryTimeout: DefaultDeliveryTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = timeparse.New()
	}
	return s
}

// Schedule validates and persists a new reminder
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) (*models.Reminder, error) {
	if req.UserID == "" {
		return nil, apperrors.NewValidation("reminder owner is required")
	}
	if req.ChannelID == "" {
		return nil, apperrors.NewValidation("reminder destination is required")
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageLength {
		return nil, apperrors.NewValidation("reminder message must be at most %d characters", MaxMessageLength)
	}
	if !req.RemindAt.After(s.now()) {
		return nil, apperrors.NewValidation("parsed time is in the past")
	}

	r := &models.Reminder{
		ID:        uuid.New(),
		UserID:    req.UserID,
		ChannelID: req.ChannelID,
		GuildID:   nullString(req.GuildID),
		MessageID: nullString(req.MessageID),
		Message:   nullString(req.Message),
		RemindAt:  req.RemindAt.UTC(),
	}

	if err := s.store.CreateReminder(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to schedule reminder: %w", err)
	}

	s.logger.Info("reminder scheduled",
		zap.String("reminder_id", r.ID.String()),
		zap.String("user_id", r.UserID),
		zap.String("channel_id", r.ChannelID),
		zap.Time("remind_at", r.RemindAt),
	)

	return r, nil
}

// ScheduleText parses timeText relative to the scheduler clock and schedules
// the reminder. req.RemindAt is ignored.
func (s *Scheduler) ScheduleText(ctx context.Context, req ScheduleRequest, timeText string) (*models.Reminder, error) {
	remindAt, err := s.parser.ParseFuture(timeText, s.now())
	if err != nil {
		return nil, err
	}

	req.RemindAt = remindAt
	return s.Schedule(ctx, req)
}

// ListForOwner returns a user's pending reminders ordered by fire time.
// An empty channelID lists reminders in every channel.
func (s *Scheduler) ListForOwner(ctx context.Context, userID, channelID string) ([]*models.Reminder, error) {
	reminders, err := s.store.ListRemindersForOwner(ctx, userID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return reminders, nil
}

// Cancel deletes a pending reminder owned by userID
func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID, userID string) error {
	if err := s.store.DeleteReminderForOwner(ctx, id, userID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("reminder", "no pending reminder with that id")
		}
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}

	s.logger.Info("reminder cancelled",
		zap.String("reminder_id", id.String()),
		zap.String("user_id", userID),
	)
	return nil
}

// PollOnce delivers every reminder due at now and removes it. A failed or
// panicking delivery is recorded in its Outcome and does not affect the others.
// The returned error is non-nil only when the due set could not be loaded.
func (s *Scheduler) PollOnce(ctx context.Context, now time.Time) ([]Outcome, error) {
	due, err := s.store.GetDueReminders(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load due reminders: %w", err)
	}

	outcomes := make([]Outcome, 0, len(due))
	for _, r := range due {
		outcome := Outcome{Reminder: r}

		if err := s.deliver(ctx, r); err != nil {
			outcome.Err = err
			s.logger.Warn("reminder delivery failed",
				zap.String("reminder_id", r.ID.String()),
				zap.String("channel_id", r.ChannelID),
				zap.Error(err),
			)
		} else {
			outcome.Delivered = true
		}

		if err := s.store.DeleteReminder(ctx, r.ID); err != nil && !apperrors.IsNotFound(err) {
			outcome.DeleteErr = err
			s.logger.Error("failed to remove reminder after delivery attempt",
				zap.String("reminder_id", r.ID.String()),
				zap.Error(err),
			)
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// deliver runs one delivery attempt inside its own timeout and panic boundary
func (s *Scheduler) deliver(ctx context.Context, r *models.Reminder) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err = &apperrors.DeliveryError{Target: r.ChannelID, Err: fmt.Errorf("panic during delivery: %v", p)}
		}
	}()

	if err := s.deliverer.Deliver(ctx, r); err != nil {
		var deliveryErr *apperrors.DeliveryError
		if errors.As(err, &deliveryErr) {
			return err
		}
		return &apperrors.DeliveryError{Target: r.ChannelID, Err: err}
	}
	return nil
}

// Start polls immediately and then every poll interval until ctx is done or
// Stop is called. Calling Start on a running Scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx, s.stopChan)

	s.logger.Info("started reminder poller", zap.Duration("interval", s.interval))
}

// Stop prevents new poll cycles and waits for an in-flight cycle to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("reminder poller stopped")
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll runs one cycle detached from ctx cancellation so a shutdown lets the
// cycle finish rather than abandoning reminders mid-delivery
func (s *Scheduler) poll(ctx context.Context) {
	start := s.now()
	outcomes, err := s.PollOnce(context.WithoutCancel(ctx), start)
	if err != nil {
		s.logger.Error("reminder poll failed", zap.Error(err))
		return
	}
	if len(outcomes) == 0 {
		return
	}

	delivered := 0
	for _, o := range outcomes {
		if o.Delivered {
			delivered++
		}
	}
	s.logger.Info("reminder poll completed",
		zap.Int("due", len(outcomes)),
		zap.Int("delivered", delivered),
		zap.Duration("elapsed", s.now().Sub(start)),
	)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
