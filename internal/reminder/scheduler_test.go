package reminder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/models"
)

// ============================================================================
// Test Helpers
// ============================================================================

var fixedNow = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

// memStore is an in-memory Store that counts deletes per reminder
type memStore struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*models.Reminder
	deletes   map[uuid.UUID]int
	dueErr    error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{
		reminders: make(map[uuid.UUID]*models.Reminder),
		deletes:   make(map[uuid.UUID]int),
	}
}

func (m *memStore) CreateReminder(_ context.Context, r *models.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = fixedNow
	cp := *r
	m.reminders[r.ID] = &cp
	return nil
}

func (m *memStore) GetDueReminders(_ context.Context, now time.Time) ([]*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dueErr != nil {
		return nil, m.dueErr
	}
	var due []*models.Reminder
	for _, r := range m.reminders {
		if r.IsDue(now) {
			cp := *r
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RemindAt.Before(due[j].RemindAt) })
	return due, nil
}

func (m *memStore) DeleteReminder(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.reminders[id]; !ok {
		return apperrors.NewNotFound("reminder", "")
	}
	delete(m.reminders, id)
	m.deletes[id]++
	return nil
}

func (m *memStore) ListRemindersForOwner(_ context.Context, userID, channelID string) ([]*models.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Reminder
	for _, r := range m.reminders {
		if r.UserID == userID && (channelID == "" || r.ChannelID == channelID) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RemindAt.Before(out[j].RemindAt) })
	return out, nil
}

func (m *memStore) DeleteReminderForOwner(_ context.Context, id uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reminders[id]
	if !ok || r.UserID != userID {
		return apperrors.NewNotFound("reminder", "")
	}
	delete(m.reminders, id)
	m.deletes[id]++
	return nil
}

func (m *memStore) has(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reminders[id]
	return ok
}

// seed inserts a reminder directly, bypassing the future-time check
func (m *memStore) seed(t *testing.T, userID string, remindAt time.Time) *models.Reminder {
	t.Helper()
	r := &models.Reminder{UserID: userID, ChannelID: "chan-" + userID, RemindAt: remindAt}
	require.NoError(t, m.CreateReminder(context.Background(), r))
	return r
}

func newTestScheduler(store Store, deliverer Deliverer, opts ...Option) *Scheduler {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewScheduler(store, deliverer, zap.NewNop(), opts...)
}

// ============================================================================
// Schedule Tests
// ============================================================================

func TestSchedule_PersistsPendingReminder(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store, nil)

	r, err := s.Schedule(context.Background(), ScheduleRequest{
		UserID:    "u1",
		ChannelID: "c1",
		GuildID:   "g1",
		Message:   "stretch",
		RemindAt:  fixedNow.Add(time.Hour).In(time.FixedZone("EST", -5*3600)),
	})

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, fixedNow.Add(time.Hour), r.RemindAt)
	assert.Equal(t, time.UTC, r.RemindAt.Location())
	assert.Equal(t, "stretch", r.Body())
	assert.True(t, r.GuildID.Valid)
	assert.False(t, r.MessageID.Valid)
	assert.True(t, store.has(r.ID))
}

func TestSchedule_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     ScheduleRequest
		wantErr string
	}{
		{"missing owner", ScheduleRequest{ChannelID: "c", RemindAt: fixedNow.Add(time.Hour)}, "owner is required"},
		{"missing destination", ScheduleRequest{UserID: "u", RemindAt: fixedNow.Add(time.Hour)}, "destination is required"},
		{"past time", ScheduleRequest{UserID: "u", ChannelID: "c", RemindAt: fixedNow.Add(-time.Second)}, "parsed time is in the past"},
		{"exactly now", ScheduleRequest{UserID: "u", ChannelID: "c", RemindAt: fixedNow}, "parsed time is in the past"},
		{"message too long", ScheduleRequest{UserID: "u", ChannelID: "c", RemindAt: fixedNow.Add(time.Hour), Message: string(make([]byte, MaxMessageLength+1))}, "at most"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			s := newTestScheduler(store, nil)

			_, err := s.Schedule(context.Background(), tt.req)

			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, store.reminders)
		})
	}
}

func TestScheduleText_ParsesRelativeToClock(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store, nil)

	r, err := s.ScheduleText(context.Background(), ScheduleRequest{UserID: "u1", ChannelID: "c1"}, "tomorrow at 9am")

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), r.RemindAt)
}

func TestScheduleText_Errors(t *testing.T) {
	s := newTestScheduler(newMemStore(), nil)

	_, err := s.ScheduleText(context.Background(), ScheduleRequest{UserID: "u1", ChannelID: "c1"}, "not a time at all")
	assert.True(t, apperrors.IsParse(err))

	_, err = s.ScheduleText(context.Background(), ScheduleRequest{UserID: "u1", ChannelID: "c1"}, "2020-01-01 09:00")
	assert.True(t, apperrors.IsValidation(err))
}

// ============================================================================
// PollOnce Tests
// ============================================================================

func TestPollOnce_RemovesEveryDueReminderExactlyOnce(t *testing.T) {
	store := newMemStore()
	ok := store.seed(t, "ok", fixedNow.Add(-time.Minute))
	failing := store.seed(t, "fail", fixedNow.Add(-30*time.Second))
	panicking := store.seed(t, "panic", fixedNow)
	future := store.seed(t, "future", fixedNow.Add(time.Second))

	var delivered []string
	deliverer := DelivererFunc(func(_ context.Context, r *models.Reminder) error {
		switch r.UserID {
		case "fail":
			return errors.New("channel unavailable")
		case "panic":
			panic("boom")
		}
		delivered = append(delivered, r.UserID)
		return nil
	})
	s := newTestScheduler(store, deliverer)

	outcomes, err := s.PollOnce(context.Background(), fixedNow)

	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, []string{"ok"}, delivered)

	byUser := make(map[string]Outcome)
	for _, o := range outcomes {
		byUser[o.Reminder.UserID] = o
		assert.NoError(t, o.DeleteErr)
	}
	assert.True(t, byUser["ok"].Delivered)
	assert.NoError(t, byUser["ok"].Err)
	assert.False(t, byUser["fail"].Delivered)
	assert.True(t, apperrors.IsDelivery(byUser["fail"].Err))
	assert.False(t, byUser["panic"].Delivered)
	assert.True(t, apperrors.IsDelivery(byUser["panic"].Err))
	assert.Contains(t, byUser["panic"].Err.Error(), "boom")

	for _, r := range []*models.Reminder{ok, failing, panicking} {
		assert.False(t, store.has(r.ID))
		assert.Equal(t, 1, store.deletes[r.ID])
	}
	assert.True(t, store.has(future.ID))
	assert.Zero(t, store.deletes[future.ID])

	again, err := s.PollOnce(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestPollOnce_NothingDue(t *testing.T) {
	store := newMemStore()
	store.seed(t, "later", fixedNow.Add(time.Hour))
	s := newTestScheduler(store, DelivererFunc(func(context.Context, *models.Reminder) error {
		t.Fatal("nothing should be delivered")
		return nil
	}))

	outcomes, err := s.PollOnce(context.Background(), fixedNow)

	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestPollOnce_DeliveryTimeout(t *testing.T) {
	store := newMemStore()
	r := store.seed(t, "slow", fixedNow.Add(-time.Minute))

	s := newTestScheduler(store, DelivererFunc(func(ctx context.Context, _ *models.Reminder) error {
		<-ctx.Done()
		return ctx.Err()
	}), WithDeliveryTimeout(20*time.Millisecond))

	outcomes, err := s.PollOnce(context.Background(), fixedNow)

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, apperrors.IsDelivery(outcomes[0].Err))
	assert.ErrorIs(t, outcomes[0].Err, context.DeadlineExceeded)
	assert.False(t, store.has(r.ID))
}

func TestPollOnce_LoadFailure(t *testing.T) {
	store := newMemStore()
	store.dueErr = errors.New("connection refused")
	s := newTestScheduler(store, nil)

	outcomes, err := s.PollOnce(context.Background(), fixedNow)

	require.Error(t, err)
	assert.Nil(t, outcomes)
	assert.Contains(t, err.Error(), "failed to load due reminders")
}

func TestPollOnce_DeleteFailureIsReported(t *testing.T) {
	store := newMemStore()
	store.seed(t, "u", fixedNow.Add(-time.Minute))
	store.deleteErr = errors.New("disk full")
	s := newTestScheduler(store, DelivererFunc(func(context.Context, *models.Reminder) error { return nil }))

	outcomes, err := s.PollOnce(context.Background(), fixedNow)

	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Delivered)
	assert.EqualError(t, outcomes[0].DeleteErr, "disk full")
}

// ============================================================================
// ListForOwner / Cancel Tests
// ============================================================================

func TestListForOwner_OrderedByFireTime(t *testing.T) {
	store := newMemStore()
	late := store.seed(t, "owner", fixedNow.Add(3*time.Hour))
	early := store.seed(t, "owner", fixedNow.Add(time.Hour))
	store.seed(t, "other", fixedNow.Add(2*time.Hour))
	s := newTestScheduler(store, nil)

	reminders, err := s.ListForOwner(context.Background(), "owner", "")

	require.NoError(t, err)
	require.Len(t, reminders, 2)
	assert.Equal(t, early.ID, reminders[0].ID)
	assert.Equal(t, late.ID, reminders[1].ID)
}

func TestCancel(t *testing.T) {
	store := newMemStore()
	r := store.seed(t, "owner", fixedNow.Add(time.Hour))
	s := newTestScheduler(store, nil)

	err := s.Cancel(context.Background(), r.ID, "someone-else")
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, store.has(r.ID))

	require.NoError(t, s.Cancel(context.Background(), r.ID, "owner"))
	assert.False(t, store.has(r.ID))
}

// ============================================================================
// Start / Stop Tests
// ============================================================================

func TestStartStop_WaitsForInFlightPoll(t *testing.T) {
	store := newMemStore()
	r := store.seed(t, "u", fixedNow.Add(-time.Minute))

	entered := make(chan struct{})
	release := make(chan struct{})
	deliverer := DelivererFunc(func(ctx context.Context, _ *models.Reminder) error {
		close(entered)
		<-release
		return ctx.Err()
	})
	s := newTestScheduler(store, deliverer, WithPollInterval(time.Hour), WithDeliveryTimeout(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx)

	<-entered

	stopped := make(chan struct{})
	go func() {
		cancel()
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a poll was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the poll finished")
	}

	assert.False(t, store.has(r.ID), "in-flight poll should finish removing the reminder")
	assert.Equal(t, 1, store.deletes[r.ID])

	s.Stop()
}

func TestStart_PollsOnInterval(t *testing.T) {
	store := newMemStore()

	var mu sync.Mutex
	count := 0
	deliverer := DelivererFunc(func(context.Context, *models.Reminder) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	s := newTestScheduler(store, deliverer, WithPollInterval(10*time.Millisecond))

	s.Start(context.Background())
	defer s.Stop()

	store.seed(t, "a", fixedNow.Add(-time.Second))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, 2*time.Second, 10*time.Millisecond)
}
