package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carpoolbot/config"
	"carpoolbot/pkg/clock"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/models"
	"carpoolbot/storage"
	"carpoolbot/storage/memory"
)

var t0 = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		MatchTolerance:     10 * time.Minute,
		BasePrice:          200,
		MaxGroupSize:       4,
		MatchMaxAttempts:   5,
		StoreTimeout:       time.Second,
		SessionIdleTimeout: 30 * time.Minute,
		GroupJoinWindow:    2 * time.Hour,
	}
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.GroupFormedEvent
	err    error
}

func (d *recordingDispatcher) GroupFormed(_ context.Context, e models.GroupFormedEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return d.err
}

func (d *recordingDispatcher) all() []models.GroupFormedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.GroupFormedEvent(nil), d.events...)
}

type harness struct {
	clk        *clock.MockClock
	store      storage.IStorage
	sessions   *memory.SessionStore
	dispatcher *recordingDispatcher
	svc        IServiceManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, testConfig(), nil)
}

// newHarnessWith lets a test swap the reservation store, e.g. for one that fails.
func newHarnessWith(t *testing.T, cfg config.Config, wrap func(storage.IStorage) storage.IStorage) *harness {
	t.Helper()
	h := &harness{
		clk:        clock.NewMockClock(t0),
		dispatcher: &recordingDispatcher{},
	}
	h.store = memory.New(h.clk)
	if wrap != nil {
		h.store = wrap(h.store)
	}
	h.sessions = memory.NewSessionStore(h.clk, cfg.SessionIdleTimeout)
	h.svc = NewWithClock(h.store, h.sessions, h.dispatcher, cfg, h.clk, logger.NewNop())
	return h
}

func (h *harness) send(t *testing.T, user, text string) models.OutboundMessage {
	t.Helper()
	out, err := h.svc.Conversation().Handle(context.Background(), models.Inbound{UserID: user, Text: text})
	require.NoError(t, err)
	require.Equal(t, user, out.Recipient)
	require.NotEmpty(t, out.Text)
	return out
}

// book walks a user through a full draft.
func (h *harness) book(t *testing.T, user, route, rideType, at, payment string) models.OutboundMessage {
	t.Helper()
	h.send(t, user, route)
	h.send(t, user, rideType)
	h.send(t, user, at)
	return h.send(t, user, payment)
}

func (h *harness) latest(t *testing.T, user string) *models.Reservation {
	t.Helper()
	r, err := h.store.Reservation().GetLatest(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

// failingStore breaks selected reservation operations.
type failingStore struct {
	storage.IStorage
	repo *failingRepo
}

func (s failingStore) Reservation() storage.IReservationStorage { return s.repo }

type failingRepo struct {
	storage.IReservationStorage
	failInsert bool
	failLatest bool
	failList   bool
}

var errBroken = errors.New("connection refused")

func (r *failingRepo) Insert(ctx context.Context, res *models.Reservation) (*models.Reservation, error) {
	if r.failInsert {
		return nil, errBroken
	}
	return r.IReservationStorage.Insert(ctx, res)
}

func (r *failingRepo) GetLatest(ctx context.Context, userID string) (*models.Reservation, error) {
	if r.failLatest {
		return nil, errBroken
	}
	return r.IReservationStorage.GetLatest(ctx, userID)
}

func (r *failingRepo) ListWaitingCandidates(ctx context.Context, origin, destination, excludeUserID string) ([]*models.Reservation, error) {
	if r.failList {
		return nil, errBroken
	}
	return r.IReservationStorage.ListWaitingCandidates(ctx, origin, destination, excludeUserID)
}

func wrapFailing(repo *failingRepo) func(storage.IStorage) storage.IStorage {
	return func(s storage.IStorage) storage.IStorage {
		repo.IReservationStorage = s.Reservation()
		return failingStore{IStorage: s, repo: repo}
	}
}
