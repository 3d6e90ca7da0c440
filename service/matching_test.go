package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/models"
)

func insertShared(t *testing.T, h *harness, user string, hh, mm int) *models.Reservation {
	t.Helper()
	r, err := h.store.Reservation().Insert(context.Background(), &models.Reservation{
		UserID:        user,
		Origin:        "Station",
		Destination:   "Library",
		RideType:      models.RideTypeShared,
		RequestedTime: models.TimeOfDay{Hour: hh, Minute: mm},
		PaymentMethod: "Cash",
	})
	require.NoError(t, err)
	h.clk.Add(time.Second)
	return r
}

func TestMatchSoloIsNoop(t *testing.T) {
	h := newHarness(t)
	insertShared(t, h, "B", 9, 0)
	solo, err := h.store.Reservation().Insert(context.Background(), &models.Reservation{
		UserID: "A", Origin: "Station", Destination: "Library",
		RideType: models.RideTypeSolo, RequestedTime: models.TimeOfDay{Hour: 9},
	})
	require.NoError(t, err)

	res, err := h.svc.Matching().Match(context.Background(), solo)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestMatchRequiresWholeGroupWithinTolerance(t *testing.T) {
	h := newHarness(t)
	insertShared(t, h, "A", 9, 0)
	insertShared(t, h, "B", 9, 12)
	c := insertShared(t, h, "C", 9, 6)

	// B is within 10m of C but 12m from A, so only one of them fits.
	res, err := h.svc.Matching().Match(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, res)
	users := []string{}
	for _, m := range res.Members {
		users = append(users, m.UserID)
	}
	assert.ElementsMatch(t, []string{"A", "C"}, users)
	assert.Equal(t, 100, res.Fare)
}

func TestMatchSkipsOwnReservations(t *testing.T) {
	h := newHarness(t)
	insertShared(t, h, "A", 9, 0)
	second := insertShared(t, h, "A", 9, 1)

	res, err := h.svc.Matching().Match(context.Background(), second)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestMatchReturnsExistingGroupWhenAlreadyClaimed(t *testing.T) {
	h := newHarness(t)
	a := insertShared(t, h, "A", 9, 0)
	b := insertShared(t, h, "B", 9, 0)

	formed, err := h.svc.Matching().Match(context.Background(), b)
	require.NoError(t, err)
	require.NotNil(t, formed)

	again, err := h.svc.Matching().Match(context.Background(), a)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, formed.GroupID, again.GroupID)
	assert.Len(t, h.dispatcher.all(), 1)
}

func TestConcurrentMatchesFormOneGroup(t *testing.T) {
	h := newHarness(t)
	var pending []*models.Reservation
	for _, u := range []string{"A", "B", "C"} {
		pending = append(pending, insertShared(t, h, u, 9, 0))
	}

	var wg sync.WaitGroup
	for _, r := range pending {
		wg.Add(1)
		go func(r *models.Reservation) {
			defer wg.Done()
			_, err := h.svc.Matching().Match(context.Background(), r)
			assert.NoError(t, err)
		}(r)
	}
	wg.Wait()

	groups := map[string]int{}
	for _, u := range []string{"A", "B", "C"} {
		r := h.latest(t, u)
		require.Equal(t, models.StatusMatched, r.Status, u)
		groups[*r.GroupID]++
		assert.Equal(t, 66, *r.Fare)
	}
	assert.Len(t, groups, 1)
	assert.Len(t, h.dispatcher.all(), 1)
}

func TestConcurrentConversationsNeverOverbook(t *testing.T) {
	cfg := testConfig()
	h := newHarnessWith(t, cfg, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%02d", i)
			for _, text := range []string{route, "SHARED", fmt.Sprintf("09:%02d", i%5), "Cash"} {
				_, err := h.svc.Conversation().Handle(ctx, models.Inbound{UserID: user, Text: text})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	members := map[string][]*models.Reservation{}
	for i := 0; i < 20; i++ {
		r := h.latest(t, fmt.Sprintf("u%02d", i))
		if r.GroupID != nil {
			members[*r.GroupID] = append(members[*r.GroupID], r)
		}
	}
	for g, ms := range members {
		assert.GreaterOrEqual(t, len(ms), 2, g)
		assert.LessOrEqual(t, len(ms), cfg.MaxGroupSize, g)
		total := 0
		for _, m := range ms {
			assert.Equal(t, *ms[0].Fare, *m.Fare)
			total += *m.Fare
		}
		assert.LessOrEqual(t, total, cfg.BasePrice)
	}
}

func TestCustomRoutePredicateTightensMatching(t *testing.T) {
	h := newHarness(t)
	insertShared(t, h, "A", 9, 0)
	b := insertShared(t, h, "B", 9, 0)

	never := func(a, b *models.Reservation) bool { return false }
	m := NewMatchingService(h.store, h.dispatcher, MatchingConfigFrom(testConfig()), never, h.clk, logger.NewNop())

	res, err := m.Match(context.Background(), b)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, models.StatusWaiting, h.latest(t, "B").Status)
}
