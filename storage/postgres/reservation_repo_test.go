//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"carpoolbot/config"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/models"
	"carpoolbot/storage"
)

const (
	testUser     = "test"
	testPassword = "testpass"
	testDB       = "carpoolbot"
)

func startPostgres(t *testing.T) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       testDB,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := config.Config{
		PostgresHost:     host,
		PostgresPort:     port.Port(),
		PostgresUser:     testUser,
		PostgresPassword: testPassword,
		PostgresDB:       testDB,
	}
	store, err := New(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), "TRUNCATE TABLE reservations RESTART IDENTITY")
	require.NoError(t, err)
}

func insertShared(t *testing.T, repo storage.IReservationStorage, user string, hh, mm int) *models.Reservation {
	t.Helper()
	r, err := repo.Insert(context.Background(), &models.Reservation{
		UserID:        user,
		Origin:        "Station",
		Destination:   "Library",
		RideType:      models.RideTypeShared,
		RequestedTime: models.TimeOfDay{Hour: hh, Minute: mm},
		PaymentMethod: "Cash",
	})
	require.NoError(t, err)
	return r
}

func TestReservationRepo(t *testing.T) {
	store := startPostgres(t)
	repo := store.Reservation()
	ctx := context.Background()

	t.Run("insert and latest", func(t *testing.T) {
		truncate(t, store.GetPool())
		a := insertShared(t, repo, "A", 9, 0)
		assert.Equal(t, models.StatusWaiting, a.Status)
		assert.Equal(t, models.TimeOfDay{Hour: 9, Minute: 0}, a.RequestedTime)

		b := insertShared(t, repo, "A", 9, 30)
		latest, err := repo.GetLatest(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, b.ID, latest.ID)

		none, err := repo.GetLatest(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("candidates exclude user and other routes", func(t *testing.T) {
		truncate(t, store.GetPool())
		b := insertShared(t, repo, "B", 9, 0)
		insertShared(t, repo, "A", 9, 0)
		c := insertShared(t, repo, "C", 9, 5)

		got, err := repo.ListWaitingCandidates(ctx, "Station", "Library", "A")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, b.ID, got[0].ID)
		assert.Equal(t, c.ID, got[1].ID)
	})

	t.Run("transition is compare and set", func(t *testing.T) {
		truncate(t, store.GetPool())
		a := insertShared(t, repo, "A", 9, 0)

		ok, err := repo.TryTransition(ctx, a.ID, models.StatusWaiting, models.StatusCancelled, nil, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.TryTransition(ctx, a.ID, models.StatusWaiting, models.StatusCancelled, nil, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent claims never share a member", func(t *testing.T) {
		truncate(t, store.GetPool())
		var ids []int64
		for i := 0; i < 6; i++ {
			ids = append(ids, insertShared(t, repo, fmt.Sprintf("u%d", i), 9, 0).ID)
		}

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := repo.ClaimGroup(ctx, []int64{ids[i+1], ids[i]}, fmt.Sprintf("g%d", i), 100)
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		groups := map[string]int{}
		for _, id := range ids {
			r, err := repo.GetByID(ctx, id)
			require.NoError(t, err)
			if r.GroupID != nil {
				require.NotNil(t, r.Fare)
				groups[*r.GroupID]++
			}
		}
		assert.NotEmpty(t, groups)
		for g, n := range groups {
			assert.Equal(t, 2, n, "group %s", g)
		}
	})
}
