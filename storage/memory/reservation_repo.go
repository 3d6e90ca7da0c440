package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"carpoolbot/pkg/clock"
	"carpoolbot/pkg/errs"
	"carpoolbot/pkg/models"
)

type reservationRepo struct {
	mu     sync.Mutex
	clk    clock.Clock
	nextID int64
	rows   map[int64]*models.Reservation
}

func newReservationRepo(clk clock.Clock) *reservationRepo {
	return &reservationRepo{clk: clk, rows: make(map[int64]*models.Reservation)}
}

func (r *reservationRepo) Insert(ctx context.Context, res *models.Reservation) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err, "insert reservation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	row := *res
	row.ID = r.nextID
	row.Status = models.StatusWaiting
	row.GroupID = nil
	row.Fare = nil
	row.CreatedAt = r.clk.Now()
	r.rows[row.ID] = &row

	out := row
	return &out, nil
}

func (r *reservationRepo) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err, "get reservation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, errs.Wrap(errs.ErrNotFound, "reservation")
	}
	return clone(row), nil
}

func (r *reservationRepo) GetLatest(ctx context.Context, userID string) (*models.Reservation, error) {
	return r.latest(ctx, userID, func(*models.Reservation) bool { return true })
}

func (r *reservationRepo) GetLatestByStatus(ctx context.Context, userID string, status models.ReservationStatus) (*models.Reservation, error) {
	return r.latest(ctx, userID, func(row *models.Reservation) bool { return row.Status == status })
}

func (r *reservationRepo) latest(ctx context.Context, userID string, keep func(*models.Reservation) bool) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err, "get latest reservation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *models.Reservation
	for _, row := range r.rows {
		if row.UserID != userID || !keep(row) {
			continue
		}
		if best == nil || newer(row, best) {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	return clone(best), nil
}

func (r *reservationRepo) ListWaitingCandidates(ctx context.Context, origin, destination, excludeUserID string) ([]*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err, "list candidates")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sorted(func(row *models.Reservation) bool {
		return row.Status == models.StatusWaiting &&
			row.RideType == models.RideTypeShared &&
			row.Origin == origin &&
			row.Destination == destination &&
			row.UserID != excludeUserID
	}), nil
}

func (r *reservationRepo) TryTransition(ctx context.Context, id int64, from, to models.ReservationStatus, groupID *string, fare *int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errs.Unavailable(err, "transition reservation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.Status != from {
		return false, nil
	}
	if groupID != nil && row.RideType != models.RideTypeShared {
		return false, errs.Wrap(errs.ErrInvalidTransition, "solo reservation cannot join a group")
	}
	row.Status = to
	if groupID != nil {
		g := *groupID
		row.GroupID = &g
	}
	if fare != nil {
		f := *fare
		row.Fare = &f
	}
	return true, nil
}

func (r *reservationRepo) ClaimGroup(ctx context.Context, ids []int64, groupID string, fare int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errs.Unavailable(err, "claim group")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		row, ok := r.rows[id]
		if !ok || row.Status != models.StatusWaiting || row.RideType != models.RideTypeShared {
			return false, nil
		}
	}
	for _, id := range ids {
		row := r.rows[id]
		g, f := groupID, fare
		row.Status = models.StatusMatched
		row.GroupID = &g
		row.Fare = &f
	}
	return true, nil
}

func (r *reservationRepo) ListByGroup(ctx context.Context, groupID string) ([]*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err, "list group")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sorted(func(row *models.Reservation) bool {
		return row.GroupID != nil && *row.GroupID == groupID
	}), nil
}

func (r *reservationRepo) ListOpenGroupMembers(ctx context.Context, origin, destination string, since time.Time) ([]*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable(err, "list open groups")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sorted(func(row *models.Reservation) bool {
		return row.Status == models.StatusMatched &&
			row.Origin == origin &&
			row.Destination == destination &&
			!row.CreatedAt.Before(since)
	}), nil
}

func (r *reservationRepo) JoinGroup(ctx context.Context, groupID string, id int64, expectedSize int, fare int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errs.Unavailable(err, "join group")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	joiner, ok := r.rows[id]
	if !ok || joiner.Status != models.StatusWaiting || joiner.RideType != models.RideTypeShared {
		return false, nil
	}
	var members []*models.Reservation
	for _, row := range r.rows {
		if row.GroupID != nil && *row.GroupID == groupID {
			members = append(members, row)
		}
	}
	if len(members) == 0 || len(members) != expectedSize {
		return false, nil
	}

	g := groupID
	joiner.Status = models.StatusMatched
	joiner.GroupID = &g
	for _, row := range append(members, joiner) {
		f := fare
		row.Fare = &f
	}
	return true, nil
}

// sorted must be called with r.mu held.
func (r *reservationRepo) sorted(keep func(*models.Reservation) bool) []*models.Reservation {
	var out []*models.Reservation
	for _, row := range r.rows {
		if keep(row) {
			out = append(out, clone(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j], out[i]) })
	return out
}

// newer orders by created_at, ties broken by id.
func newer(a, b *models.Reservation) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func clone(row *models.Reservation) *models.Reservation {
	out := *row
	if row.GroupID != nil {
		g := *row.GroupID
		out.GroupID = &g
	}
	if row.Fare != nil {
		f := *row.Fare
		out.Fare = &f
	}
	return &out
}
