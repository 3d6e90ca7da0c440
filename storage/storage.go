package storage

import (
	"context"
	"time"

	"carpoolbot/pkg/models"
)

type IStorage interface {
	Reservation() IReservationStorage
	Close()
}

// IReservationStorage owns persisted reservations. Status changes only
// happen through TryTransition and ClaimGroup, both compare-and-set.
type IReservationStorage interface {
	// Insert persists r as WAITING and fills in ID and CreatedAt.
	Insert(ctx context.Context, r *models.Reservation) (*models.Reservation, error)
	// GetByID returns errs.ErrNotFound when no such row exists.
	GetByID(ctx context.Context, id int64) (*models.Reservation, error)
	// GetLatest returns nil, nil when the user has no reservations.
	GetLatest(ctx context.Context, userID string) (*models.Reservation, error)
	// GetLatestByStatus returns nil, nil when nothing matches.
	GetLatestByStatus(ctx context.Context, userID string, status models.ReservationStatus) (*models.Reservation, error)
	// ListWaitingCandidates returns WAITING SHARED reservations on the exact
	// route, excluding excludeUserID, oldest first.
	ListWaitingCandidates(ctx context.Context, origin, destination, excludeUserID string) ([]*models.Reservation, error)
	// TryTransition moves one reservation from -> to iff it is currently in
	// from. groupID and fare are written alongside (nil clears nothing).
	TryTransition(ctx context.Context, id int64, from, to models.ReservationStatus, groupID *string, fare *int) (bool, error)
	// ClaimGroup moves every id from WAITING to MATCHED with groupID and fare,
	// or changes nothing and reports false if any of them is not WAITING.
	ClaimGroup(ctx context.Context, ids []int64, groupID string, fare int) (bool, error)
	// ListByGroup returns the members of a group, oldest first.
	ListByGroup(ctx context.Context, groupID string) ([]*models.Reservation, error)
	// ListOpenGroupMembers returns MATCHED reservations on the exact route
	// created at or after since, oldest first.
	ListOpenGroupMembers(ctx context.Context, origin, destination string, since time.Time) ([]*models.Reservation, error)
	// JoinGroup moves id from WAITING into groupID and sets fare on every
	// member, iff id is still WAITING and the group still has exactly
	// expectedSize members. Otherwise nothing changes and it reports false.
	JoinGroup(ctx context.Context, groupID string, id int64, expectedSize int, fare int) (bool, error)
}

// ISessionStorage holds in-progress conversation drafts keyed by user.
type ISessionStorage interface {
	// Get returns nil, nil when the user has no live session.
	Get(ctx context.Context, userID string) (*models.Session, error)
	Put(ctx context.Context, s *models.Session) error
	Remove(ctx context.Context, userID string) error
}
