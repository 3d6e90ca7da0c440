package postgres

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"carpoolbot/pkg/errs"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/models"
	"carpoolbot/storage"
)

const reservationColumns = `id, user_id, origin, destination, ride_type, requested_hour, requested_minute,
		payment_method, status, group_id, fare, created_at`

type reservationRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewReservationRepo(db *pgxpool.Pool, log logger.ILogger) storage.IReservationStorage {
	return &reservationRepo{db: db, log: log}
}

func (r *reservationRepo) Insert(ctx context.Context, res *models.Reservation) (*models.Reservation, error) {
	query := `
		INSERT INTO reservations (user_id, origin, destination, ride_type, requested_hour, requested_minute, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'WAITING')
		RETURNING ` + reservationColumns
	out, err := scanReservation(r.db.QueryRow(ctx, query,
		res.UserID,
		res.Origin,
		res.Destination,
		string(res.RideType),
		res.RequestedTime.Hour,
		res.RequestedTime.Minute,
		res.PaymentMethod,
	))
	if err != nil {
		r.log.Error("failed to insert reservation", logger.String("user_id", res.UserID), logger.Error(err))
		return nil, errs.Unavailable(err, "insert reservation")
	}
	return out, nil
}

func (r *reservationRepo) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	out, err := scanReservation(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.Wrap(errs.ErrNotFound, "reservation")
		}
		r.log.Error("failed to get reservation by id", logger.Int64("id", id), logger.Error(err))
		return nil, errs.Unavailable(err, "get reservation")
	}
	return out, nil
}

func (r *reservationRepo) GetLatest(ctx context.Context, userID string) (*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.getOne(ctx, "failed to get latest reservation", query, userID)
}

func (r *reservationRepo) GetLatestByStatus(ctx context.Context, userID string, status models.ReservationStatus) (*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.getOne(ctx, "failed to get latest reservation by status", query, userID, string(status))
}

func (r *reservationRepo) getOne(ctx context.Context, msg, query string, args ...interface{}) (*models.Reservation, error) {
	out, err := scanReservation(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error(msg, logger.Error(err))
		return nil, errs.Unavailable(err, "get reservation")
	}
	return out, nil
}

func (r *reservationRepo) ListWaitingCandidates(ctx context.Context, origin, destination, excludeUserID string) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'WAITING'
		  AND ride_type = 'SHARED'
		  AND origin = $1
		  AND destination = $2
		  AND user_id <> $3
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, "failed to list waiting candidates", query, origin, destination, excludeUserID)
}

func (r *reservationRepo) TryTransition(ctx context.Context, id int64, from, to models.ReservationStatus, groupID *string, fare *int) (bool, error) {
	res, err := r.db.Exec(ctx, `
		UPDATE reservations
		SET status = $3,
		    group_id = COALESCE($4::text, group_id),
		    fare = COALESCE($5::integer, fare)
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), groupID, fare)
	if err != nil {
		r.log.Error("failed to transition reservation", logger.Int64("id", id), logger.Error(err))
		return false, errs.Unavailable(err, "transition reservation")
	}
	return res.RowsAffected() == 1, nil
}

// ClaimGroup locks the rows in id order so two overlapping claims cannot
// deadlock, then updates them only if every one is still a WAITING SHARED
// reservation.
func (r *reservationRepo) ClaimGroup(ctx context.Context, ids []int64, groupID string, fare int) (bool, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.log.Error("failed to begin claim", logger.Error(err))
		return false, errs.Unavailable(err, "claim group")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, status, ride_type
		FROM reservations
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, sorted)
	if err != nil {
		r.log.Error("failed to lock group members", logger.Error(err))
		return false, errs.Unavailable(err, "claim group")
	}
	locked := 0
	claimable := true
	for rows.Next() {
		var (
			id               int64
			status, rideType string
		)
		if err := rows.Scan(&id, &status, &rideType); err != nil {
			rows.Close()
			return false, errs.Unavailable(err, "claim group")
		}
		locked++
		if status != string(models.StatusWaiting) || rideType != string(models.RideTypeShared) {
			claimable = false
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, errs.Unavailable(err, "claim group")
	}
	if !claimable || locked != len(sorted) {
		return false, nil
	}

	res, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = 'MATCHED', group_id = $2, fare = $3
		WHERE id = ANY($1) AND status = 'WAITING'
	`, sorted, groupID, fare)
	if err != nil {
		r.log.Error("failed to claim group", logger.String("group_id", groupID), logger.Error(err))
		return false, errs.Unavailable(err, "claim group")
	}
	if res.RowsAffected() != int64(len(sorted)) {
		return false, nil
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("failed to commit claim", logger.String("group_id", groupID), logger.Error(err))
		return false, errs.Unavailable(err, "claim group")
	}
	return true, nil
}

func (r *reservationRepo) ListByGroup(ctx context.Context, groupID string) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, "failed to list group members", query, groupID)
}

func (r *reservationRepo) ListOpenGroupMembers(ctx context.Context, origin, destination string, since time.Time) ([]*models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'MATCHED'
		  AND origin = $1
		  AND destination = $2
		  AND created_at >= $3
		ORDER BY created_at ASC, id ASC
	`
	return r.list(ctx, "failed to list open group members", query, origin, destination, since)
}

// JoinGroup locks the group and the joiner in id order, then recounts the
// group in a fresh statement so a join committed while we waited is seen.
func (r *reservationRepo) JoinGroup(ctx context.Context, groupID string, id int64, expectedSize int, fare int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.log.Error("failed to begin join", logger.Error(err))
		return false, errs.Unavailable(err, "join group")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id
		FROM reservations
		WHERE group_id = $1 OR id = $2
		ORDER BY id
		FOR UPDATE
	`, groupID, id)
	if err != nil {
		r.log.Error("failed to lock group for join", logger.String("group_id", groupID), logger.Error(err))
		return false, errs.Unavailable(err, "join group")
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, errs.Unavailable(err, "join group")
	}

	var size int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM reservations WHERE group_id = $1`, groupID).Scan(&size); err != nil {
		return false, errs.Unavailable(err, "join group")
	}
	if size == 0 || size != expectedSize {
		return false, nil
	}

	res, err := tx.Exec(ctx, `
		UPDATE reservations
		SET status = 'MATCHED', group_id = $1, fare = $3
		WHERE id = $2 AND status = 'WAITING' AND ride_type = 'SHARED'
	`, groupID, id, fare)
	if err != nil {
		r.log.Error("failed to join group", logger.String("group_id", groupID), logger.Int64("id", id), logger.Error(err))
		return false, errs.Unavailable(err, "join group")
	}
	if res.RowsAffected() != 1 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE reservations SET fare = $2 WHERE group_id = $1`, groupID, fare); err != nil {
		r.log.Error("failed to resplit group fare", logger.String("group_id", groupID), logger.Error(err))
		return false, errs.Unavailable(err, "join group")
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("failed to commit join", logger.String("group_id", groupID), logger.Error(err))
		return false, errs.Unavailable(err, "join group")
	}
	return true, nil
}

func (r *reservationRepo) list(ctx context.Context, msg, query string, args ...interface{}) ([]*models.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error(msg, logger.Error(err))
		return nil, errs.Unavailable(err, "list reservations")
	}
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, errs.Unavailable(err, "scan reservation")
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Unavailable(err, "list reservations")
	}
	return out, nil
}

func scanReservation(row pgx.Row) (*models.Reservation, error) {
	var (
		res              models.Reservation
		rideType, status string
	)
	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.Origin,
		&res.Destination,
		&rideType,
		&res.RequestedTime.Hour,
		&res.RequestedTime.Minute,
		&res.PaymentMethod,
		&status,
		&res.GroupID,
		&res.Fare,
		&res.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.RideType = models.RideType(rideType)
	res.Status = models.ReservationStatus(status)
	return &res, nil
}
