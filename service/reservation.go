package service

import (
	"context"
	"time"

	"carpoolbot/pkg/errs"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/metrics"
	"carpoolbot/pkg/models"
	"carpoolbot/storage"
)

type ReservationService interface {
	// Create persists a finalized draft as WAITING.
	Create(ctx context.Context, r *models.Reservation) (*models.Reservation, error)
	// Latest returns nil, nil when the user never booked.
	Latest(ctx context.Context, userID string) (*models.Reservation, error)
	// Cancel moves the user's latest WAITING reservation to CANCELLED. It
	// returns nil, nil when there is nothing to cancel.
	Cancel(ctx context.Context, userID string) (*models.Reservation, error)
}

type reservationService struct {
	stg     storage.IReservationStorage
	timeout time.Duration
	log     logger.ILogger
}

func NewReservationService(stg storage.IStorage, timeout time.Duration, log logger.ILogger) ReservationService {
	return &reservationService{
		stg:     stg.Reservation(),
		timeout: timeout,
		log:     log,
	}
}

func (s *reservationService) Create(ctx context.Context, r *models.Reservation) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.stg.Insert(ctx, r)
	if err != nil {
		return nil, errs.Unavailable(err, "create reservation")
	}
	metrics.ReservationsCreated.WithLabelValues(string(created.RideType)).Inc()
	s.log.Info("reservation created",
		logger.Int64("reservation_id", created.ID),
		logger.String("user_id", created.UserID),
		logger.String("ride_type", string(created.RideType)),
	)
	return created, nil
}

func (s *reservationService) Latest(ctx context.Context, userID string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.stg.GetLatest(ctx, userID)
	if err != nil {
		return nil, errs.Unavailable(err, "latest reservation")
	}
	return r, nil
}

func (s *reservationService) Cancel(ctx context.Context, userID string) (*models.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r, err := s.stg.GetLatestByStatus(ctx, userID, models.StatusWaiting)
	if err != nil {
		return nil, errs.Unavailable(err, "find waiting reservation")
	}
	if r == nil {
		return nil, nil
	}

	ok, err := s.stg.TryTransition(ctx, r.ID, models.StatusWaiting, models.StatusCancelled, nil, nil)
	if err != nil {
		return nil, errs.Unavailable(err, "cancel reservation")
	}
	if !ok {
		// Matched between the read and the update.
		return nil, nil
	}

	metrics.ReservationsCancelled.Inc()
	s.log.Info("reservation cancelled",
		logger.Int64("reservation_id", r.ID),
		logger.String("user_id", userID),
	)
	r.Status = models.StatusCancelled
	return r, nil
}
