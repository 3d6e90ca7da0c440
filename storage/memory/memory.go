// Package memory keeps reservations and sessions in process memory. It backs
// the tests and STORAGE_DRIVER=memory local runs.
package memory

import (
	"carpoolbot/pkg/clock"
	"carpoolbot/storage"
)

type Store struct {
	reservations *reservationRepo
}

func New(clk clock.Clock) *Store {
	return &Store{reservations: newReservationRepo(clk)}
}

func (s *Store) Reservation() storage.IReservationStorage { return s.reservations }

func (s *Store) Close() {}
