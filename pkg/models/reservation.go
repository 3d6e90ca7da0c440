package models

import (
	"fmt"
	"time"
)

type RideType string

const (
	RideTypeSolo   RideType = "SOLO"
	RideTypeShared RideType = "SHARED"
)

type ReservationStatus string

const (
	StatusDraft     ReservationStatus = "DRAFT"
	StatusWaiting   ReservationStatus = "WAITING"
	StatusMatched   ReservationStatus = "MATCHED"
	StatusCancelled ReservationStatus = "CANCELLED"
)

// Terminal reports whether no further transition is allowed out of s.
func (s ReservationStatus) Terminal() bool {
	return s == StatusMatched || s == StatusCancelled
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Distance is the absolute difference between two times of day. There is no
// wrap-around at midnight: 23:55 and 00:05 are 23h50m apart.
func (t TimeOfDay) Distance(o TimeOfDay) time.Duration {
	d := t.Minutes() - o.Minutes()
	if d < 0 {
		d = -d
	}
	return time.Duration(d) * time.Minute
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

type Reservation struct {
	ID            int64             `json:"id"`
	UserID        string            `json:"user_id"`
	Origin        string            `json:"origin"`
	Destination   string            `json:"destination"`
	RideType      RideType          `json:"ride_type"`
	RequestedTime TimeOfDay         `json:"requested_time"`
	PaymentMethod string            `json:"payment_method"`
	Status        ReservationStatus `json:"status"`
	GroupID       *string           `json:"group_id,omitempty"`
	Fare          *int              `json:"fare,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// MatchResult describes a group formed by the matching engine.
type MatchResult struct {
	GroupID string        `json:"group_id"`
	Fare    int           `json:"fare"`
	Members []Reservation `json:"members"`
}
