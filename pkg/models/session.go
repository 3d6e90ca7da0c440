package models

import "time"

type Stage string

const (
	StageIdle         Stage = "IDLE"
	StageHaveRoute    Stage = "HAVE_ROUTE"
	StageHaveRideType Stage = "HAVE_RIDE_TYPE"
	StageHaveTime     Stage = "HAVE_TIME"
	StageHavePayment  Stage = "HAVE_PAYMENT"
)

// Session accumulates a draft reservation across conversation turns.
type Session struct {
	UserID        string    `json:"user_id"`
	Stage         Stage     `json:"stage"`
	Origin        string    `json:"origin,omitempty"`
	Destination   string    `json:"destination,omitempty"`
	RideType      RideType  `json:"ride_type,omitempty"`
	RequestedTime TimeOfDay `json:"requested_time"`
	UpdatedAt     time.Time `json:"updated_at"`
}
