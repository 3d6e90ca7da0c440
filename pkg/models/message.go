package models

import "time"

type Inbound struct {
	UserID string `json:"user_id" binding:"required"`
	Text   string `json:"text"`
}

type OutboundMessage struct {
	Recipient        string   `json:"recipient"`
	Text             string   `json:"text"`
	SuggestedReplies []string `json:"suggested_replies,omitempty"`
}

type GroupMember struct {
	ReservationID int64     `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	RequestedTime TimeOfDay `json:"requested_time"`
}

// GroupFormedEvent asks the notification dispatcher to tell every member
// about their new group.
type GroupFormedEvent struct {
	GroupID     string        `json:"group_id"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Fare        int           `json:"fare"`
	InitiatorID string        `json:"initiator_id"`
	Members     []GroupMember `json:"members"`
	FormedAt    time.Time     `json:"formed_at"`
}
