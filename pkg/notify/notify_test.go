package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

type recorder struct {
	events []models.GroupFormedEvent
	err    error
}

func (r *recorder) GroupFormed(_ context.Context, e models.GroupFormedEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func sampleEvent() models.GroupFormedEvent {
	return models.GroupFormedEvent{
		GroupID:     "g-1",
		Origin:      "Station",
		Destination: "Library",
		Fare:        100,
		InitiatorID: "B",
		Members: []models.GroupMember{
			{ReservationID: 1, UserID: "A", RequestedTime: models.TimeOfDay{Hour: 9}},
			{ReservationID: 2, UserID: "B", RequestedTime: models.TimeOfDay{Hour: 9, Minute: 5}},
		},
		FormedAt: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisherKeysByGroup(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaPublisherWithWriter(w)

	require.NoError(t, pub.GroupFormed(context.Background(), sampleEvent()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "g-1", string(w.msgs[0].Key))

	var decoded models.GroupFormedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, sampleEvent(), decoded)
}

func TestKafkaPublisherError(t *testing.T) {
	pub := NewKafkaPublisherWithWriter(&fakeWriter{err: errors.New("broker down")})
	assert.Error(t, pub.GroupFormed(context.Background(), sampleEvent()))
}

func TestFanoutContinuesPastFailure(t *testing.T) {
	failing := &recorder{err: errors.New("push failed")}
	ok := &recorder{}
	f := NewFanout(logger.NewNop()).Add("push", failing).Add("log", ok).Add("plain", Log{Log: logger.NewNop()})

	err := f.GroupFormed(context.Background(), sampleEvent())
	assert.Error(t, err)
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
}
