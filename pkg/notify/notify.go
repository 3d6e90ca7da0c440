// Package notify carries group-formed events out of the core. Delivery is
// best effort: a failed dispatch never unwinds a formed group, and members
// still see their group on the next status query.
package notify

import (
	"context"

	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/metrics"
	"carpoolbot/pkg/models"
)

type Dispatcher interface {
	GroupFormed(ctx context.Context, event models.GroupFormedEvent) error
}

// Log writes events to the service log; it is the fallback when no other
// dispatcher is configured.
type Log struct {
	Log logger.ILogger
}

func (d Log) GroupFormed(_ context.Context, event models.GroupFormedEvent) error {
	users := make([]string, 0, len(event.Members))
	for _, m := range event.Members {
		users = append(users, m.UserID)
	}
	d.Log.Info("group formed",
		logger.String("group_id", event.GroupID),
		logger.String("route", event.Origin+" -> "+event.Destination),
		logger.Int("fare", event.Fare),
		logger.Strings("members", users),
	)
	return nil
}

type named struct {
	name string
	d    Dispatcher
}

// Fanout hands each event to every registered dispatcher and keeps going
// when one of them fails.
type Fanout struct {
	log     logger.ILogger
	targets []named
}

func NewFanout(log logger.ILogger) *Fanout {
	return &Fanout{log: log}
}

func (f *Fanout) Add(name string, d Dispatcher) *Fanout {
	f.targets = append(f.targets, named{name: name, d: d})
	return f
}

func (f *Fanout) GroupFormed(ctx context.Context, event models.GroupFormedEvent) error {
	var first error
	for _, t := range f.targets {
		if err := t.d.GroupFormed(ctx, event); err != nil {
			metrics.NotificationsFailed.WithLabelValues(t.name).Inc()
			f.log.Warning("group notification failed",
				logger.String("dispatcher", t.name),
				logger.String("group_id", event.GroupID),
				logger.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
