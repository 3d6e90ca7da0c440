package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"carpoolbot/config"
	"carpoolbot/pkg/clock"
	"carpoolbot/pkg/errs"
	"carpoolbot/pkg/fare"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/metrics"
	"carpoolbot/pkg/models"
	"carpoolbot/pkg/notify"
	"carpoolbot/storage"
)

// RoutePredicate decides whether two reservations travel the same route.
// The store already narrows candidates to the exact origin and destination,
// so a predicate can only tighten that.
type RoutePredicate func(a, b *models.Reservation) bool

func SameRoute(a, b *models.Reservation) bool {
	return a.Origin == b.Origin && a.Destination == b.Destination
}

type MatchingConfig struct {
	Tolerance    time.Duration
	BasePrice    int
	MaxGroupSize int
	MaxAttempts  int
	StoreTimeout time.Duration
	JoinWindow   time.Duration
}

func MatchingConfigFrom(cfg config.Config) MatchingConfig {
	return MatchingConfig{
		Tolerance:    cfg.MatchTolerance,
		BasePrice:    cfg.BasePrice,
		MaxGroupSize: cfg.MaxGroupSize,
		MaxAttempts:  cfg.MatchMaxAttempts,
		StoreTimeout: cfg.StoreTimeout,
		JoinWindow:   cfg.GroupJoinWindow,
	}
}

type MatchingService interface {
	// Match tries to place a freshly persisted reservation into a group.
	// It returns nil, nil when the reservation stays WAITING.
	Match(ctx context.Context, initiator *models.Reservation) (*models.MatchResult, error)
}

type matchingService struct {
	stg        storage.IReservationStorage
	dispatcher notify.Dispatcher
	cfg        MatchingConfig
	sameRoute  RoutePredicate
	newGroupID func() string
	clk        clock.Clock
	log        logger.ILogger
}

func NewMatchingService(stg storage.IStorage, dispatcher notify.Dispatcher, cfg MatchingConfig, sameRoute RoutePredicate, clk clock.Clock, log logger.ILogger) MatchingService {
	if sameRoute == nil {
		sameRoute = SameRoute
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &matchingService{
		stg:        stg.Reservation(),
		dispatcher: dispatcher,
		cfg:        cfg,
		sameRoute:  sameRoute,
		newGroupID: uuid.NewString,
		clk:        clk,
		log:        log,
	}
}

func (s *matchingService) Match(ctx context.Context, initiator *models.Reservation) (*models.MatchResult, error) {
	if initiator.RideType != models.RideTypeShared {
		return nil, nil
	}

	metrics.MatchAttempts.Inc()
	start := time.Now()
	defer func() { metrics.MatchLatency.Observe(time.Since(start).Seconds()) }()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		current, err := s.reload(ctx, initiator.ID)
		if err != nil {
			metrics.MatchFailures.Inc()
			return nil, err
		}
		switch current.Status {
		case models.StatusWaiting:
		case models.StatusMatched:
			// A concurrent initiator already pulled this reservation in.
			return s.existingGroup(ctx, current)
		default:
			return nil, nil
		}

		result, done, err := s.formFromWaiting(ctx, current)
		if err == nil && done && result == nil {
			result, done, err = s.joinOpenGroup(ctx, current)
		}
		if err != nil {
			metrics.MatchFailures.Inc()
			return nil, err
		}
		if !done {
			metrics.MatchConflicts.Inc()
			s.log.Debug("group claim lost, retrying",
				logger.Int64("reservation_id", current.ID),
				logger.Int("attempt", attempt),
			)
			continue
		}
		if result == nil {
			return nil, nil
		}

		metrics.GroupsFormed.Inc()
		metrics.GroupSize.Observe(float64(len(result.Members)))
		s.log.Info("carpool group formed",
			logger.String("group_id", result.GroupID),
			logger.Int("size", len(result.Members)),
			logger.Int("fare", result.Fare),
		)
		s.notify(ctx, current, result)
		return result, nil
	}

	s.log.Warning("giving up on matching after repeated conflicts",
		logger.Int64("reservation_id", initiator.ID),
		logger.Int("attempts", s.cfg.MaxAttempts),
	)
	return nil, nil
}

// formFromWaiting groups the initiator with compatible waiters. done is
// false when the claim lost a race; result is nil when nobody fits.
func (s *matchingService) formFromWaiting(ctx context.Context, initiator *models.Reservation) (*models.MatchResult, bool, error) {
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	candidates, err := s.stg.ListWaitingCandidates(sctx, initiator.Origin, initiator.Destination, initiator.UserID)
	cancel()
	if err != nil {
		return nil, false, errs.Wrap(err, "list waiting candidates")
	}

	members := s.selectMembers(initiator, candidates)
	if len(members) < 2 {
		return nil, true, nil
	}

	groupID := s.newGroupID()
	share := fare.Split(s.cfg.BasePrice, len(members))
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}

	sctx, cancel = context.WithTimeout(ctx, s.cfg.StoreTimeout)
	ok, err := s.stg.ClaimGroup(sctx, ids, groupID, share)
	cancel()
	if err != nil {
		return nil, false, errs.Wrap(err, "claim group")
	}
	if !ok {
		return nil, false, nil
	}
	return buildResult(groupID, share, members), true, nil
}

// selectMembers walks candidates oldest first and keeps each one whose time
// is within the tolerance of every member kept so far.
func (s *matchingService) selectMembers(initiator *models.Reservation, candidates []*models.Reservation) []*models.Reservation {
	members := []*models.Reservation{initiator}
	for _, c := range candidates {
		if len(members) >= s.cfg.MaxGroupSize {
			break
		}
		if c.ID == initiator.ID || c.UserID == initiator.UserID {
			continue
		}
		if c.Status != models.StatusWaiting || c.RideType != models.RideTypeShared || !s.sameRoute(initiator, c) {
			continue
		}
		if s.fitsWindow(members, c) {
			members = append(members, c)
		}
	}
	return members
}

func (s *matchingService) fitsWindow(members []*models.Reservation, c *models.Reservation) bool {
	for _, m := range members {
		if m.RequestedTime.Distance(c.RequestedTime) > s.cfg.Tolerance {
			return false
		}
	}
	return true
}

// joinOpenGroup adds the initiator to the oldest recently formed group on
// its route that still has room and whose members all fall within the
// tolerance. The fare is split again across the larger group.
func (s *matchingService) joinOpenGroup(ctx context.Context, initiator *models.Reservation) (*models.MatchResult, bool, error) {
	if s.cfg.JoinWindow <= 0 {
		return nil, true, nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	rows, err := s.stg.ListOpenGroupMembers(sctx, initiator.Origin, initiator.Destination, s.clk.Now().Add(-s.cfg.JoinWindow))
	cancel()
	if err != nil {
		return nil, false, errs.Wrap(err, "list open groups")
	}

	var order []string
	groups := map[string][]*models.Reservation{}
	for _, r := range rows {
		if r.GroupID == nil {
			continue
		}
		g := *r.GroupID
		if _, seen := groups[g]; !seen {
			order = append(order, g)
		}
		groups[g] = append(groups[g], r)
	}

	for _, g := range order {
		members := groups[g]
		if !s.canJoin(initiator, members) {
			continue
		}
		// The listing only covers recent rows; take the authoritative size.
		sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		full, err := s.stg.ListByGroup(sctx, g)
		cancel()
		if err != nil {
			return nil, false, errs.Wrap(err, "list group")
		}
		if !s.canJoin(initiator, full) {
			continue
		}

		share := fare.Split(s.cfg.BasePrice, len(full)+1)
		sctx, cancel = context.WithTimeout(ctx, s.cfg.StoreTimeout)
		ok, err := s.stg.JoinGroup(sctx, g, initiator.ID, len(full), share)
		cancel()
		if err != nil {
			return nil, false, errs.Wrap(err, "join group")
		}
		if !ok {
			return nil, false, nil
		}
		return buildResult(g, share, append(full, initiator)), true, nil
	}
	return nil, true, nil
}

func (s *matchingService) canJoin(initiator *models.Reservation, members []*models.Reservation) bool {
	if len(members) == 0 || len(members) >= s.cfg.MaxGroupSize {
		return false
	}
	for _, m := range members {
		if m.UserID == initiator.UserID || !s.sameRoute(initiator, m) {
			return false
		}
	}
	return s.fitsWindow(members, initiator)
}

func (s *matchingService) reload(ctx context.Context, id int64) (*models.Reservation, error) {
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	r, err := s.stg.GetByID(sctx, id)
	if err != nil {
		return nil, errs.Wrap(err, "reload initiator")
	}
	return r, nil
}

func (s *matchingService) existingGroup(ctx context.Context, r *models.Reservation) (*models.MatchResult, error) {
	if r.GroupID == nil || r.Fare == nil {
		return nil, nil
	}
	sctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()
	members, err := s.stg.ListByGroup(sctx, *r.GroupID)
	if err != nil {
		return nil, errs.Wrap(err, "list group")
	}
	return buildResult(*r.GroupID, *r.Fare, members), nil
}

func (s *matchingService) notify(ctx context.Context, initiator *models.Reservation, result *models.MatchResult) {
	if s.dispatcher == nil {
		return
	}
	event := models.GroupFormedEvent{
		GroupID:     result.GroupID,
		Origin:      initiator.Origin,
		Destination: initiator.Destination,
		Fare:        result.Fare,
		InitiatorID: initiator.UserID,
		FormedAt:    s.clk.Now(),
	}
	for _, m := range result.Members {
		event.Members = append(event.Members, models.GroupMember{
			ReservationID: m.ID,
			UserID:        m.UserID,
			RequestedTime: m.RequestedTime,
		})
	}
	if err := s.dispatcher.GroupFormed(ctx, event); err != nil {
		s.log.Warning("group notification not delivered",
			logger.String("group_id", result.GroupID),
			logger.Error(err),
		)
	}
}

func buildResult(groupID string, share int, members []*models.Reservation) *models.MatchResult {
	out := &models.MatchResult{GroupID: groupID, Fare: share}
	for _, m := range members {
		cp := *m
		g, f := groupID, share
		cp.Status = models.StatusMatched
		cp.GroupID = &g
		cp.Fare = &f
		out.Members = append(out.Members, cp)
	}
	return out
}
