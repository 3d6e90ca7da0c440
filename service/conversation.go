package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carpoolbot/pkg/errs"
	"carpoolbot/pkg/intent"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/metrics"
	"carpoolbot/pkg/models"
	"carpoolbot/storage"
)

type ConversationService interface {
	// Handle consumes one inbound line and always returns a reply for the
	// sender. A non-nil error means the reply is the "busy" notice and
	// nothing was changed.
	Handle(ctx context.Context, in models.Inbound) (models.OutboundMessage, error)
}

type conversationService struct {
	sessions     storage.ISessionStorage
	reservations ReservationService
	matching     MatchingService
	locks        *userLocks
	timeout      time.Duration
	log          logger.ILogger
}

func NewConversationService(sessions storage.ISessionStorage, reservations ReservationService, matching MatchingService, timeout time.Duration, log logger.ILogger) ConversationService {
	return &conversationService{
		sessions:     sessions,
		reservations: reservations,
		matching:     matching,
		locks:        newUserLocks(),
		timeout:      timeout,
		log:          log,
	}
}

func (s *conversationService) Handle(ctx context.Context, in models.Inbound) (models.OutboundMessage, error) {
	unlock := s.locks.Lock(in.UserID)
	defer unlock()

	it := intent.Classify(in.Text)
	metrics.IntentsTotal.WithLabelValues(it.Name()).Inc()
	s.log.Debug("inbound",
		logger.String("user_id", in.UserID),
		logger.String("intent", it.Name()),
	)

	switch it.(type) {
	case intent.QueryStatus:
		return s.queryStatus(ctx, in.UserID)
	case intent.Cancel:
		return s.cancel(ctx, in.UserID)
	}

	sess, err := s.getSession(ctx, in.UserID)
	if err != nil {
		return s.busy(in.UserID, err)
	}
	if sess == nil {
		return s.startDraft(ctx, in.UserID, it)
	}

	switch sess.Stage {
	case models.StageHaveRoute:
		return s.onRideType(ctx, sess, it)
	case models.StageHaveRideType:
		return s.onTime(ctx, sess, it)
	case models.StageHaveTime:
		return s.onPayment(ctx, sess, it)
	default:
		// Stale or unknown stage; start over.
		if err := s.removeSession(ctx, in.UserID); err != nil {
			return s.busy(in.UserID, err)
		}
		return s.startDraft(ctx, in.UserID, it)
	}
}

func (s *conversationService) queryStatus(ctx context.Context, userID string) (models.OutboundMessage, error) {
	r, err := s.reservations.Latest(ctx, userID)
	if err != nil {
		return s.busy(userID, err)
	}
	return reply(userID, FormatStatus(r)), nil
}

func (s *conversationService) cancel(ctx context.Context, userID string) (models.OutboundMessage, error) {
	r, err := s.reservations.Cancel(ctx, userID)
	if err != nil {
		return s.busy(userID, err)
	}
	if r == nil {
		return reply(userID, msg("nothing_to_cancel")), nil
	}
	return reply(userID, msg("cancelled")), nil
}

func (s *conversationService) startDraft(ctx context.Context, userID string, it intent.Intent) (models.OutboundMessage, error) {
	route, ok := it.(intent.SetRoute)
	if !ok {
		return reply(userID, msg("ask_route")), nil
	}

	sess := &models.Session{
		UserID:      userID,
		Stage:       models.StageHaveRoute,
		Origin:      route.Origin,
		Destination: route.Destination,
	}
	if err := s.putSession(ctx, sess); err != nil {
		return s.busy(userID, err)
	}
	out := reply(userID, fmt.Sprintf(msg("ask_ride_type"), route.Origin, route.Destination))
	out.SuggestedReplies = []string{intent.SharedReply, intent.SoloReply}
	return out, nil
}

func (s *conversationService) onRideType(ctx context.Context, sess *models.Session, it intent.Intent) (models.OutboundMessage, error) {
	switch v := it.(type) {
	case intent.SetRideType:
		sess.RideType = v.RideType
		sess.Stage = models.StageHaveRideType
		if err := s.putSession(ctx, sess); err != nil {
			return s.busy(sess.UserID, err)
		}
		return reply(sess.UserID, msg("ask_time")), nil
	case intent.Unrecognized:
		out := reply(sess.UserID, msg("bad_ride_type"))
		out.SuggestedReplies = []string{intent.SharedReply, intent.SoloReply}
		return out, nil
	default:
		out := reply(sess.UserID, msg("finish_ride_type"))
		out.SuggestedReplies = []string{intent.SharedReply, intent.SoloReply}
		return out, nil
	}
}

func (s *conversationService) onTime(ctx context.Context, sess *models.Session, it intent.Intent) (models.OutboundMessage, error) {
	switch v := it.(type) {
	case intent.SetTime:
		sess.RequestedTime = v.Time
		sess.Stage = models.StageHaveTime
		if err := s.putSession(ctx, sess); err != nil {
			return s.busy(sess.UserID, err)
		}
		out := reply(sess.UserID, fmt.Sprintf(msg("ask_payment"),
			sess.Origin,
			sess.Destination,
			sess.RequestedTime,
			rideTypeLabels[sess.RideType],
		))
		out.SuggestedReplies = append([]string(nil), intent.PaymentLabels...)
		return out, nil
	case intent.Unrecognized:
		return reply(sess.UserID, msg("bad_time")), nil
	default:
		return reply(sess.UserID, msg("finish_time")), nil
	}
}

func (s *conversationService) onPayment(ctx context.Context, sess *models.Session, it intent.Intent) (models.OutboundMessage, error) {
	switch v := it.(type) {
	case intent.SetPayment:
		return s.finalize(ctx, sess, v.Label)
	case intent.Unrecognized:
		out := reply(sess.UserID, msg("bad_payment"))
		out.SuggestedReplies = append([]string(nil), intent.PaymentLabels...)
		return out, nil
	default:
		out := reply(sess.UserID, msg("finish_payment"))
		out.SuggestedReplies = append([]string(nil), intent.PaymentLabels...)
		return out, nil
	}
}

// finalize persists the draft, drops the session and runs matching. When
// the insert fails the session is kept so the user can resend the payment.
func (s *conversationService) finalize(ctx context.Context, sess *models.Session, payment string) (models.OutboundMessage, error) {
	created, err := s.reservations.Create(ctx, &models.Reservation{
		UserID:        sess.UserID,
		Origin:        sess.Origin,
		Destination:   sess.Destination,
		RideType:      sess.RideType,
		RequestedTime: sess.RequestedTime,
		PaymentMethod: payment,
		Status:        models.StatusDraft,
	})
	if err != nil {
		return s.busy(sess.UserID, err)
	}

	if err := s.removeSession(ctx, sess.UserID); err != nil {
		// The reservation exists; a leftover draft only costs the user a restart.
		s.log.Warning("failed to drop finished session",
			logger.String("user_id", sess.UserID),
			logger.Error(err),
		)
	}

	if created.RideType != models.RideTypeShared {
		return reply(sess.UserID, msg("booked_solo")), nil
	}

	lines := []string{msg("booked")}
	result, err := s.matching.Match(ctx, created)
	switch {
	case err != nil:
		s.log.Error("matching failed, reservation left waiting",
			logger.Int64("reservation_id", created.ID),
			logger.Error(err),
		)
		lines = append(lines, msg("waiting"))
	case result != nil:
		lines = append(lines, formatMatched(result))
	default:
		lines = append(lines, msg("waiting"))
	}
	return reply(sess.UserID, strings.Join(lines, "\n")), nil
}

func (s *conversationService) getSession(ctx context.Context, userID string) (*models.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, errs.Unavailable(err, "get session")
	}
	return sess, nil
}

func (s *conversationService) putSession(ctx context.Context, sess *models.Session) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return errs.Unavailable(s.sessions.Put(ctx, sess), "put session")
}

func (s *conversationService) removeSession(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return errs.Unavailable(s.sessions.Remove(ctx, userID), "remove session")
}

func (s *conversationService) busy(userID string, err error) (models.OutboundMessage, error) {
	s.log.Error("store unavailable",
		logger.String("user_id", userID),
		logger.Error(err),
	)
	return reply(userID, msg("busy")), err
}

func reply(userID, text string) models.OutboundMessage {
	return models.OutboundMessage{Recipient: userID, Text: text}
}
