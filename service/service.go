package service

import (
	"carpoolbot/config"
	"carpoolbot/pkg/clock"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/notify"
	"carpoolbot/storage"
)

type IServiceManager interface {
	Conversation() ConversationService
	Reservation() ReservationService
	Matching() MatchingService
}

type service struct {
	conversationService ConversationService
	reservationService  ReservationService
	matchingService     MatchingService
}

func New(stg storage.IStorage, sessions storage.ISessionStorage, dispatcher notify.Dispatcher, cfg config.Config, log logger.ILogger) IServiceManager {
	return NewWithClock(stg, sessions, dispatcher, cfg, clock.NewRealClock(), log)
}

func NewWithClock(stg storage.IStorage, sessions storage.ISessionStorage, dispatcher notify.Dispatcher, cfg config.Config, clk clock.Clock, log logger.ILogger) IServiceManager {
	reservations := NewReservationService(stg, cfg.StoreTimeout, log)
	matching := NewMatchingService(stg, dispatcher, MatchingConfigFrom(cfg), SameRoute, clk, log)
	return &service{
		conversationService: NewConversationService(sessions, reservations, matching, cfg.StoreTimeout, log),
		reservationService:  reservations,
		matchingService:     matching,
	}
}

func (s *service) Conversation() ConversationService {
	return s.conversationService
}

func (s *service) Reservation() ReservationService {
	return s.reservationService
}

func (s *service) Matching() MatchingService {
	return s.matchingService
}
