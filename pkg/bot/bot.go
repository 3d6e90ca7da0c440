package bot

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cast"
	tele "gopkg.in/telebot.v3"

	"carpoolbot/config"
	"carpoolbot/pkg/logger"
	"carpoolbot/pkg/models"
	"carpoolbot/service"
)

// Sender is the part of *tele.Bot used to push messages.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Bot struct {
	Bot    *tele.Bot
	Sender Sender
	Log    logger.ILogger
	Svc    service.IServiceManager
}

var messages = map[string]map[string]string{
	"zh": {
		"welcome": "👋 歡迎使用共乘預約！\n請輸入格式：起點 到 終點\n輸入「查詢」查看預約，輸入「取消」取消等待中的預約。",
	},
}

func New(cfg *config.Config, log logger.ILogger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.TelegramBotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}
	return &Bot{
		Bot:    b,
		Sender: b,
		Log:    log,
	}, nil
}

// Register wires the conversation handlers. It is separate from New because
// the bot is also a group notification target of the services it serves.
func (b *Bot) Register(svc service.IServiceManager) {
	b.Svc = svc
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle(tele.OnText, b.handleText)
}

func (b *Bot) Start() {
	b.Log.Info("🤖 Carpool bot started...")
	b.Bot.Start()
}

func (b *Bot) Stop() {
	b.Bot.Stop()
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(messages["zh"]["welcome"], tele.RemoveKeyboard)
}

func (b *Bot) handleText(c tele.Context) error {
	in := models.Inbound{
		UserID: strconv.FormatInt(c.Sender().ID, 10),
		Text:   c.Text(),
	}
	out, err := b.Svc.Conversation().Handle(context.Background(), in)
	if err != nil {
		b.Log.Error("conversation turn failed",
			logger.String("user_id", in.UserID),
			logger.Error(err),
		)
	}
	return c.Send(out.Text, replyMarkup(out.SuggestedReplies))
}

// GroupFormed pushes the match notice to every member other than the
// initiator, who already got it as the reply to their own message.
func (b *Bot) GroupFormed(_ context.Context, event models.GroupFormedEvent) error {
	text := service.FormatGroupNotice(event)
	var first error
	for _, m := range event.Members {
		if m.UserID == event.InitiatorID {
			continue
		}
		chatID, err := cast.ToInt64E(m.UserID)
		if err != nil {
			b.Log.Debug("member is not a telegram user, skipping push",
				logger.String("user_id", m.UserID),
			)
			continue
		}
		if _, err := b.Sender.Send(&tele.User{ID: chatID}, text); err != nil {
			b.Log.Warning("failed to push group notice",
				logger.String("user_id", m.UserID),
				logger.Error(err),
			)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func replyMarkup(suggested []string) interface{} {
	if len(suggested) == 0 {
		return tele.RemoveKeyboard
	}
	menu := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	rows := make([]tele.Row, 0, (len(suggested)+1)/2)
	for i := 0; i < len(suggested); i += 2 {
		row := tele.Row{menu.Text(suggested[i])}
		if i+1 < len(suggested) {
			row = append(row, menu.Text(suggested[i+1]))
		}
		rows = append(rows, row)
	}
	menu.Reply(rows...)
	return menu
}
