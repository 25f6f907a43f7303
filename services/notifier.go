package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"pricewatch/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier forwards a detected drop to some downstream channel. Notifiers
// consume core outputs; their failures are logged by the scan loop and never
// abort a run.
type Notifier interface {
	NotifyDrop(ctx context.Context, event *models.DropEvent, obs *models.PriceObservation) error
}

// LogNotifier prints drop banners to the process log. Used when no delivery
// channel is configured.
type LogNotifier struct{}

func (LogNotifier) NotifyDrop(_ context.Context, event *models.DropEvent, _ *models.PriceObservation) error {
	log.Printf("🔥 PRICE DROP for %s at %s: %s", event.ProductID, event.RetailerID, event.Reason)
	return nil
}

// TelegramNotifier delivers drop alerts to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier authenticates the bot and binds it to a chat.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %v", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NotifyDrop sends a drop message to the configured chat.
func (t *TelegramNotifier) NotifyDrop(_ context.Context, event *models.DropEvent, obs *models.PriceObservation) error {
	text := fmt.Sprintf(
		"🔥 Price drop: %s\n%.2f → %.2f %s (-%.1f%%)\nRetailer: %s\n%s",
		event.ProductID, event.OldPrice, event.NewPrice, obs.Currency,
		event.PercentChange*100, event.RetailerID, obs.URL,
	)

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram alert: %v", err)
	}
	return nil
}

// EmailConfig carries SMTP delivery settings. Built once at startup and
// passed in; the notifier never reads ambient environment state.
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromName   string
	Recipients []string
}

// EmailNotifier delivers drop alerts over SMTP with STARTTLS.
type EmailNotifier struct {
	cfg EmailConfig
}

func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	return &EmailNotifier{cfg: cfg}
}

// NotifyDrop emails a plain-text alert to every configured recipient.
func (e *EmailNotifier) NotifyDrop(_ context.Context, event *models.DropEvent, obs *models.PriceObservation) error {
	if len(e.cfg.Recipients) == 0 {
		return errors.New("no email recipients configured")
	}

	subject := fmt.Sprintf("Price Drop Alert: %s", event.ProductID)
	body := fmt.Sprintf(
		"Price drop detected for %s\n\nPrevious: %.2f %s\nCurrent:  %.2f %s (-%.1f%%)\nRetailer: %s\nLink: %s\n",
		event.ProductID,
		event.OldPrice, obs.Currency,
		event.NewPrice, obs.Currency,
		event.PercentChange*100,
		event.RetailerID, obs.URL,
	)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", e.cfg.FromName, e.cfg.Username)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(e.cfg.Recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	if err := smtp.SendMail(addr, auth, e.cfg.Username, e.cfg.Recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send email alert: %v", err)
	}
	return nil
}

// MultiNotifier fans a drop out to several channels. Every channel is
// attempted; failures are joined.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) NotifyDrop(ctx context.Context, event *models.DropEvent, obs *models.PriceObservation) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.NotifyDrop(ctx, event, obs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
