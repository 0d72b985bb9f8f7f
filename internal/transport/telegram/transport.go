package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/supplierbot/internal/logging"
	"github.com/dmitrijs2005/supplierbot/internal/models"
)

// retryDelay is the pause after a failed getUpdates call.
var retryDelay = 5 * time.Second

// Options configures a Transport.
type Options struct {
	// WebhookURL switches the transport to webhook mode when set.
	WebhookURL    string
	WebhookSecret string
	PollTimeout   time.Duration
}

// Transport delivers Telegram updates as events and sends replies back.
type Transport struct {
	client  *Client
	opts    Options
	logger  logging.Logger
	updates chan Update
}

func NewTransport(client *Client, opts Options, logger logging.Logger) *Transport {
	return &Transport{
		client:  client,
		opts:    opts,
		logger:  logger,
		updates: make(chan Update, 64),
	}
}

// Run polls for updates, or in webhook mode registers the webhook and
// forwards what the webhook handler receives.
func (t *Transport) Run(ctx context.Context, events chan<- models.Event) error {
	if t.opts.WebhookURL != "" {
		return t.runWebhook(ctx, events)
	}
	return t.runPoller(ctx, events)
}

func (t *Transport) runPoller(ctx context.Context, events chan<- models.Event) error {
	if err := t.client.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	t.logger.Info(ctx, "telegram polling started")

	timeout := int(t.opts.PollTimeout / time.Second)
	var offset int64

	for {
		updates, err := t.client.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.logger.Error(ctx, "get updates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if !t.forward(ctx, u, events) {
				return nil
			}
		}
	}
}

func (t *Transport) runWebhook(ctx context.Context, events chan<- models.Event) error {
	if err := t.client.SetWebhook(ctx, t.opts.WebhookURL, t.opts.WebhookSecret); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	t.logger.Info(ctx, "telegram webhook registered", "url", t.opts.WebhookURL)

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-t.updates:
			if !t.forward(ctx, u, events) {
				return nil
			}
		}
	}
}

// forward converts u and pushes it to events. It returns false once ctx is
// done.
func (t *Transport) forward(ctx context.Context, u Update, events chan<- models.Event) bool {
	ev, ok := t.toEvent(ctx, u)
	if !ok {
		return true
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (t *Transport) toEvent(ctx context.Context, u Update) (models.Event, bool) {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		m := u.Message
		ev := models.Event{SenderID: strconv.FormatInt(m.Chat.ID, 10)}
		if p, ok := largestPhoto(m.Photo); ok {
			ev.Image = &models.ImageRef{ID: p.FileID}
			return ev, true
		}
		if m.Text == "" {
			return ev, false
		}
		ev.Text = m.Text
		return ev, true

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if err := t.client.AnswerCallbackQuery(ctx, q.ID); err != nil {
			t.logger.Warn(ctx, "answer callback query failed", "error", err)
		}
		var chatID int64
		switch {
		case q.Message != nil && q.Message.Chat != nil:
			chatID = q.Message.Chat.ID
		case q.From != nil:
			chatID = q.From.ID
		default:
			return models.Event{}, false
		}
		return models.Event{SenderID: strconv.FormatInt(chatID, 10), Choice: q.Data}, true
	}
	return models.Event{}, false
}

// Send renders reply as a photo card when it has an image, falling back to
// a text message if the photo cannot be sent.
func (t *Transport) Send(ctx context.Context, to string, reply models.Reply) error {
	markup := keyboard(reply)

	if reply.ImageURL != "" {
		err := t.client.SendPhoto(ctx, to, reply.ImageURL, reply.Text, markup)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		t.logger.Warn(ctx, "send photo failed, falling back to text", "error", err)
	}
	return t.client.SendMessage(ctx, to, reply.Text, markup)
}

func (t *Transport) FetchImage(ctx context.Context, ref models.ImageRef) ([]byte, error) {
	return t.client.Download(ctx, ref.ID)
}

func keyboard(reply models.Reply) *InlineKeyboardMarkup {
	rows := reply.ChoiceRows()
	if len(rows) == 0 {
		return nil
	}
	kb := &InlineKeyboardMarkup{}
	for _, row := range rows {
		var buttons []InlineKeyboardButton
		for _, c := range row {
			buttons = append(buttons, InlineKeyboardButton{Text: c.Label, CallbackData: c.Token})
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard, buttons)
	}
	return kb
}
