package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/gofiber/fiber/v2"
)

// enqueueTimeout bounds how long a webhook request waits for the event loop.
// Telegram redelivers updates answered with an error.
var enqueueTimeout = 5 * time.Second

// WebhookPath is where the webhook handler is mounted.
const WebhookPath = "/telegram/webhook"

// WebhookHandler accepts updates pushed by Telegram. Requests without the
// configured secret token are rejected.
func (t *Transport) WebhookHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if t.opts.WebhookSecret != "" {
			got := c.Get(common.TelegramSecretHeaderName)
			if subtle.ConstantTimeCompare([]byte(got), []byte(t.opts.WebhookSecret)) != 1 {
				return c.SendStatus(fiber.StatusUnauthorized)
			}
		}

		var u Update
		if err := json.Unmarshal(c.Body(), &u); err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}

		select {
		case t.updates <- u:
			return c.SendStatus(fiber.StatusOK)
		case <-time.After(enqueueTimeout):
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}
	}
}
