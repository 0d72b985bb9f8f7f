// Package transport defines the chat channel the bot talks through.
package transport

import (
	"context"

	"github.com/dmitrijs2005/supplierbot/internal/models"
)

// Transport delivers incoming events and sends replies.
type Transport interface {
	// Run feeds events until ctx is cancelled or the channel fails.
	Run(ctx context.Context, events chan<- models.Event) error

	// Send delivers reply to the conversation identified by to.
	Send(ctx context.Context, to string, reply models.Reply) error

	// FetchImage downloads the bytes behind an image attachment.
	FetchImage(ctx context.Context, ref models.ImageRef) ([]byte, error)
}
