// Package whatsapp is the chat transport boundary. The actual WhatsApp
// connection (pairing, reconnects, delivery) lives in an external gateway;
// this package only parses its inbound webhook and calls its send API.
package whatsapp

import (
	"context"
	"time"
)

// Inbound is one customer message delivered by the gateway. Delivery is
// at-least-once: MessageID drives the engine's dedup guard.
type Inbound struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"` // phone in E.164
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Sender is the outbound primitive set the engine relies on.
type Sender interface {
	SendText(ctx context.Context, to, text string) error
	SendTyping(ctx context.Context, to string) error
}
