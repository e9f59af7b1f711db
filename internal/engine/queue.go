package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/anavictoriasalon/citabot/internal/channels/whatsapp"
)

// Queue is the inbound message transport. MemoryQueue serves development,
// SQSQueue production.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one raw queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// inboundJob is the queue envelope for one customer message. The webhook
// publishes it; the consumer hands it to the per-customer dispatcher.
type inboundJob struct {
	ID      string           `json:"id"`
	Message whatsapp.Inbound `json:"message"`
}

func encodeJob(msg whatsapp.Inbound) (string, error) {
	body, err := json.Marshal(inboundJob{ID: uuid.NewString(), Message: msg})
	if err != nil {
		return "", fmt.Errorf("engine: failed to encode inbound job: %w", err)
	}
	return string(body), nil
}

func decodeJob(body string) (inboundJob, error) {
	var job inboundJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return inboundJob{}, fmt.Errorf("engine: failed to decode inbound job: %w", err)
	}
	return job, nil
}
