package whatsapp

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// WebhookHandler receives POSTed inbound messages from the gateway.
type WebhookHandler struct {
	token   string
	publish func(r *http.Request, msg Inbound) error
	logger  *logging.Logger
}

// NewWebhookHandler builds the inbound webhook. publish is called once per
// accepted message; its error turns into a 500 so the gateway redelivers.
func NewWebhookHandler(token string, publish func(r *http.Request, msg Inbound) error, logger *logging.Logger) *WebhookHandler {
	return &WebhookHandler{token: token, publish: publish, logger: logger}
}

type inboundPayload struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// ServeHTTP handles POST /webhooks/whatsapp.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Warn("whatsapp webhook: bad payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if payload.From == "" || strings.TrimSpace(payload.Text) == "" {
		// Status callbacks and media we don't handle are acknowledged and
		// dropped so the gateway stops retrying them.
		w.WriteHeader(http.StatusOK)
		return
	}

	msg := Inbound{
		MessageID: payload.MessageID,
		From:      payload.From,
		Text:      payload.Text,
		Timestamp: time.Unix(payload.Timestamp, 0),
	}
	if err := h.publish(r, msg); err != nil {
		h.logger.Error("whatsapp webhook: publish failed", "error", err, "from", msg.From)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}
