package notify

import (
	"context"
	"fmt"

	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// Service tells the salon team about situations that need a human: right now
// that is a booking whose backend commit exhausted its retries.
type Service struct {
	email      EmailSender
	salonEmail string
	logger     *logging.Logger
}

// NewService creates a notification service. A nil sender or empty recipient
// disables sending; BookingFailed then only logs.
func NewService(email EmailSender, salonEmail string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:      email,
		salonEmail: salonEmail,
		logger:     logger,
	}
}

// BookingFailed reports a terminal commit failure. The customer has already
// been told a human will follow up, so failures here are logged, not
// propagated.
func (s *Service) BookingFailed(ctx context.Context, phone, detail string) {
	s.logger.Error("booking failed after retries", "phone", phone, "detail", detail)
	if s.email == nil || s.salonEmail == "" {
		return
	}

	msg := EmailMessage{
		To:      s.salonEmail,
		Subject: fmt.Sprintf("Reserva fallida - %s", phone),
		Body: fmt.Sprintf(`No se pudo confirmar una reserva por WhatsApp.

Teléfono: %s
Error: %s

La clienta está esperando que alguien la llame para cerrar la cita.`, phone, detail),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send booking-failed email", "error", err, "to", s.salonEmail)
	}
}
