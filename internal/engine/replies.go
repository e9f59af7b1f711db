package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/anavictoriasalon/citabot/internal/catalog"
	"github.com/anavictoriasalon/citabot/internal/extract"
)

// All customer-facing copy lives here so the state machine reads as pure
// transition logic.

const (
	replyRedirect = "Para cambiar o cancelar una cita ya reservada, llámanos al salón y te ayudamos enseguida. 😊"
	replyIdentity = "¡Perfecto! Para confirmar la reserva necesito tu nombre completo y tu email, por ejemplo: Laura Gómez, laura@ejemplo.com"
	replyFailed   = "No he podido confirmar la cita ahora mismo. Una compañera del salón te escribirá en breve para cerrarla, ¡no te preocupes!"
	replyRecover  = "Uy, algo no ha ido bien por aquí. ¿Me dices de nuevo en qué salón y qué servicio te gustaría?"

	replyAgendaDown = "No consigo consultar la agenda en este momento. Inténtalo de nuevo en unos minutos, por favor."
)

var spanishDays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

var spanishMonths = [...]string{"", "enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

// formatSlot renders an instant in salon-local civil Spanish, e.g.
// "martes 1 de septiembre a las 10:00".
func formatSlot(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	return fmt.Sprintf("%s %d de %s a las %02d:%02d",
		spanishDays[t.Weekday()], t.Day(), spanishMonths[t.Month()], t.Hour(), t.Minute())
}

func replyWelcome() string {
	return "¡Hola! Soy el asistente de Ana Victoria Salón. ¿Qué servicio te gustaría reservar y en qué salón, Centro o Torremolinos?"
}

func replyAskSalon(salons []catalog.Salon) string {
	var b strings.Builder
	b.WriteString("¿En qué salón te viene mejor?")
	for _, s := range salons {
		b.WriteString("\n• ")
		b.WriteString(s.Label)
	}
	return b.String()
}

func replyServiceList(category string, choices []extract.Choice) string {
	var b strings.Builder
	if display, ok := catalog.CategoryDisplay[category]; ok && category != "" {
		fmt.Fprintf(&b, "Para %s tenemos estas opciones. Responde con el número:", strings.ToLower(display))
	} else {
		b.WriteString("Estos son nuestros servicios. Responde con el número:")
	}
	for _, c := range choices {
		fmt.Fprintf(&b, "\n%d. %s", c.Index, c.Label)
	}
	return b.String()
}

func replyStaffList(choices []extract.Choice) string {
	var b strings.Builder
	b.WriteString("¿Con quién prefieres la cita? Responde con el número, o \"me da igual\" y te asignamos a la primera disponible:")
	for _, c := range choices {
		fmt.Fprintf(&b, "\n%d. %s", c.Index, c.Label)
	}
	return b.String()
}

func replyTimeList(slots []extract.OfferedSlot, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("Te propongo estos horarios. Responde con el número:")
	for i, s := range slots {
		fmt.Fprintf(&b, "\n%d. %s", i+1, formatSlot(s.StartAt, loc))
	}
	return b.String()
}

func replyConfirmSwitch(staffLabel, salonLabel string) string {
	return fmt.Sprintf("%s atiende en nuestro salón de %s. ¿Quieres que la cita sea allí? (sí/no)", staffLabel, salonLabel)
}

func replyIdentityList(choices []extract.Choice) string {
	var b strings.Builder
	b.WriteString("He encontrado varias fichas con tu teléfono. ¿Cuál eres tú? Responde con el número:")
	for _, c := range choices {
		fmt.Fprintf(&b, "\n%d. %s", c.Index, c.Label)
	}
	return b.String()
}

func replyConfirmed(serviceLabel, staffLabel string, startAt time.Time, loc *time.Location) string {
	when := formatSlot(startAt, loc)
	if staffLabel != "" {
		return fmt.Sprintf("¡Reserva confirmada! %s con %s, %s. ¡Te esperamos! 💅", serviceLabel, staffLabel, when)
	}
	return fmt.Sprintf("¡Reserva confirmada! %s, %s. ¡Te esperamos! 💅", serviceLabel, when)
}
