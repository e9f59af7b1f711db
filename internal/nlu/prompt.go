package nlu

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = `Eres el asistente de reservas de un salón de belleza español.
Analiza el último mensaje de la clienta y devuelve SOLO un objeto JSON, sin explicación, con estas claves:
  "intent": "book", "cancel", "greet" u "other"
  "salon": uno de los salones listados, o "" si no se menciona
  "category": una de las categorías listadas, o "" si no se menciona
  "service": el servicio concreto mencionado, o ""
  "staff_name": nombre de la profesional pedida, o ""
  "staff_intent": "requested" si pide a alguien, "any" si dice que le da igual, "" si no dice nada
  "asap": true solo si pide la cita lo antes posible
No inventes valores: si dudas, deja el campo vacío.`

func buildUserPrompt(turn Turn) string {
	var b strings.Builder
	if len(turn.Salons) > 0 {
		fmt.Fprintf(&b, "Salones: %s\n", strings.Join(turn.Salons, ", "))
	}
	if len(turn.Categories) > 0 {
		fmt.Fprintf(&b, "Categorías: %s\n", strings.Join(turn.Categories, ", "))
	}
	if len(turn.StaffNames) > 0 {
		fmt.Fprintf(&b, "Profesionales: %s\n", strings.Join(turn.StaffNames, ", "))
	}
	if len(turn.Transcript) > 0 {
		b.WriteString("Conversación reciente:\n")
		for _, line := range turn.Transcript {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "Mensaje: %s", turn.Message)
	return b.String()
}

// parseHint decodes the model output into a Hint. Models wrap JSON in code
// fences often enough that we strip them before decoding.
func parseHint(raw string) (Hint, error) {
	cleaned := stripCodeFence(raw)
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return Hint{}, fmt.Errorf("nlu: no JSON object in model output")
	}

	var hint Hint
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &hint); err != nil {
		return Hint{}, fmt.Errorf("nlu: decode hint: %w", err)
	}
	return normalizeHint(hint), nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// normalizeHint clamps enum-ish fields to known values so a creative model
// cannot push an unexpected state into the engine.
func normalizeHint(hint Hint) Hint {
	switch hint.Intent {
	case IntentBook, IntentCancel, IntentGreet, IntentOther:
	default:
		hint.Intent = IntentUnknown
	}
	switch hint.StaffIntent {
	case StaffRequested, StaffAny:
	default:
		hint.StaffIntent = StaffUnspecified
	}
	hint.Salon = strings.ToLower(strings.TrimSpace(hint.Salon))
	hint.Category = strings.ToLower(strings.TrimSpace(hint.Category))
	hint.Service = strings.TrimSpace(hint.Service)
	hint.StaffName = strings.TrimSpace(hint.StaffName)
	if hint.StaffName != "" && hint.StaffIntent == StaffUnspecified {
		hint.StaffIntent = StaffRequested
	}
	return hint
}
