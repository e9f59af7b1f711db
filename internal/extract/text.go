package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/anavictoriasalon/citabot/internal/match"
)

// Phrase tables for reply classification. All matching happens on the
// diacritic-folded normalized text, so "sí" and "si" are the same word.
var (
	affirmativeWords = map[string]bool{
		"si": true, "vale": true, "ok": true, "okay": true, "claro": true,
		"venga": true, "perfecto": true, "genial": true, "dale": true,
	}
	negativeWords = map[string]bool{
		"no": true, "nop": true, "tampoco": true,
	}
	indifferentPhrases = []string{
		"me da igual", "da igual", "cualquiera", "quien sea",
		"la que sea", "el que sea", "lo que sea", "no tengo preferencia",
		"me es indiferente",
	}
	asapPhrases = []string{
		"lo antes posible", "cuanto antes", "lo mas pronto posible",
		"urgente", "hoy mismo", "ahora mismo", "asap",
	}
	cancelPhrases = []string{
		"cancelar", "anular", "cancela", "anula",
		"cambiar mi cita", "cambiar la cita", "mover mi cita",
		"modificar mi cita", "reagendar", "aplazar",
	}
	greetingWords = map[string]bool{
		"hola": true, "buenas": true, "buenos": true, "hey": true, "ey": true,
	}
)

// Anchored on both ends: "el 2 de mayo no puedo" is a refusal, not a pick.
var indexPattern = regexp.MustCompile(`^(?:la |el |opcion )?(\d{1,2})$`)

// InputClass buckets a message for the stage transition table.
type InputClass int

const (
	InputFreeText InputClass = iota
	InputNumeric
	InputAffirmative
	InputNegative
	InputIndifferent
)

// Classify buckets a normalized message. Numeric wins over everything, the
// short reply classes only fire for messages that are essentially just the
// phrase, so "no quiero pedicura" stays free text.
func Classify(text string) InputClass {
	norm := match.Normalize(text)
	if _, ok := ParseIndex(norm); ok {
		return InputNumeric
	}
	words := strings.Fields(norm)
	if len(words) > 0 && len(words) <= 2 {
		if affirmativeWords[words[0]] {
			return InputAffirmative
		}
		if negativeWords[words[0]] {
			return InputNegative
		}
	}
	if IsIndifferent(norm) {
		return InputIndifferent
	}
	return InputFreeText
}

// ParseIndex reads a 1-based option number from a message that is only that
// pick ("2", "la 2", "opcion 2").
func ParseIndex(text string) (int, bool) {
	norm := match.Normalize(text)
	m := indexPattern.FindStringSubmatch(norm)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// IsIndifferent detects "pick for me" phrasing.
func IsIndifferent(text string) bool {
	return containsAnyPhrase(match.Normalize(text), indifferentPhrases)
}

// IsASAP detects urgency phrasing.
func IsASAP(text string) bool {
	return containsAnyPhrase(match.Normalize(text), asapPhrases)
}

// IsCancelIntent detects cancellation or reschedule requests, which the bot
// always redirects to the salon phone regardless of stage.
func IsCancelIntent(text string) bool {
	return containsAnyPhrase(match.Normalize(text), cancelPhrases)
}

// IsGreeting reports a bare greeting with no booking content.
func IsGreeting(text string) bool {
	words := strings.Fields(match.Normalize(text))
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	return greetingWords[words[0]]
}

func containsAnyPhrase(norm string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

// salonKeywords maps spoken location references to salon keys. Lookup order
// is fixed so overlapping mentions resolve deterministically.
var salonKeywords = []struct {
	phrase string
	salon  string
}{
	{"torremolinos", "torremolinos"},
	{"centro", "centro"},
	{"malaga", "centro"},
}

// SalonFromText finds an explicit salon mention.
func SalonFromText(text string) (string, bool) {
	norm := match.Normalize(text)
	for _, kw := range salonKeywords {
		if strings.Contains(norm, kw.phrase) {
			return kw.salon, true
		}
	}
	return "", false
}
