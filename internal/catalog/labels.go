package catalog

import (
	"strings"
	"unicode"
)

// accentRestore maps flat config tokens back to their accented display form.
// Config keys are ASCII by convention; labels shown to customers are not.
var accentRestore = map[string]string{
	"unas":       "uñas",
	"pestanas":   "pestañas",
	"acrilicas":  "acrílicas",
	"acrilico":   "acrílico",
	"diseno":     "diseño",
	"frances":    "francés",
	"francesa":   "francesa",
	"extension":  "extensión",
	"depilacion": "depilación",
	"nivelacion": "nivelación",
	"clasica":    "clásica",
	"rapida":     "rápida",
	"jose":       "José",
	"maria":      "María",
	"belen":      "Belén",
	"monica":     "Mónica",
	"veronica":   "Verónica",
}

// labelTokens splits a config key into deduplicated tokens, keeping the
// original order. The split is on underscores, hyphens and spaces.
func labelTokens(key string) []string {
	fields := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	seen := make(map[string]bool, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}

// wordCase restores accents for a token and uppercases its first letter.
func wordCase(token string) string {
	if restored, ok := accentRestore[token]; ok {
		token = restored
	}
	runes := []rune(token)
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// DeriveLabel turns a config key into its display label. The derivation is
// deterministic: the same key always yields the same label.
func DeriveLabel(key string) string {
	tokens := labelTokens(key)
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if w := wordCase(tok); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}

// DeriveNameVariants returns the display-name variants for a staff key: the
// full label plus each individual name token of three or more letters.
func DeriveNameVariants(key string) []string {
	full := DeriveLabel(key)
	if full == "" {
		return nil
	}
	variants := []string{full}
	seen := map[string]bool{full: true}
	for _, tok := range labelTokens(key) {
		if len([]rune(tok)) < 3 {
			continue
		}
		w := wordCase(tok)
		if w != "" && !seen[w] {
			seen[w] = true
			variants = append(variants, w)
		}
	}
	return variants
}
