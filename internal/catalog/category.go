package catalog

import (
	"regexp"

	"github.com/anavictoriasalon/citabot/internal/match"
)

// Coarse service categories. Values double as the keys customers are matched
// against, so they stay accent-free.
const (
	CategoryCejas    = "cejas"
	CategoryPestanas = "pestanas"
	CategoryPedicura = "pedicura"
	CategoryManicura = "manicura"
	CategoryUnas     = "unas"
)

// categoryRules are evaluated against the normalized label in order; the
// first hit wins. Eyebrows outrank eyelashes outrank pedicure outrank
// manicure outrank generic nails.
var categoryRules = []struct {
	category string
	re       *regexp.Regexp
}{
	{CategoryCejas, regexp.MustCompile(`\bcejas?\b|microblading|laminado`)},
	{CategoryPestanas, regexp.MustCompile(`pestan|lifting|extensione?s`)},
	{CategoryPedicura, regexp.MustCompile(`pedicur|\bpies\b`)},
	{CategoryManicura, regexp.MustCompile(`manicur|\bmanos\b|semipermanente`)},
	// Plural only: the singular collides with the article "una" once accents
	// are stripped ("quiero una cita").
	{CategoryUnas, regexp.MustCompile(`\bunas\b|acrilic|\bgel\b|esculpid|porcelana`)},
}

// CategoryDisplay maps a category key to its customer-facing name.
var CategoryDisplay = map[string]string{
	CategoryCejas:    "cejas",
	CategoryPestanas: "pestañas",
	CategoryPedicura: "pedicura",
	CategoryManicura: "manicura",
	CategoryUnas:     "uñas",
}

// Categories lists every category key in precedence order.
var Categories = []string{
	CategoryCejas,
	CategoryPestanas,
	CategoryPedicura,
	CategoryManicura,
	CategoryUnas,
}

// ClassifyCategory returns the coarse category for a label or free text, or
// "" when no rule matches.
func ClassifyCategory(text string) string {
	norm := match.Normalize(text)
	if norm == "" {
		return ""
	}
	for _, rule := range categoryRules {
		if rule.re.MatchString(norm) {
			return rule.category
		}
	}
	return ""
}
