package match

import (
	"sort"
	"strings"
)

// ServiceCandidate is one catalog service offered to the scorer. Aliases are
// extra normalized keywords that should count as strong evidence for the
// candidate, e.g. "semi" for a semi-permanent manicure.
type ServiceCandidate struct {
	Key     string
	Label   string
	Aliases []string
}

const (
	aliasHitScore     = 6.0
	exactLabelScore   = 5.0
	substringScore    = 3.0
	tokenOverlapScore = 1.0
	maxTokenOverlap   = 3.0

	// serviceThreshold is the minimum score a top candidate needs before the
	// matcher commits to it. Below it the matcher reports no match rather
	// than guessing.
	serviceThreshold = 3.0
)

// ServiceMatch is the accepted result of MatchService.
type ServiceMatch struct {
	Key   string
	Label string
	Score float64
}

// MatchService scores text against the candidate pool and returns the single
// best candidate above the acceptance threshold. Identical input always
// produces the identical result: candidates are scored in a stable order and
// ties keep the earliest candidate.
func MatchService(text string, candidates []ServiceCandidate) (ServiceMatch, bool) {
	norm := Normalize(text)
	if norm == "" || len(candidates) == 0 {
		return ServiceMatch{}, false
	}
	textTokens := Tokens(norm)

	best := ServiceMatch{}
	found := false
	for _, c := range candidates {
		score := scoreService(norm, textTokens, c)
		if !found || score > best.Score {
			best = ServiceMatch{Key: c.Key, Label: c.Label, Score: score}
			found = true
		}
	}
	if !found || best.Score < serviceThreshold {
		return ServiceMatch{}, false
	}
	return best, true
}

func scoreService(norm string, textTokens []string, c ServiceCandidate) float64 {
	labelNorm := Normalize(c.Label)
	var score float64

	for _, alias := range c.Aliases {
		aliasNorm := Normalize(alias)
		if aliasNorm != "" && containsWord(norm, aliasNorm) {
			score += aliasHitScore
		}
	}

	if norm == labelNorm {
		score += exactLabelScore
	} else if strings.Contains(norm, labelNorm) || strings.Contains(labelNorm, norm) {
		score += substringScore
	}

	labelTokens := Tokens(labelNorm)
	overlap := 0.0
	seen := make(map[string]bool, len(labelTokens))
	for _, lt := range labelTokens {
		seen[lt] = true
	}
	for _, tt := range textTokens {
		if seen[tt] {
			overlap += tokenOverlapScore
		}
	}
	if overlap > maxTokenOverlap {
		overlap = maxTokenOverlap
	}
	score += overlap

	return score
}

// containsWord reports whether norm contains needle on word boundaries.
func containsWord(norm, needle string) bool {
	if !strings.Contains(norm, needle) {
		return false
	}
	fields := strings.Fields(norm)
	needleFields := strings.Fields(needle)
	if len(needleFields) == 0 {
		return false
	}
	for i := 0; i+len(needleFields) <= len(fields); i++ {
		ok := true
		for j, nf := range needleFields {
			if fields[i+j] != nf {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// SortCandidates orders candidates by key for deterministic scoring when the
// caller builds the pool from a map.
func SortCandidates(candidates []ServiceCandidate) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Key < candidates[j].Key })
}
