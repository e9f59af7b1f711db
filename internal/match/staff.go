package match

// StaffCandidate is one staff member with every display-name variant the
// catalog derived for them.
type StaffCandidate struct {
	ID       string
	Label    string
	Variants []string
}

// staffSimilarityThreshold is the minimum normalized edit-distance similarity
// before a name is accepted as a staff reference.
const staffSimilarityThreshold = 0.72

// StaffMatch is the accepted result of MatchStaff.
type StaffMatch struct {
	ID         string
	Label      string
	Similarity float64
}

// MatchStaff resolves text to one of the candidates. Exact and substring
// containment are tried first since they are cheap and precise; only then
// does it fall back to edit-distance similarity against every name variant,
// accepting the best candidate above the threshold.
func MatchStaff(text string, candidates []StaffCandidate) (StaffMatch, bool) {
	norm := Normalize(text)
	if norm == "" {
		return StaffMatch{}, false
	}

	for _, c := range candidates {
		for _, v := range c.Variants {
			vNorm := Normalize(v)
			if vNorm == "" {
				continue
			}
			if norm == vNorm || containsWord(norm, vNorm) {
				return StaffMatch{ID: c.ID, Label: c.Label, Similarity: 1}, true
			}
		}
	}

	best := StaffMatch{}
	for _, c := range candidates {
		for _, v := range c.Variants {
			sim := Similarity(norm, Normalize(v))
			if sim > best.Similarity {
				best = StaffMatch{ID: c.ID, Label: c.Label, Similarity: sim}
			}
		}
	}
	if best.Similarity < staffSimilarityThreshold {
		return StaffMatch{}, false
	}
	return best, true
}

// Similarity returns 1 - levenshtein(a,b)/max(len(a),len(b)), computed over
// runes. Two empty strings are considered dissimilar.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
