package extract

import (
	"context"

	"github.com/anavictoriasalon/citabot/internal/catalog"
	"github.com/anavictoriasalon/citabot/internal/match"
	"github.com/anavictoriasalon/citabot/internal/nlu"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

// Result reports side observations from one pipeline run that the state
// machine acts on.
type Result struct {
	// SwitchSalon is set when the customer named a staff member who does not
	// work at the session's salon but does work elsewhere. The pipeline never
	// moves the salon itself; the engine asks for confirmation.
	SwitchSalon *SalonSwitch
	// CancelIntent short-circuits to the redirect message.
	CancelIntent bool
	// HintUsed reports whether the NLU hint contributed anything.
	HintUsed bool
}

// SalonSwitch is a proposed move to another salon to follow a staff request.
type SalonSwitch struct {
	Salon      string
	StaffID    string
	StaffLabel string
}

// Pipeline merges NLU hints with heuristic parsers to fill session fields.
// Rerunning it on a fully filled session mutates nothing.
type Pipeline struct {
	catalog   *catalog.Index
	extractor nlu.Extractor
	logger    *logging.Logger
}

func NewPipeline(idx *catalog.Index, extractor nlu.Extractor, logger *logging.Logger) *Pipeline {
	return &Pipeline{catalog: idx, extractor: extractor, logger: logger}
}

// Apply runs one extraction pass for an inbound message. The hint is
// advisory: every hint field is re-validated against the catalog, and a
// failed or absent extractor just means heuristics run alone.
func (p *Pipeline) Apply(ctx context.Context, sess *Session, text string, transcript []string) Result {
	var res Result

	if IsCancelIntent(text) {
		res.CancelIntent = true
		return res
	}

	hint := p.hint(ctx, text, transcript, &res)

	if sess.Salon == "" {
		p.fillSalon(sess, hint, text)
	}
	if sess.PendingCategory == "" {
		p.fillCategory(sess, hint, text)
	}
	if sess.ServiceKey == "" && sess.Salon != "" {
		p.fillService(sess, hint, text)
	}
	if sess.PreferredStaffID == "" && !sess.StaffAny {
		p.fillStaff(sess, hint, text, &res)
	}
	if !sess.ASAP && (hint.ASAP || IsASAP(text)) {
		sess.ASAP = true
	}

	sess.Validate(p.catalog)
	return res
}

func (p *Pipeline) hint(ctx context.Context, text string, transcript []string, res *Result) nlu.Hint {
	if p.extractor == nil {
		return nlu.Hint{}
	}

	var categories []string
	for _, c := range catalog.Categories {
		categories = append(categories, c)
	}
	var salons, staffNames []string
	for _, s := range p.catalog.Salons() {
		salons = append(salons, s.Key)
	}
	for _, st := range p.catalog.Staff() {
		if st.Bookable {
			staffNames = append(staffNames, st.Label)
		}
	}

	hint, err := p.extractor.Extract(ctx, nlu.Turn{
		Message:    text,
		Transcript: transcript,
		Salons:     salons,
		Categories: categories,
		StaffNames: staffNames,
	})
	if err != nil {
		p.logger.Info("nlu hint unavailable, heuristics only", "error", err)
		return nlu.Hint{}
	}
	res.HintUsed = true
	return hint
}

func (p *Pipeline) fillSalon(sess *Session, hint nlu.Hint, text string) {
	if hint.Salon != "" {
		if _, ok := p.catalog.SalonByKey(hint.Salon); ok {
			sess.Salon = hint.Salon
			return
		}
	}
	if salon, ok := SalonFromText(text); ok {
		sess.Salon = salon
	}
}

func (p *Pipeline) fillCategory(sess *Session, hint nlu.Hint, text string) {
	if hint.Category != "" {
		for _, c := range catalog.Categories {
			if c == hint.Category {
				sess.PendingCategory = hint.Category
				return
			}
		}
	}
	if cat := catalog.ClassifyCategory(text); cat != "" {
		sess.PendingCategory = cat
	}
}

func (p *Pipeline) fillService(sess *Session, hint nlu.Hint, text string) {
	candidates := p.catalog.ServiceCandidates(sess.Salon, sess.PendingCategory)
	if len(candidates) == 0 {
		return
	}

	if hint.Service != "" {
		if m, ok := match.MatchService(hint.Service, candidates); ok {
			p.adoptService(sess, m.Key)
			return
		}
	}
	if m, ok := match.MatchService(text, candidates); ok {
		p.adoptService(sess, m.Key)
	}
}

func (p *Pipeline) adoptService(sess *Session, key string) {
	if svc, ok := p.catalog.ServiceAt(key, sess.Salon); ok {
		sess.ServiceKey = svc.Key
		sess.ServiceLabel = svc.Label
		if sess.PendingCategory == "" {
			sess.PendingCategory = svc.Category
		}
	}
}

func (p *Pipeline) fillStaff(sess *Session, hint nlu.Hint, text string, res *Result) {
	if hint.StaffIntent == nlu.StaffAny || IsIndifferent(text) {
		sess.StaffAny = true
		return
	}

	// Match against everyone bookable so a request for someone at the other
	// salon is recognized instead of dropped.
	candidates := p.catalog.StaffCandidates("")
	if len(candidates) == 0 {
		return
	}

	var matched match.StaffMatch
	var ok bool
	if hint.StaffName != "" {
		matched, ok = match.MatchStaff(hint.StaffName, candidates)
	}
	if !ok {
		// Only run the fuzzy matcher over raw text when the hint claims a
		// staff request; a bare service message should not latch onto a name.
		if hint.StaffIntent == nlu.StaffRequested || hint.StaffName != "" || looksLikeStaffRequest(text) {
			matched, ok = match.MatchStaff(text, candidates)
		}
	}
	if !ok {
		return
	}

	staff, found := p.catalog.StaffByID(matched.ID)
	if !found {
		return
	}

	switch {
	case sess.Salon == "":
		// Adopt the staff member's home salon when they have one; otherwise
		// the engine will ask for the salon explicitly.
		sess.PreferredStaffID = staff.TeamMemberID
		sess.PreferredStaffLabel = staff.Label
		if staff.HomeSalon != "" {
			sess.Salon = staff.HomeSalon
		}
	case staff.PermittedAt(sess.Salon):
		sess.PreferredStaffID = staff.TeamMemberID
		sess.PreferredStaffLabel = staff.Label
	default:
		if target, ok := p.salonFor(staff); ok {
			res.SwitchSalon = &SalonSwitch{
				Salon:      target,
				StaffID:    staff.TeamMemberID,
				StaffLabel: staff.Label,
			}
		}
	}
}

// salonFor returns a salon where the staff member works, preferring their
// home salon, in configured salon order otherwise.
func (p *Pipeline) salonFor(staff *catalog.Staff) (string, bool) {
	if staff.HomeSalon != "" {
		return staff.HomeSalon, true
	}
	for _, s := range p.catalog.Salons() {
		if staff.PermittedAt(s.Key) {
			return s.Key, true
		}
	}
	return "", false
}

// staffRequestCues are phrases that precede a name ("con maría", "cita con").
var staffRequestCues = []string{"con ", "para que me atienda", "me atienda"}

func looksLikeStaffRequest(text string) bool {
	norm := match.Normalize(text)
	for _, cue := range staffRequestCues {
		if containsAnyPhrase(norm, []string{cue}) {
			return true
		}
	}
	return false
}
