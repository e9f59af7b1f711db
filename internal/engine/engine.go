// Package engine is the conversation state machine: it interprets each
// inbound message against the customer's session stage, drives the
// extraction pipeline, proposes availability, and hands completed sessions
// to the booking executor. One turn in, one reply out.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anavictoriasalon/citabot/internal/availability"
	"github.com/anavictoriasalon/citabot/internal/booking"
	"github.com/anavictoriasalon/citabot/internal/calendar"
	"github.com/anavictoriasalon/citabot/internal/catalog"
	"github.com/anavictoriasalon/citabot/internal/channels/whatsapp"
	"github.com/anavictoriasalon/citabot/internal/extract"
	"github.com/anavictoriasalon/citabot/internal/observability/metrics"
	"github.com/anavictoriasalon/citabot/internal/square"
	"github.com/anavictoriasalon/citabot/internal/store"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

const appointmentMinutes = 60

// SessionStore persists conversation state between turns.
// *store.SessionStore satisfies it.
type SessionStore interface {
	Load(ctx context.Context, phone string) (*store.SessionRecord, error)
	Save(ctx context.Context, rec store.SessionRecord) error
}

// TranscriptStore keeps the rolling per-customer transcript fed to the NLU
// extractor. *HistoryStore satisfies it.
type TranscriptStore interface {
	Append(ctx context.Context, phone string, lines ...string) error
	Recent(ctx context.Context, phone string) ([]string, error)
	Clear(ctx context.Context, phone string) error
}

// VariationResolver maps a catalog service to its backend variation.
// *square.Client satisfies it.
type VariationResolver interface {
	RetrieveCatalogVariation(ctx context.Context, variationKey string) (square.Variation, error)
}

type transitionKey struct {
	stage extract.Stage
	class extract.InputClass
}

type turnHandler func(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string

// Engine owns one conversation turn end to end. It is safe for concurrent
// use across customers; the dispatcher serializes turns per customer.
type Engine struct {
	catalog    *catalog.Index
	rules      *calendar.Rules
	pipeline   *extract.Pipeline
	finder     *availability.Finder
	executor   *booking.Executor
	variations VariationResolver
	sessions   SessionStore
	history    TranscriptStore
	sender     whatsapp.Sender
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger

	transitions map[transitionKey]turnHandler
}

func NewEngine(idx *catalog.Index, rules *calendar.Rules, pipeline *extract.Pipeline,
	finder *availability.Finder, executor *booking.Executor, variations VariationResolver,
	sessions SessionStore, history TranscriptStore, sender whatsapp.Sender,
	m *metrics.ConversationMetrics, logger *logging.Logger) *Engine {
	if idx == nil {
		panic("engine: catalog cannot be nil")
	}
	if pipeline == nil {
		panic("engine: pipeline cannot be nil")
	}
	if sessions == nil {
		panic("engine: session store cannot be nil")
	}
	if sender == nil {
		panic("engine: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	e := &Engine{
		catalog:    idx,
		rules:      rules,
		pipeline:   pipeline,
		finder:     finder,
		executor:   executor,
		variations: variations,
		sessions:   sessions,
		history:    history,
		sender:     sender,
		metrics:    m,
		logger:     logger,
	}

	// The full set of valid (stage, input class) transitions in one place.
	// Combinations not listed here fall back to free-text interpretation.
	e.transitions = make(map[transitionKey]turnHandler)
	e.on(extract.StageAwaitingService, extract.InputNumeric, e.handleServicePick)
	e.on(extract.StageAwaitingStaff, extract.InputNumeric, e.handleStaffPick)
	e.on(extract.StageAwaitingStaff, extract.InputIndifferent, e.handleStaffAny)
	e.on(extract.StageAwaitingTime, extract.InputNumeric, e.handleTimePick)
	e.on(extract.StageConfirmSwitchSalon, extract.InputAffirmative, e.handleSwitchYes)
	e.on(extract.StageConfirmSwitchSalon, extract.InputIndifferent, e.handleSwitchYes)
	e.on(extract.StageConfirmSwitchSalon, extract.InputNegative, e.handleSwitchNo)
	e.on(extract.StageAwaitingIdentity, extract.InputFreeText, e.handleIdentityDetails)
	e.on(extract.StageAwaitingIdentityPick, extract.InputNumeric, e.handleIdentityPick)
	return e
}

func (e *Engine) on(stage extract.Stage, class extract.InputClass, handler turnHandler) {
	e.transitions[transitionKey{stage: stage, class: class}] = handler
}

// HandleTurn processes one inbound message. It is the dispatcher's task
// body: every exit path either replies or was deliberately silent (paused
// takeover, duplicate delivery).
func (e *Engine) HandleTurn(ctx context.Context, msg whatsapp.Inbound) {
	started := time.Now()

	rec, err := e.sessions.Load(ctx, msg.From)
	if err != nil {
		// Conversation must not go silent on a store hiccup; continue with a
		// fresh session and let the next successful save reconcile.
		e.logger.Error("failed to load session", "error", err, "phone", msg.From)
	}

	var sess extract.Session
	if rec != nil {
		if rec.PausedUntil.After(time.Now()) {
			e.logger.Debug("customer paused, skipping turn",
				"phone", msg.From, "paused_until", rec.PausedUntil)
			return
		}
		if msg.MessageID != "" && rec.LastMessageID == msg.MessageID {
			e.logger.Debug("duplicate delivery, skipping turn",
				"phone", msg.From, "message_id", msg.MessageID)
			return
		}
		if len(rec.State) > 0 {
			if err := json.Unmarshal(rec.State, &sess); err != nil {
				e.logger.Error("failed to decode session, starting fresh", "error", err, "phone", msg.From)
				sess = extract.Session{}
			}
		}
	}
	stageBefore := stageName(sess.Stage)

	if err := e.sender.SendTyping(ctx, msg.From); err != nil {
		e.logger.Debug("typing indicator failed", "error", err)
	}

	reply := e.safeStep(ctx, &sess, msg)

	e.persist(ctx, msg, &sess)
	if e.history != nil {
		if err := e.history.Append(ctx, msg.From, "Cliente: "+msg.Text, "Bot: "+reply); err != nil {
			e.logger.Warn("failed to append transcript", "error", err)
		}
	}
	if err := e.sender.SendText(ctx, msg.From, reply); err != nil {
		e.logger.Error("failed to send reply", "error", err, "phone", msg.From)
	}
	e.metrics.ObserveTurn(stageBefore, "replied", time.Since(started).Seconds())
}

// safeStep catches panics at the task boundary so an unexpected failure
// answers with a recovery prompt instead of silence.
func (e *Engine) safeStep(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("turn panicked", "panic", fmt.Sprint(r), "phone", msg.From)
			sess.Reset()
			reply = replyRecover
		}
	}()
	return e.step(ctx, sess, msg)
}

func (e *Engine) step(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	if extract.IsCancelIntent(msg.Text) {
		return replyRedirect
	}

	key := transitionKey{stage: sess.Stage, class: extract.Classify(msg.Text)}
	if handler, ok := e.transitions[key]; ok {
		return handler(ctx, sess, msg)
	}
	return e.handleFreeText(ctx, sess, msg)
}

func (e *Engine) handleFreeText(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	var transcript []string
	if e.history != nil {
		lines, err := e.history.Recent(ctx, msg.From)
		if err != nil {
			e.logger.Warn("failed to load transcript", "error", err)
		}
		transcript = lines
	}

	res := e.pipeline.Apply(ctx, sess, msg.Text, transcript)
	if res.CancelIntent {
		return replyRedirect
	}
	if !res.HintUsed {
		e.metrics.ObserveNLUFallback()
	}

	if res.SwitchSalon != nil {
		sess.Stage = extract.StageConfirmSwitchSalon
		sess.PendingSwitchSalon = res.SwitchSalon.Salon
		sess.PendingSwitchStaff = res.SwitchSalon.StaffID
		salonLabel := res.SwitchSalon.Salon
		if salon, ok := e.catalog.SalonByKey(res.SwitchSalon.Salon); ok {
			salonLabel = salon.Label
		}
		return replyConfirmSwitch(res.SwitchSalon.StaffLabel, salonLabel)
	}

	if sess.Stage == extract.StageOpen && extract.IsGreeting(msg.Text) &&
		sess.Salon == "" && sess.PendingCategory == "" && sess.ServiceKey == "" && sess.PreferredStaffID == "" {
		return replyWelcome()
	}

	return e.advance(ctx, sess, msg)
}

func (e *Engine) handleServicePick(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	index, _ := extract.ParseIndex(msg.Text)
	choice, ok := sess.ChoiceAt(extract.ChoicesServices, index)
	if !ok {
		// Out of bounds is "no selection": re-offer the same list.
		return replyServiceList(sess.PendingCategory, sess.Choices)
	}
	svc, ok := e.catalog.ServiceAt(choice.Key, sess.Salon)
	if !ok {
		sess.ClearChoices()
		return e.advance(ctx, sess, msg)
	}
	sess.ServiceKey = svc.Key
	sess.ServiceLabel = svc.Label
	if sess.PendingCategory == "" {
		sess.PendingCategory = svc.Category
	}
	sess.ClearChoices()
	return e.advance(ctx, sess, msg)
}

func (e *Engine) handleStaffPick(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	index, _ := extract.ParseIndex(msg.Text)
	choice, ok := sess.ChoiceAt(extract.ChoicesStaff, index)
	if !ok {
		return replyStaffList(sess.Choices)
	}
	sess.PreferredStaffID = choice.Key
	sess.PreferredStaffLabel = choice.Label
	sess.ClearChoices()
	return e.advance(ctx, sess, msg)
}

func (e *Engine) handleStaffAny(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	sess.StaffAny = true
	sess.ClearChoices()
	return e.advance(ctx, sess, msg)
}

func (e *Engine) handleTimePick(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	index, _ := extract.ParseIndex(msg.Text)
	if index < 1 || index > len(sess.OfferedSlots) {
		return replyTimeList(sess.OfferedSlots, e.location())
	}
	start := sess.OfferedSlots[index-1].StartAt
	sess.PendingStartAt = &start
	sess.ClearChoices()
	return e.advance(ctx, sess, msg)
}

func (e *Engine) handleSwitchYes(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	sess.Salon = sess.PendingSwitchSalon
	if staff, ok := e.catalog.StaffByID(sess.PendingSwitchStaff); ok {
		sess.PreferredStaffID = staff.TeamMemberID
		sess.PreferredStaffLabel = staff.Label
	}
	sess.PendingSwitchSalon = ""
	sess.PendingSwitchStaff = ""
	sess.Stage = extract.StageOpen
	// Moving salon can invalidate the selected service; rebind or clear.
	sess.Validate(e.catalog)
	return e.advance(ctx, sess, msg)
}

func (e *Engine) handleSwitchNo(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	sess.PendingSwitchSalon = ""
	sess.PendingSwitchStaff = ""
	sess.Stage = extract.StageOpen
	return e.advance(ctx, sess, msg)
}

func (e *Engine) handleIdentityDetails(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	name, email, ok := parseIdentityDetails(msg.Text)
	if !ok {
		return replyIdentity
	}
	customer, err := e.executor.CreateIdentity(ctx, msg.From, name, email)
	if err != nil {
		e.logger.Error("failed to create customer", "error", err, "phone", msg.From)
		return replyAgendaDown
	}
	sess.CustomerID = customer.ID
	sess.CustomerName = name
	sess.CustomerEmail = email
	sess.Stage = extract.StageOpen
	return e.advance(ctx, sess, msg)
}

func (e *Engine) handleIdentityPick(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	index, _ := extract.ParseIndex(msg.Text)
	choice, ok := sess.ChoiceAt(extract.ChoicesIdentities, index)
	if !ok {
		return replyIdentityList(sess.Choices)
	}
	sess.CustomerID = choice.Key
	sess.CustomerName = choice.Label
	sess.ClearChoices()
	sess.Stage = extract.StageOpen
	return e.advance(ctx, sess, msg)
}

// advance drives the conversation toward the next unset precondition:
// salon, service, staff preference, time, identity, then commit.
func (e *Engine) advance(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	if sess.Salon == "" {
		sess.Stage = extract.StageAwaitingSalon
		return replyAskSalon(e.catalog.Salons())
	}

	if sess.ServiceKey == "" {
		return e.offerServices(sess)
	}

	if sess.PendingStartAt == nil {
		if sess.PreferredStaffID == "" && !sess.StaffAny && !sess.ASAP {
			return e.offerStaff(ctx, sess, msg)
		}
		return e.offerTimes(ctx, sess, msg)
	}

	if sess.CustomerID == "" {
		return e.resolveIdentity(ctx, sess, msg)
	}

	return e.commit(ctx, sess, msg)
}

func (e *Engine) offerServices(sess *extract.Session) string {
	var services []*catalog.Service
	if sess.PendingCategory != "" {
		services = e.catalog.ServicesByCategory(sess.PendingCategory, sess.Salon)
	} else {
		services = e.catalog.ServicesAt(sess.Salon)
	}
	if len(services) == 0 {
		// Category with no offer at this salon: drop it and list everything.
		sess.PendingCategory = ""
		services = e.catalog.ServicesAt(sess.Salon)
	}

	choices := make([]extract.Choice, 0, len(services))
	for i, svc := range services {
		choices = append(choices, extract.Choice{Index: i + 1, Label: svc.Label, Key: svc.Key})
	}
	sess.SetChoices(extract.ChoicesServices, choices)
	sess.Stage = extract.StageAwaitingService
	return replyServiceList(sess.PendingCategory, choices)
}

func (e *Engine) offerStaff(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	staff := e.catalog.BookableStaffAt(sess.Salon)
	if len(staff) == 0 {
		sess.StaffAny = true
		return e.offerTimes(ctx, sess, msg)
	}

	ordered := staff
	if variation, err := e.variation(ctx, sess); err == nil {
		ids := make([]string, 0, len(staff))
		for _, st := range staff {
			ids = append(ids, st.TeamMemberID)
		}
		salon, _ := e.catalog.SalonByKey(sess.Salon)
		ranked, err := e.finder.RankStaff(ctx, availability.Request{
			LocationID:      salon.LocationID,
			VariationID:     variation.ID,
			DurationMinutes: appointmentMinutes,
		}, ids)
		if err != nil {
			e.logger.Warn("staff ranking unavailable, using catalog order", "error", err)
		} else {
			byID := make(map[string]*catalog.Staff, len(staff))
			for _, st := range staff {
				byID[st.TeamMemberID] = st
			}
			ordered = ordered[:0]
			for _, opt := range ranked {
				if st, ok := byID[opt.TeamMemberID]; ok {
					ordered = append(ordered, st)
				}
			}
		}
	}

	choices := make([]extract.Choice, 0, len(ordered))
	for i, st := range ordered {
		choices = append(choices, extract.Choice{Index: i + 1, Label: st.Label, Key: st.TeamMemberID})
	}
	sess.SetChoices(extract.ChoicesStaff, choices)
	sess.Stage = extract.StageAwaitingStaff
	return replyStaffList(choices)
}

func (e *Engine) offerTimes(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	variation, err := e.variation(ctx, sess)
	if err != nil {
		e.logger.Error("failed to resolve variation", "error", err, "service", sess.ServiceKey)
		return replyAgendaDown
	}
	salon, _ := e.catalog.SalonByKey(sess.Salon)

	proposal, err := e.finder.Propose(ctx, availability.Request{
		LocationID:      salon.LocationID,
		VariationID:     variation.ID,
		TeamMemberID:    sess.PreferredStaffID,
		DurationMinutes: appointmentMinutes,
	})
	if err != nil {
		e.logger.Error("availability search failed", "error", err, "salon", sess.Salon)
		return replyAgendaDown
	}
	e.metrics.ObserveProposal(string(proposal.Source))

	offered := make([]extract.OfferedSlot, 0, len(proposal.Slots))
	for _, s := range proposal.Slots {
		offered = append(offered, extract.OfferedSlot{
			StartAt:      s.StartAt,
			TeamMemberID: s.TeamMemberID,
			Synthetic:    s.Synthetic,
		})
	}
	sess.OfferedSlots = offered
	sess.OfferedStaffSpecific = proposal.Source == availability.SourceStaff

	if sess.ASAP && len(offered) > 0 {
		// Urgency skips the list: take the first slot and keep going.
		start := offered[0].StartAt
		sess.PendingStartAt = &start
		return e.advance(ctx, sess, msg)
	}

	choices := make([]extract.Choice, 0, len(offered))
	for i, s := range offered {
		choices = append(choices, extract.Choice{
			Index: i + 1,
			Label: formatSlot(s.StartAt, e.location()),
			Key:   s.StartAt.Format(time.RFC3339),
		})
	}
	sess.SetChoices(extract.ChoicesTimes, choices)
	sess.Stage = extract.StageAwaitingTime
	return replyTimeList(offered, e.location())
}

func (e *Engine) resolveIdentity(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	res, err := e.executor.ResolveIdentity(ctx, msg.From)
	if err != nil {
		e.logger.Error("identity resolution failed", "error", err, "phone", msg.From)
		return replyAgendaDown
	}

	switch {
	case res.NeedDetails:
		sess.Stage = extract.StageAwaitingIdentity
		return replyIdentity
	case res.Customer != nil:
		sess.CustomerID = res.Customer.ID
		sess.CustomerName = res.Customer.DisplayName()
		return e.commit(ctx, sess, msg)
	default:
		choices := make([]extract.Choice, 0, len(res.Candidates))
		for i, c := range res.Candidates {
			choices = append(choices, extract.Choice{Index: i + 1, Label: c.DisplayName(), Key: c.ID})
		}
		sess.SetChoices(extract.ChoicesIdentities, choices)
		sess.Stage = extract.StageAwaitingIdentityPick
		return replyIdentityList(choices)
	}
}

func (e *Engine) commit(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound) string {
	start := *sess.PendingStartAt
	slotStaff := ""
	for _, s := range sess.OfferedSlots {
		if s.StartAt.Equal(start) {
			slotStaff = s.TeamMemberID
			break
		}
	}

	res, err := e.executor.Commit(ctx, booking.CommitRequest{
		Phone:             msg.From,
		Salon:             sess.Salon,
		ServiceKey:        sess.ServiceKey,
		CustomerID:        sess.CustomerID,
		StartAt:           start,
		DurationMinutes:   appointmentMinutes,
		SlotStaffID:       slotStaff,
		SlotStaffSpecific: sess.OfferedStaffSpecific,
		PreferredStaffID:  sess.PreferredStaffID,
	})
	if err != nil {
		return e.correctPrecondition(ctx, sess, msg, err)
	}

	if res.Failed {
		e.metrics.ObserveBooking("failed")
		sess.Stage = extract.StageOpen
		sess.PendingStartAt = nil
		sess.OfferedSlots = nil
		sess.OfferedStaffSpecific = false
		sess.ClearChoices()
		return replyFailed
	}

	e.metrics.ObserveBooking("confirmed")
	staffLabel := sess.PreferredStaffLabel
	if staff, ok := e.catalog.StaffByID(res.StaffID); ok {
		staffLabel = staff.Label
	}
	reply := replyConfirmed(sess.ServiceLabel, staffLabel, res.StartAt, e.location())

	sess.Reset()
	if e.history != nil {
		if err := e.history.Clear(ctx, msg.From); err != nil {
			e.logger.Warn("failed to clear transcript", "error", err)
		}
	}
	return reply
}

// correctPrecondition clears the session field behind a stale-state commit
// error and re-drives the conversation; the customer is re-asked, never
// shown a raw error.
func (e *Engine) correctPrecondition(ctx context.Context, sess *extract.Session, msg whatsapp.Inbound, err error) string {
	e.logger.Warn("commit precondition failed", "error", err, "phone", msg.From)
	sess.PendingStartAt = nil
	sess.OfferedSlots = nil
	sess.OfferedStaffSpecific = false
	sess.ClearChoices()

	switch {
	case errors.Is(err, booking.ErrNoSalon):
		sess.Salon = ""
	case errors.Is(err, booking.ErrNoService):
		sess.ServiceKey = ""
		sess.ServiceLabel = ""
	case errors.Is(err, booking.ErrNoCustomer):
		sess.CustomerID = ""
	case errors.Is(err, booking.ErrNoStaff):
		sess.PreferredStaffID = ""
		sess.PreferredStaffLabel = ""
		sess.StaffAny = true
	case errors.Is(err, booking.ErrOutsideHours):
		// Stale slot: re-propose below.
	default:
		// Transient backend failure before any attempt was made.
		return replyAgendaDown
	}
	sess.Stage = extract.StageOpen
	return e.advance(ctx, sess, msg)
}

func (e *Engine) variation(ctx context.Context, sess *extract.Session) (square.Variation, error) {
	svc, ok := e.catalog.ServiceAt(sess.ServiceKey, sess.Salon)
	if !ok {
		return square.Variation{}, fmt.Errorf("engine: service %q not offered at %q", sess.ServiceKey, sess.Salon)
	}
	return e.variations.RetrieveCatalogVariation(ctx, svc.VariationKey)
}

func (e *Engine) persist(ctx context.Context, msg whatsapp.Inbound, sess *extract.Session) {
	state, err := json.Marshal(sess)
	if err != nil {
		e.logger.Error("failed to encode session", "error", err, "phone", msg.From)
		return
	}
	err = e.sessions.Save(ctx, store.SessionRecord{
		Phone:         msg.From,
		State:         state,
		LastMessageID: msg.MessageID,
	})
	if err != nil {
		e.logger.Error("failed to save session", "error", err, "phone", msg.From)
	}
}

func (e *Engine) location() *time.Location {
	if e.rules != nil {
		return e.rules.Location()
	}
	return time.UTC
}

func stageName(s extract.Stage) string {
	if s == extract.StageOpen {
		return "open"
	}
	return string(s)
}

// parseIdentityDetails splits "Laura Gómez, laura@ejemplo.com" into name and
// email. Order is flexible; the email is whichever part carries an @.
func parseIdentityDetails(text string) (name, email string, ok bool) {
	parts := strings.Split(text, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "@") && email == "" {
			email = part
			continue
		}
		if name == "" {
			name = part
		}
	}
	if name == "" || email == "" {
		return "", "", false
	}
	return name, email, true
}
