package extract

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/anavictoriasalon/citabot/internal/catalog"
	"github.com/anavictoriasalon/citabot/internal/nlu"
	"github.com/anavictoriasalon/citabot/pkg/logging"
)

func testIndex(t *testing.T) *catalog.Index {
	t.Helper()
	cfg := &catalog.Config{
		Timezone: "Europe/Madrid",
		Salons: []catalog.SalonConfig{
			{Key: "centro", LocationID: "LOC_CENTRO"},
			{Key: "torremolinos", LocationID: "LOC_TORRE"},
		},
		Staff: []catalog.StaffConfig{
			{Key: "ana_belen", TeamMemberID: "TM_ANA", Bookable: true, Salons: []string{"torremolinos"}, HomeSalon: "torremolinos"},
			{Key: "maria_jose", TeamMemberID: "TM_MJ", Bookable: true, Salons: []string{catalog.AllSalons}},
			{Key: "carmen", TeamMemberID: "TM_CAR", Bookable: true, Salons: []string{"centro"}, HomeSalon: "centro"},
		},
		Services: map[string][]catalog.ServiceConfig{
			"centro": {
				{Key: "manicura_semipermanente", VariationKey: "VAR_SEMI_C", Aliases: []string{"semipermanente"}},
				{Key: "pedicura_spa", VariationKey: "VAR_PEDI_C", Aliases: []string{"pedicura"}},
				{Key: "diseno_de_cejas", VariationKey: "VAR_CEJAS_C", Aliases: []string{"cejas"}},
			},
			"torremolinos": {
				{Key: "manicura_semipermanente", VariationKey: "VAR_SEMI_T", Aliases: []string{"semipermanente"}},
				{Key: "manicura_clasica", VariationKey: "VAR_CLAS_T", Aliases: []string{"manicura clasica"}},
			},
		},
	}
	idx, err := catalog.NewIndex(cfg)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}

type stubNLU struct {
	hint nlu.Hint
	err  error
}

func (s stubNLU) Extract(ctx context.Context, turn nlu.Turn) (nlu.Hint, error) {
	return s.hint, s.err
}

func newPipeline(t *testing.T, extractor nlu.Extractor) *Pipeline {
	t.Helper()
	return NewPipeline(testIndex(t), extractor, logging.New("error"))
}

func TestApplyHeuristicsOnly(t *testing.T) {
	p := newPipeline(t, stubNLU{err: errors.New("down")})
	sess := &Session{}

	res := p.Apply(context.Background(), sess, "quiero manicura en Torremolinos", nil)
	if res.HintUsed {
		t.Error("hint should not be used when extractor fails")
	}
	if sess.Salon != "torremolinos" {
		t.Errorf("salon = %q", sess.Salon)
	}
	if sess.PendingCategory != catalog.CategoryManicura {
		t.Errorf("category = %q", sess.PendingCategory)
	}
}

func TestApplyArticleUnaSetsNoCategory(t *testing.T) {
	p := newPipeline(t, stubNLU{err: errors.New("down")})
	sess := &Session{}

	p.Apply(context.Background(), sess, "hola, quiero una cita en Torremolinos", nil)
	if sess.PendingCategory != "" {
		t.Fatalf("category = %q, want unset", sess.PendingCategory)
	}

	// A later explicit service must still be reachable.
	p.Apply(context.Background(), sess, "manicura clasica", nil)
	if sess.ServiceKey != "manicura_clasica" {
		t.Fatalf("service = %q, want manicura_clasica", sess.ServiceKey)
	}
}

func TestApplyHintValidatedAgainstCatalog(t *testing.T) {
	p := newPipeline(t, stubNLU{hint: nlu.Hint{
		Intent:   nlu.IntentBook,
		Salon:    "sevilla", // not a salon we have
		Category: "manicura",
		Service:  "semipermanente",
	}})
	sess := &Session{Salon: "centro"}

	p.Apply(context.Background(), sess, "quiero la semipermanente", nil)
	if sess.Salon != "centro" {
		t.Errorf("salon = %q, bogus hint salon must not stick", sess.Salon)
	}
	if sess.ServiceKey != "manicura_semipermanente" {
		t.Errorf("service = %q", sess.ServiceKey)
	}
	if sess.PendingCategory != catalog.CategoryManicura {
		t.Errorf("category = %q", sess.PendingCategory)
	}
}

func TestApplyStaffHomeSalonAdoption(t *testing.T) {
	p := newPipeline(t, stubNLU{err: errors.New("down")})
	sess := &Session{}

	p.Apply(context.Background(), sess, "quiero cita con ana belen", nil)
	if sess.PreferredStaffID != "TM_ANA" {
		t.Fatalf("staff = %q", sess.PreferredStaffID)
	}
	if sess.Salon != "torremolinos" {
		t.Errorf("salon = %q, want home salon adopted", sess.Salon)
	}
}

func TestApplyStaffSwitchSalonFlagged(t *testing.T) {
	p := newPipeline(t, stubNLU{err: errors.New("down")})
	sess := &Session{Salon: "centro"}

	res := p.Apply(context.Background(), sess, "con ana belen por favor", nil)
	if res.SwitchSalon == nil {
		t.Fatal("expected a salon switch proposal")
	}
	if res.SwitchSalon.Salon != "torremolinos" || res.SwitchSalon.StaffID != "TM_ANA" {
		t.Errorf("switch = %+v", res.SwitchSalon)
	}
	// State is not silently moved.
	if sess.Salon != "centro" || sess.PreferredStaffID != "" {
		t.Errorf("session mutated: salon=%q staff=%q", sess.Salon, sess.PreferredStaffID)
	}
}

func TestApplyStaffIndifference(t *testing.T) {
	p := newPipeline(t, stubNLU{err: errors.New("down")})
	sess := &Session{Salon: "centro"}

	p.Apply(context.Background(), sess, "me da igual quien me atienda", nil)
	if !sess.StaffAny {
		t.Error("StaffAny not set")
	}
	if sess.PreferredStaffID != "" {
		t.Errorf("staff = %q", sess.PreferredStaffID)
	}
}

func TestApplyASAP(t *testing.T) {
	p := newPipeline(t, stubNLU{err: errors.New("down")})
	sess := &Session{Salon: "centro"}

	p.Apply(context.Background(), sess, "lo antes posible por favor", nil)
	if !sess.ASAP {
		t.Error("ASAP not set")
	}
}

func TestApplyCancelRedirect(t *testing.T) {
	p := newPipeline(t, stubNLU{err: errors.New("down")})
	sess := &Session{Salon: "centro", PendingCategory: catalog.CategoryManicura}

	res := p.Apply(context.Background(), sess, "quiero cancelar mi cita", nil)
	if !res.CancelIntent {
		t.Fatal("cancel intent not detected")
	}
	// Cancel short-circuits before any mutation.
	if sess.ServiceKey != "" {
		t.Errorf("service = %q", sess.ServiceKey)
	}
}

func TestApplyIdempotentOnFilledSession(t *testing.T) {
	p := newPipeline(t, stubNLU{err: errors.New("down")})
	sess := &Session{
		Salon:               "torremolinos",
		PendingCategory:     catalog.CategoryManicura,
		ServiceKey:          "manicura_semipermanente",
		ServiceLabel:        "Manicura Semipermanente",
		PreferredStaffID:    "TM_ANA",
		PreferredStaffLabel: "Ana Belén",
	}
	before := *sess

	p.Apply(context.Background(), sess, "quiero pedicura en el centro con carmen", nil)
	if !reflect.DeepEqual(*sess, before) {
		t.Errorf("filled session mutated:\nbefore %+v\nafter  %+v", before, *sess)
	}
}

func TestValidateClearsServiceOutsideCategory(t *testing.T) {
	idx := testIndex(t)
	sess := &Session{
		Salon:           "centro",
		PendingCategory: catalog.CategoryPedicura,
		ServiceKey:      "manicura_semipermanente",
		ServiceLabel:    "Manicura Semipermanente",
	}

	sess.Validate(idx)
	if sess.ServiceKey != "" || sess.ServiceLabel != "" {
		t.Errorf("service not cleared: %q", sess.ServiceKey)
	}
	if sess.PendingCategory != catalog.CategoryPedicura {
		t.Errorf("category = %q", sess.PendingCategory)
	}
}

func TestValidateRebindsServiceToSalonVariant(t *testing.T) {
	idx := testIndex(t)
	svc, ok := idx.ServiceAt("manicura_semipermanente", "centro")
	if !ok {
		t.Fatal("missing fixture service")
	}
	sess := &Session{Salon: "torremolinos", ServiceKey: svc.Key, ServiceLabel: svc.Label}

	sess.Validate(idx)
	if sess.ServiceKey != "manicura_semipermanente" {
		t.Errorf("service = %q", sess.ServiceKey)
	}
}

func TestValidateClearsStaffNotPermitted(t *testing.T) {
	idx := testIndex(t)
	sess := &Session{Salon: "centro", PreferredStaffID: "TM_ANA", PreferredStaffLabel: "Ana Belén"}

	sess.Validate(idx)
	if sess.PreferredStaffID != "" {
		t.Errorf("staff = %q, want cleared", sess.PreferredStaffID)
	}
}

func TestChoiceAt(t *testing.T) {
	sess := &Session{}
	sess.SetChoices(ChoicesServices, []Choice{
		{Index: 1, Label: "Manicura Semipermanente", Key: "manicura_semipermanente"},
		{Index: 2, Label: "Pedicura Spa", Key: "pedicura_spa"},
	})

	if _, ok := sess.ChoiceAt(ChoicesStaff, 1); ok {
		t.Error("wrong kind must not match")
	}
	if _, ok := sess.ChoiceAt(ChoicesServices, 3); ok {
		t.Error("out of bounds must be no selection")
	}
	c, ok := sess.ChoiceAt(ChoicesServices, 2)
	if !ok || c.Key != "pedicura_spa" {
		t.Errorf("choice = %+v ok=%v", c, ok)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want InputClass
	}{
		{"2", InputNumeric},
		{"la 2", InputNumeric},
		{"opción 1", InputNumeric},
		{"sí", InputAffirmative},
		{"vale", InputAffirmative},
		{"no", InputNegative},
		{"me da igual", InputIndifferent},
		{"no quiero pedicura", InputFreeText},
		{"quiero manicura", InputFreeText},
		{"el 2 de mayo no puedo", InputFreeText},
		{"la 1 semana que viene mejor no", InputFreeText},
	}
	for _, tc := range tests {
		if got := Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
