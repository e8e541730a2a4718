package dialogue_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/vitalvoice/internal/dialogue"
	"github.com/MrWong99/vitalvoice/internal/observe"
	"github.com/MrWong99/vitalvoice/pkg/audio"
	audiomock "github.com/MrWong99/vitalvoice/pkg/audio/mock"
	"github.com/MrWong99/vitalvoice/pkg/form"
	sttmock "github.com/MrWong99/vitalvoice/pkg/provider/stt/mock"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// recordingSpeaker collects every prompt it is asked to speak.
type recordingSpeaker struct {
	mu      sync.Mutex
	prompts []string
	langs   []types.Language
	err     error
}

func (s *recordingSpeaker) Speak(ctx context.Context, text string, lang types.Language) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, text)
	s.langs = append(s.langs, lang)
	return s.err
}

func (s *recordingSpeaker) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.prompts)
}

func (s *recordingSpeaker) anyContains(sub string) bool {
	for _, p := range s.Prompts() {
		if strings.Contains(p, sub) {
			return true
		}
	}
	return false
}

type harness struct {
	rec     *audiomock.Recorder
	stt     *sttmock.Provider
	speaker *recordingSpeaker
	reader  *sdkmetric.ManualReader
	states  []dialogue.State
	machine *dialogue.Machine
}

func newHarness(t *testing.T, transcripts []sttmock.Response, opts ...dialogue.Option) *harness {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	h := &harness{
		rec:     &audiomock.Recorder{},
		stt:     &sttmock.Provider{Responses: transcripts},
		speaker: &recordingSpeaker{},
		reader:  reader,
	}
	base := []dialogue.Option{
		dialogue.WithMetrics(met),
		dialogue.WithIDGenerator(func() string { return "sess-1" }),
		dialogue.WithObserver(func(s dialogue.Snapshot) { h.states = append(h.states, s.State) }),
	}
	h.machine, err = dialogue.New(h.rec, h.stt, h.speaker, append(base, opts...)...)
	if err != nil {
		t.Fatalf("dialogue.New: %v", err)
	}
	return h
}

func (h *harness) lastState() dialogue.State {
	if len(h.states) == 0 {
		return ""
	}
	return h.states[len(h.states)-1]
}

func testForm() form.Form {
	return form.Form{
		Name: "test",
		Fields: []form.Field{
			{
				Name:     "glucose",
				Label:    "blood glucose",
				Labels:   map[types.Language]string{types.Swahili: "sukari ya damu"},
				Required: true,
				Kind:     form.Numeric{Min: 20, Max: 600, Unit: "mg/dL"},
			},
			{
				Name:     "context",
				Label:    "reading context",
				Required: true,
				Kind:     form.Categorical{Options: []string{"Fasting", "Pre-meal", "Post-meal", "Random", "Bedtime"}},
			},
			{
				Name:      "meal_type",
				Label:     "type of meal",
				DependsOn: &form.Dependency{Field: "context", Value: "Post-meal"},
				Kind:      form.Categorical{Options: []string{"High-carb", "Balanced", "Protein", "Light snack"}},
			},
			{
				Name:  "arm",
				Label: "arm used",
				Kind:  form.Categorical{Options: []string{"Left", "Right"}},
			},
		},
	}
}

func glucoseOnly(required bool) form.Form {
	f := testForm()
	f.Fields = f.Fields[:1]
	f.Fields[0].Required = required
	return f
}

func responses(texts ...string) []sttmock.Response {
	out := make([]sttmock.Response, len(texts))
	for i, t := range texts {
		out[i] = sttmock.Response{Text: t}
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	rec, stt, spk := &audiomock.Recorder{}, &sttmock.Provider{}, &recordingSpeaker{}
	tests := []struct {
		name string
		fn   func() (*dialogue.Machine, error)
	}{
		{"nil recorder", func() (*dialogue.Machine, error) { return dialogue.New(nil, stt, spk) }},
		{"nil transcriber", func() (*dialogue.Machine, error) { return dialogue.New(rec, nil, spk) }},
		{"nil speaker", func() (*dialogue.Machine, error) { return dialogue.New(rec, stt, nil) }},
		{"bad config", func() (*dialogue.Machine, error) {
			cfg := dialogue.DefaultConfig()
			cfg.RequiredAttempts = 0
			cfg.RecordCap = 0
			return dialogue.New(rec, stt, spk, dialogue.WithConfig(cfg))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := tc.fn(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRun_CompletesForm(t *testing.T) {
	t.Parallel()

	h := newHarness(t, responses(
		"one hundred twenty", "yes", // glucose, confirmed
		"fasting, empty stomach", // context, clear match
		"left arm",               // arm, clear match
	))

	res, err := h.machine.Run(context.Background(), testForm(), types.English)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[string]types.Value{
		"glucose": types.NumberValue(120),
		"context": types.OptionValue("Fasting"),
		"arm":     types.OptionValue("Left"),
	}
	if len(res.Values) != len(want) {
		t.Fatalf("values = %v, want %v", res.Values, want)
	}
	for k, v := range want {
		if res.Values[k] != v {
			t.Errorf("values[%s] = %v, want %v", k, res.Values[k], v)
		}
	}
	if res.SessionID != "sess-1" || res.Form != "test" || res.Language != types.English {
		t.Errorf("result header = %+v", res)
	}
	if !slices.Equal(res.Bypassed, []string{"meal_type"}) {
		t.Errorf("bypassed = %v, want [meal_type]", res.Bypassed)
	}
	if len(res.Skipped) != 0 || len(res.Unset) != 0 {
		t.Errorf("skipped = %v, unset = %v; want none", res.Skipped, res.Unset)
	}

	prompts := h.speaker.Prompts()
	if len(prompts) != 5 {
		t.Fatalf("spoke %d prompts, want 5 (3 announcements, 1 confirmation, completion): %q", len(prompts), prompts)
	}
	if !strings.HasPrefix(prompts[0], "Please say your blood glucose.") {
		t.Errorf("first prompt = %q", prompts[0])
	}
	if prompts[1] != "You said 120 mg/dL. Is that correct? Say yes or no." {
		t.Errorf("confirmation prompt = %q", prompts[1])
	}
	if prompts[4] != "Thank you. All readings have been captured." {
		t.Errorf("last prompt = %q", prompts[4])
	}
	if h.speaker.anyContains("type of meal") {
		t.Error("bypassed field was announced")
	}

	wantCaps := []time.Duration{6 * time.Second, 4 * time.Second, 6 * time.Second, 6 * time.Second}
	if !slices.Equal(h.rec.Caps, wantCaps) {
		t.Errorf("record caps = %v, want %v", h.rec.Caps, wantCaps)
	}
	for i, c := range h.stt.Calls {
		if c.Language != types.English || c.AudioBytes <= 44 {
			t.Errorf("stt call %d = %+v, want English WAV audio", i, c)
		}
	}
	if h.lastState() != dialogue.StateComplete {
		t.Errorf("last state = %s, want complete", h.lastState())
	}
	if _, running := h.machine.Current(); running {
		t.Error("machine still reports a running session")
	}
}

func TestRun_Swahili(t *testing.T) {
	t.Parallel()

	h := newHarness(t, responses("mia moja ishirini na tano", "ndiyo"))
	res, err := h.machine.Run(context.Background(), glucoseOnly(true), types.Swahili)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Values["glucose"]; got != types.NumberValue(125) {
		t.Errorf("glucose = %v, want 125", got)
	}
	prompts := h.speaker.Prompts()
	if !strings.HasPrefix(prompts[0], "Tafadhali taja sukari ya damu.") {
		t.Errorf("announcement = %q, want Swahili", prompts[0])
	}
	for _, l := range h.speaker.langs {
		if l != types.Swahili {
			t.Errorf("spoke in %s, want sw", l)
		}
	}
}

func TestRun_HeuristicMatchIsConfirmedAndOpensDependentField(t *testing.T) {
	t.Parallel()

	h := newHarness(t, responses(
		"120", "yes",
		"i had a bit to eat a while back", "yes", // heuristic Post-meal needs confirmation
		"balanced",
		"right arm",
	))

	res, err := h.machine.Run(context.Background(), testForm(), types.English)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Values["context"]; got != types.OptionValue("Post-meal") {
		t.Errorf("context = %v, want Post-meal", got)
	}
	if got := res.Values["meal_type"]; got != types.OptionValue("Balanced") {
		t.Errorf("meal_type = %v, want Balanced", got)
	}
	if got := res.Values["arm"]; got != types.OptionValue("Right") {
		t.Errorf("arm = %v, want Right", got)
	}
	if len(res.Bypassed) != 0 {
		t.Errorf("bypassed = %v, want none", res.Bypassed)
	}
	if !h.speaker.anyContains("You said Post-meal.") {
		t.Error("heuristic match was not confirmed")
	}
}

func TestRun_RetryReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		records    []audiomock.RecordResult
		stt        []sttmock.Response
		wantPrompt string
	}{
		{
			name:       "no audio",
			records:    []audiomock.RecordResult{{Err: audio.ErrNoAudio}},
			stt:        responses("95", "yes"),
			wantPrompt: "I did not hear anything. Please say your blood glucose.",
		},
		{
			name:       "empty recording",
			records:    []audiomock.RecordResult{{Clip: audio.Clip{SampleRate: 16000, Channels: 1}}},
			stt:        responses("95", "yes"),
			wantPrompt: "I did not hear anything.",
		},
		{
			name:       "transcription failure",
			stt:        []sttmock.Response{{Err: errors.New("HTTP 503")}, {Text: "95"}, {Text: "yes"}},
			wantPrompt: "Sorry, I could not understand that.",
		},
		{
			name:       "empty transcript",
			stt:        []sttmock.Response{{}, {Text: "95"}, {Text: "yes"}},
			wantPrompt: "Sorry, I could not understand that.",
		},
		{
			name:       "out of range",
			stt:        responses("700", "95", "yes"),
			wantPrompt: "The blood glucose must be between 20 and 600 mg/dL.",
		},
		{
			name:       "required skip",
			stt:        responses("skip", "95", "yes"),
			wantPrompt: "The blood glucose is required and cannot be skipped.",
		},
		{
			name:       "confirmation rejected",
			stt:        responses("59", "no", "95", "yes"),
			wantPrompt: "I did not catch a valid answer.",
		},
		{
			name:       "confirmation unclear",
			stt:        responses("59", "maybe later", "95", "yes"),
			wantPrompt: "I did not catch a valid answer.",
		},
		{
			name:       "no audio during confirmation",
			records:    []audiomock.RecordResult{{Clip: audiomock.Tone(time.Second)}, {Err: audio.ErrNoAudio}},
			stt:        responses("59", "95", "yes"),
			wantPrompt: "I did not hear anything.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, tc.stt)
			h.rec.Results = tc.records

			res, err := h.machine.Run(context.Background(), glucoseOnly(true), types.English)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := res.Values["glucose"]; got != types.NumberValue(95) {
				t.Errorf("glucose = %v, want 95", got)
			}
			if !h.speaker.anyContains(tc.wantPrompt) {
				t.Errorf("no prompt contains %q; spoke %q", tc.wantPrompt, h.speaker.Prompts())
			}
		})
	}
}

func TestRun_OptionalSkip(t *testing.T) {
	t.Parallel()

	h := newHarness(t, responses("skip it"))
	res, err := h.machine.Run(context.Background(), glucoseOnly(false), types.English)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := res.Values["glucose"]; ok {
		t.Error("skipped field has a value")
	}
	if !slices.Equal(res.Skipped, []string{"glucose"}) {
		t.Errorf("skipped = %v, want [glucose]", res.Skipped)
	}
	if h.stt.CallCount() != 1 {
		t.Errorf("stt calls = %d, want 1 (no confirmation for a skip)", h.stt.CallCount())
	}
}

func TestRun_SwahiliSkipUtterance(t *testing.T) {
	t.Parallel()

	h := newHarness(t, responses("ruka"))
	res, err := h.machine.Run(context.Background(), glucoseOnly(false), types.Swahili)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(res.Skipped, []string{"glucose"}) {
		t.Errorf("skipped = %v, want [glucose]", res.Skipped)
	}
}

func TestRun_RequiredBudgetExhaustedAborts(t *testing.T) {
	t.Parallel()

	f := testForm()
	// Move glucose after an answered field so the partial result is visible.
	f.Fields = []form.Field{f.Fields[3], f.Fields[0]}

	h := newHarness(t, responses("left"))
	h.rec.Results = []audiomock.RecordResult{
		{Clip: audiomock.Tone(time.Second)},
		{Err: audio.ErrNoAudio}, {Err: audio.ErrNoAudio}, {Err: audio.ErrNoAudio},
	}

	res, err := h.machine.Run(context.Background(), f, types.English)

	var abort *dialogue.AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("err = %v, want *AbortError", err)
	}
	if abort.Field != "glucose" || abort.Attempts != 3 {
		t.Errorf("abort = %+v, want glucose after 3 attempts", abort)
	}
	if !errors.Is(err, dialogue.ErrBudgetExhausted) || !errors.Is(err, dialogue.ErrNoAudio) {
		t.Errorf("err = %v, want budget exhausted caused by no audio", err)
	}
	if got := res.Values["arm"]; got != types.OptionValue("Left") {
		t.Errorf("partial values = %v, want arm=Left", res.Values)
	}
	if _, ok := res.Values["glucose"]; ok {
		t.Error("aborted field has a value")
	}
	if h.rec.Calls() != 4 {
		t.Errorf("record calls = %d, want 4", h.rec.Calls())
	}
	if !h.speaker.anyContains("Please fill it in manually.") {
		t.Error("abort instruction not spoken")
	}
	if h.speaker.anyContains("All readings have been captured") {
		t.Error("completion spoken after abort")
	}
	if h.lastState() != dialogue.StateAborted {
		t.Errorf("last state = %s, want aborted", h.lastState())
	}
}

func TestRun_OptionalBudgetExhaustedLeavesUnset(t *testing.T) {
	t.Parallel()

	f := testForm()
	f.Fields = []form.Field{f.Fields[3], f.Fields[0]} // arm (optional), glucose

	h := newHarness(t, responses("120", "yes"))
	h.rec.Results = []audiomock.RecordResult{{Err: audio.ErrNoAudio}, {Err: audio.ErrNoAudio}}

	res, err := h.machine.Run(context.Background(), f, types.English)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(res.Unset, []string{"arm"}) {
		t.Errorf("unset = %v, want [arm]", res.Unset)
	}
	if got := res.Values["glucose"]; got != types.NumberValue(120) {
		t.Errorf("glucose = %v, want 120", got)
	}
	if h.rec.Calls() != 4 {
		t.Errorf("record calls = %d, want 2 for arm + 2 for glucose", h.rec.Calls())
	}
}

func TestRun_CustomBudget(t *testing.T) {
	t.Parallel()

	cfg := dialogue.DefaultConfig()
	cfg.RequiredAttempts = 1
	h := newHarness(t, responses("700"), dialogue.WithConfig(cfg))

	_, err := h.machine.Run(context.Background(), glucoseOnly(true), types.English)
	var abort *dialogue.AbortError
	if !errors.As(err, &abort) || abort.Attempts != 1 {
		t.Fatalf("err = %v, want abort after 1 attempt", err)
	}
	if !errors.Is(err, dialogue.ErrOutOfRange) {
		t.Errorf("err = %v, want out-of-range cause", err)
	}
}

func TestRun_ConfirmationTranscriptionFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		autoConfirm bool
		confirm     sttmock.Response
		wantSTT     int
	}{
		{"service error auto-confirms", true, sttmock.Response{Err: errors.New("HTTP 502")}, 2},
		{"empty transcript auto-confirms", true, sttmock.Response{}, 2},
		{"disabled retries instead", false, sttmock.Response{Err: errors.New("HTTP 502")}, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := dialogue.DefaultConfig()
			cfg.AutoConfirmOnFailure = tc.autoConfirm
			h := newHarness(t,
				[]sttmock.Response{{Text: "88"}, tc.confirm, {Text: "88"}, {Text: "yes"}},
				dialogue.WithConfig(cfg),
			)

			res, err := h.machine.Run(context.Background(), glucoseOnly(true), types.English)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if got := res.Values["glucose"]; got != types.NumberValue(88) {
				t.Errorf("glucose = %v, want 88", got)
			}
			if got := h.stt.CallCount(); got != tc.wantSTT {
				t.Errorf("stt calls = %d, want %d", got, tc.wantSTT)
			}
		})
	}
}

func TestRun_SpeechFailureDoesNotStopSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, responses("120", "yes"))
	h.speaker.err = errors.New("tts quota exceeded")

	res, err := h.machine.Run(context.Background(), glucoseOnly(true), types.English)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.Values["glucose"]; got != types.NumberValue(120) {
		t.Errorf("glucose = %v, want 120", got)
	}
}

func TestRun_CancelDuringRecording(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, nil)
	h.rec.Results = []audiomock.RecordResult{{Block: true}}
	h.rec.OnRecord = func(int) { cancel() }

	res, err := h.machine.Run(ctx, testForm(), types.English)
	if !errors.Is(err, dialogue.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want cancellation", err)
	}
	if len(res.Values) != 0 {
		t.Errorf("values = %v, want none", res.Values)
	}
	if got := h.speaker.Prompts(); len(got) != 1 {
		t.Errorf("spoke %q after cancellation, want only the first announcement", got)
	}
	if h.stt.CallCount() != 0 {
		t.Error("transcribed after cancellation")
	}
	if h.lastState() != dialogue.StateCancelled {
		t.Errorf("last state = %s, want cancelled", h.lastState())
	}
}

func TestMachine_CancelAndCurrent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.rec.Results = []audiomock.RecordResult{{Block: true}}

	var (
		snap      dialogue.Snapshot
		running   bool
		nestedErr error
		cancelled bool
	)
	h.rec.OnRecord = func(int) {
		snap, running = h.machine.Current()
		_, nestedErr = h.machine.Run(context.Background(), testForm(), types.English)
		cancelled = h.machine.Cancel()
	}

	_, err := h.machine.Run(context.Background(), testForm(), types.English)
	if !errors.Is(err, dialogue.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if !running || snap.ID != "sess-1" || snap.Field != "glucose" || snap.State != dialogue.StateListening || snap.Attempt != 1 {
		t.Errorf("snapshot = %+v, running = %v", snap, running)
	}
	if snap.Total != 4 {
		t.Errorf("snapshot total = %d, want 4", snap.Total)
	}
	if !errors.Is(nestedErr, dialogue.ErrSessionActive) {
		t.Errorf("nested Run err = %v, want ErrSessionActive", nestedErr)
	}
	if !cancelled {
		t.Error("Cancel reported no running session")
	}
	if h.machine.Cancel() {
		t.Error("Cancel after the session ended should report false")
	}
}

func TestRun_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	if _, err := h.machine.Run(context.Background(), form.Form{Name: "empty"}, types.English); err == nil {
		t.Error("expected error for a form without fields")
	}
	if _, err := h.machine.Run(context.Background(), testForm(), types.Language("fr")); err == nil {
		t.Error("expected error for an unsupported language")
	}
	if len(h.speaker.Prompts()) != 0 {
		t.Error("invalid input should not start a session")
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	t.Parallel()

	h := newHarness(t, responses("700", "95", "yes"))
	if _, err := h.machine.Run(context.Background(), glucoseOnly(true), types.English); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	sums := map[string]map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				key := attrString(dp.Attributes, "outcome") + attrString(dp.Attributes, "reason")
				if sums[m.Name] == nil {
					sums[m.Name] = map[string]int64{}
				}
				sums[m.Name][key] += dp.Value
			}
		}
	}

	if got := sums["vitalvoice.field.outcomes"][observe.OutcomeAccepted]; got != 1 {
		t.Errorf("accepted outcomes = %d, want 1", got)
	}
	if got := sums["vitalvoice.field.retries"]["out_of_range"]; got != 1 {
		t.Errorf("out_of_range retries = %d, want 1", got)
	}
	if got := sums["vitalvoice.sessions"][dialogue.OutcomeCompleted]; got != 1 {
		t.Errorf("completed sessions = %d, want 1", got)
	}
	if got := sums["vitalvoice.active_sessions"][""]; got != 0 {
		t.Errorf("active sessions = %d, want 0 after Run", got)
	}
}

func attrString(set attribute.Set, key string) string {
	v, _ := set.Value(attribute.Key(key))
	return v.AsString()
}
