package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MrWong99/vitalvoice/internal/config"
	"github.com/MrWong99/vitalvoice/internal/dialogue"
	"github.com/MrWong99/vitalvoice/pkg/form"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

func TestDescribeField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field form.Field
		want  string
	}{
		{
			form.Field{Name: "glucose", Required: true, Kind: form.Numeric{Min: 20, Max: 600, Unit: "mg/dL"}},
			"glucose (required): number 20..600 mg/dL",
		},
		{
			form.Field{
				Name:      "meal_type",
				DependsOn: &form.Dependency{Field: "context", Value: "Post-meal"},
				Kind:      form.Categorical{Options: []string{"Light snack", "Balanced"}},
			},
			"meal_type: one of Light snack, Balanced [when context = Post-meal]",
		},
	}
	for _, tc := range tests {
		if got := describeField(tc.field); got != tc.want {
			t.Errorf("describeField(%s) = %q, want %q", tc.field.Name, got, tc.want)
		}
	}
}

func TestKeywords(t *testing.T) {
	t.Parallel()

	entry := config.ProviderEntry{Options: map[string]any{
		"keywords": []any{"glucose", map[string]any{"word": "sukari", "boost": 2}, map[string]any{"boost": 3}},
	}}
	kws := keywords(entry)
	if len(kws) != 2 {
		t.Fatalf("keywords = %+v, want 2", kws)
	}
	if kws[0].Word != "glucose" || kws[0].Boost != 1 {
		t.Errorf("kws[0] = %+v", kws[0])
	}
	if kws[1].Word != "sukari" || kws[1].Boost != 2 {
		t.Errorf("kws[1] = %+v", kws[1])
	}
}

func TestPrintResult(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printResult(&buf, dialogue.Result{
		SessionID: "s1",
		Form:      "vitals",
		Language:  types.English,
		Values:    map[string]types.Value{"glucose": types.NumberValue(125), "arm": types.OptionValue("Left")},
		Unset:     []string{"position"},
	}, &dialogue.AbortError{Field: "context", Attempts: 3, Cause: dialogue.ErrParseFailed})

	out := buf.String()
	for _, want := range []string{"s1 (vitals, en): aborted", "arm", "Left", "glucose", "125", "unset:    position", "context needs manual entry"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "arm") > strings.Index(out, "glucose") {
		t.Error("values are not sorted by field name")
	}
}

func TestAllowedOptions(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Forms: []form.Form{{
		Name: "bp",
		Fields: []form.Field{
			{Name: "systolic", Kind: form.Numeric{Min: 60, Max: 250}},
			{Name: "arm", Kind: form.Categorical{Options: []string{"Left", "Right"}}},
		},
	}}}
	if got := allowedOptions(cfg, "bp", "arm"); len(got) != 2 {
		t.Errorf("allowedOptions(arm) = %v", got)
	}
	if got := allowedOptions(cfg, "bp", "systolic"); got != nil {
		t.Errorf("allowedOptions(systolic) = %v, want nil", got)
	}
	if got := allowedOptions(cfg, "missing", "arm"); got != nil {
		t.Errorf("allowedOptions(missing form) = %v, want nil", got)
	}
}
