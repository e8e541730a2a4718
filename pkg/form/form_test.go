package form_test

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/vitalvoice/pkg/form"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

const sampleYAML = `
name: vitals
fields:
  - name: glucose
    label: blood glucose
    labels: { sw: sukari ya damu }
    kind: numeric
    min: 20
    max: 600
    unit: mg/dL
    required: true
  - name: context
    kind: categorical
    options: [Fasting, Post-meal]
    required: true
  - name: meal_type
    kind: categorical
    options: [Protein, Light snack]
    depends_on: { field: context, value: Post-meal }
`

func TestDecode(t *testing.T) {
	t.Parallel()

	forms, err := form.Decode(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(forms) != 1 {
		t.Fatalf("got %d forms, want 1", len(forms))
	}
	f := forms[0]
	if f.Name != "vitals" || len(f.Fields) != 3 {
		t.Fatalf("form = %+v", f)
	}

	g := f.Fields[0]
	num, ok := g.Kind.(form.Numeric)
	if !ok {
		t.Fatalf("glucose kind = %T, want Numeric", g.Kind)
	}
	if num.Min != 20 || num.Max != 600 || num.Unit != "mg/dL" || !g.Required {
		t.Errorf("glucose = %+v / %+v", g, num)
	}
	if got := g.LabelFor(types.Swahili); got != "sukari ya damu" {
		t.Errorf("LabelFor(sw) = %q", got)
	}
	if got := g.LabelFor(types.English); got != "blood glucose" {
		t.Errorf("LabelFor(en) = %q", got)
	}

	mt := f.Fields[2]
	if mt.DependsOn == nil || mt.DependsOn.Field != "context" || mt.DependsOn.Value != "Post-meal" {
		t.Errorf("meal_type depends_on = %+v", mt.DependsOn)
	}
	if got := mt.LabelFor(types.English); got != "meal type" {
		t.Errorf("LabelFor fallback = %q, want %q", got, "meal type")
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown kind", "name: f\nfields:\n  - {name: a, kind: text}\n", "kind"},
		{"missing bounds", "name: f\nfields:\n  - {name: a, kind: numeric, min: 1}\n", "min and max"},
		{"unknown key", "name: f\nfields:\n  - {name: a, kind: numeric, min: 1, max: 2, colour: red}\n", "colour"},
		{"unknown form key", "name: f\nextra: 1\nfields:\n  - {name: a, kind: numeric, min: 1, max: 2}\n", "extra"},
		{"bad label language", "name: f\nfields:\n  - {name: a, kind: numeric, min: 1, max: 2, labels: {fr: x}}\n", "fr"},
		{"empty", "", "no forms"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := form.Decode(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("Decode succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	num := form.Numeric{Min: 1, Max: 10}
	cat := form.Categorical{Options: []string{"A", "B"}}
	tests := []struct {
		name   string
		fields []form.Field
		want   string
	}{
		{"no fields", nil, "at least one field"},
		{"duplicate", []form.Field{{Name: "a", Kind: num}, {Name: "a", Kind: num}}, "duplicates"},
		{"inverted range", []form.Field{{Name: "a", Kind: form.Numeric{Min: 5, Max: 1}}}, "exceeds max"},
		{"no options", []form.Field{{Name: "a", Kind: form.Categorical{}}}, "needs options"},
		{"duplicate option", []form.Field{{Name: "a", Kind: form.Categorical{Options: []string{"Pre-meal", "pre meal"}}}}, "duplicate option"},
		{"no kind", []form.Field{{Name: "a"}}, "kind is required"},
		{"forward dependency", []form.Field{
			{Name: "a", Kind: num, DependsOn: &form.Dependency{Field: "b", Value: "A"}},
			{Name: "b", Kind: cat},
		}, "declared earlier"},
		{"dependency value not an option", []form.Field{
			{Name: "b", Kind: cat},
			{Name: "a", Kind: num, DependsOn: &form.Dependency{Field: "b", Value: "C"}},
		}, "not an option"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := form.Form{Name: "f", Fields: tc.fields}.Validate()
			if err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestVitals_IsValid(t *testing.T) {
	t.Parallel()
	if err := form.Vitals().Validate(); err != nil {
		t.Fatalf("Vitals().Validate: %v", err)
	}
}

func TestDependency_SatisfiedBy(t *testing.T) {
	t.Parallel()

	d := form.Dependency{Field: "context", Value: "Post-meal"}
	tests := []struct {
		name      string
		collected map[string]types.Value
		want      bool
	}{
		{"equal", map[string]types.Value{"context": types.OptionValue("Post-meal")}, true},
		{"normalised", map[string]types.Value{"context": types.OptionValue("post meal")}, true},
		{"different", map[string]types.Value{"context": types.OptionValue("Fasting")}, false},
		{"unset", map[string]types.Value{}, false},
	}
	for _, tc := range tests {
		if got := d.SatisfiedBy(tc.collected); got != tc.want {
			t.Errorf("%s: SatisfiedBy = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestField_YAMLRoundTrip(t *testing.T) {
	t.Parallel()

	in := form.Vitals()
	data, err := yaml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	forms, err := form.Decode(strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("Decode: %v\n%s", err, data)
	}
	out := forms[0]
	if len(out.Fields) != len(in.Fields) {
		t.Fatalf("got %d fields, want %d", len(out.Fields), len(in.Fields))
	}
	for i := range in.Fields {
		if in.Fields[i].Kind.Name() != out.Fields[i].Kind.Name() || in.Fields[i].Name != out.Fields[i].Name {
			t.Errorf("field %d: %+v != %+v", i, out.Fields[i], in.Fields[i])
		}
	}
}
