// Package form describes the ordered fields a capture session asks for.
//
// A [Field] is either [Numeric] (an integer within a closed range) or
// [Categorical] (one of a fixed option set); the variant is carried by
// [Field.Kind] so code dispatching on it is exhaustive instead of keyed on
// field names. Forms are usually declared in YAML:
//
//	name: vitals
//	fields:
//	  - name: glucose
//	    label: blood glucose
//	    kind: numeric
//	    min: 20
//	    max: 600
//	    unit: mg/dL
//	    required: true
//	  - name: meal_type
//	    kind: categorical
//	    options: [High-carb, Balanced, Protein, Light snack]
//	    depends_on: { field: context, value: Post-meal }
package form

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/vitalvoice/pkg/textnorm"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// Kind is the sealed variant of a field: [Numeric] or [Categorical].
type Kind interface {
	// Name returns "numeric" or "categorical".
	Name() string
	isKind()
}

// Numeric accepts integers within [Min, Max].
type Numeric struct {
	Min  int
	Max  int
	Unit string
}

func (Numeric) Name() string { return "numeric" }
func (Numeric) isKind()      {}

// Contains reports whether n lies within the range.
func (k Numeric) Contains(n int) bool { return n >= k.Min && n <= k.Max }

// Categorical accepts one of Options.
type Categorical struct {
	Options []string
}

func (Categorical) Name() string { return "categorical" }
func (Categorical) isKind()      {}

// Has reports whether opt is exactly one of the options.
func (k Categorical) Has(opt string) bool { return slices.Contains(k.Options, opt) }

// Dependency gates a field on the value already collected for an earlier one.
type Dependency struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// SatisfiedBy reports whether collected holds the required value. Values are
// compared after normalisation so "post meal" satisfies "Post-meal".
func (d Dependency) SatisfiedBy(collected map[string]types.Value) bool {
	v, ok := collected[d.Field]
	if !ok {
		return false
	}
	return textnorm.Normalize(v.String()) == textnorm.Normalize(d.Value)
}

// Field is one entry of a form. Fields are immutable while a session runs.
type Field struct {
	Name     string
	Label    string
	Labels   map[types.Language]string
	Required bool

	// DependsOn is nil for unconditional fields.
	DependsOn *Dependency

	Kind Kind
}

// LabelFor returns the label to speak in lang, falling back to Label and
// then Name.
func (f Field) LabelFor(lang types.Language) string {
	if l := f.Labels[lang]; l != "" {
		return l
	}
	if f.Label != "" {
		return f.Label
	}
	return strings.ReplaceAll(f.Name, "_", " ")
}

// fieldYAML is the flat YAML shape of a Field.
type fieldYAML struct {
	Name      string            `yaml:"name"`
	Label     string            `yaml:"label,omitempty"`
	Labels    map[string]string `yaml:"labels,omitempty"`
	Required  bool              `yaml:"required,omitempty"`
	DependsOn *Dependency       `yaml:"depends_on,omitempty"`
	Kind      string            `yaml:"kind"`
	Min       *int              `yaml:"min,omitempty"`
	Max       *int              `yaml:"max,omitempty"`
	Unit      string            `yaml:"unit,omitempty"`
	Options   []string          `yaml:"options,omitempty"`
}

var knownFieldKeys = map[string]bool{
	"name": true, "label": true, "labels": true, "required": true, "depends_on": true,
	"kind": true, "min": true, "max": true, "unit": true, "options": true,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	// node.Decode does not inherit the outer decoder's KnownFields setting.
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if key := node.Content[i].Value; !knownFieldKeys[key] {
				return fmt.Errorf("form: line %d: unknown field key %q", node.Content[i].Line, key)
			}
		}
	}

	var raw fieldYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}

	out := Field{
		Name:      raw.Name,
		Label:     raw.Label,
		Required:  raw.Required,
		DependsOn: raw.DependsOn,
	}
	if len(raw.Labels) > 0 {
		out.Labels = make(map[types.Language]string, len(raw.Labels))
		for tag, label := range raw.Labels {
			lang, err := types.ParseLanguage(tag)
			if err != nil {
				return fmt.Errorf("form: field %q: labels: %w", raw.Name, err)
			}
			out.Labels[lang] = label
		}
	}

	switch raw.Kind {
	case "numeric":
		if raw.Min == nil || raw.Max == nil {
			return fmt.Errorf("form: field %q: numeric fields need min and max", raw.Name)
		}
		if len(raw.Options) > 0 {
			return fmt.Errorf("form: field %q: numeric fields take no options", raw.Name)
		}
		out.Kind = Numeric{Min: *raw.Min, Max: *raw.Max, Unit: raw.Unit}
	case "categorical":
		if raw.Min != nil || raw.Max != nil {
			return fmt.Errorf("form: field %q: categorical fields take no min/max", raw.Name)
		}
		out.Kind = Categorical{Options: raw.Options}
	default:
		return fmt.Errorf("form: field %q: kind %q is not numeric or categorical", raw.Name, raw.Kind)
	}

	*f = out
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f Field) MarshalYAML() (any, error) {
	raw := fieldYAML{
		Name:      f.Name,
		Label:     f.Label,
		Required:  f.Required,
		DependsOn: f.DependsOn,
	}
	if len(f.Labels) > 0 {
		raw.Labels = make(map[string]string, len(f.Labels))
		for lang, l := range f.Labels {
			raw.Labels[lang.String()] = l
		}
	}
	switch k := f.Kind.(type) {
	case Numeric:
		raw.Kind = k.Name()
		raw.Min, raw.Max, raw.Unit = &k.Min, &k.Max, k.Unit
	case Categorical:
		raw.Kind = k.Name()
		raw.Options = k.Options
	default:
		return nil, fmt.Errorf("form: field %q has no kind", f.Name)
	}
	return raw, nil
}

// Form is an ordered list of fields captured in one session.
type Form struct {
	Name   string  `yaml:"name"`
	Fields []Field `yaml:"fields"`
}

// Field returns the field called name.
func (f Form) Field(name string) (Field, bool) {
	for _, fd := range f.Fields {
		if fd.Name == name {
			return fd, true
		}
	}
	return Field{}, false
}

// Validate checks the form and returns every problem found, joined.
func (f Form) Validate() error {
	var errs []error
	if f.Name == "" {
		errs = append(errs, errors.New("form: name is required"))
	}
	if len(f.Fields) == 0 {
		errs = append(errs, fmt.Errorf("form %q: at least one field is required", f.Name))
	}

	seen := make(map[string]int, len(f.Fields))
	for i, fd := range f.Fields {
		prefix := fmt.Sprintf("form %q: fields[%d]", f.Name, i)
		if fd.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", prefix))
		} else if j, dup := seen[fd.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: name %q duplicates fields[%d]", prefix, fd.Name, j))
		}

		switch k := fd.Kind.(type) {
		case Numeric:
			if k.Min > k.Max {
				errs = append(errs, fmt.Errorf("%s: min %d exceeds max %d", prefix, k.Min, k.Max))
			}
		case Categorical:
			if len(k.Options) == 0 {
				errs = append(errs, fmt.Errorf("%s: categorical field needs options", prefix))
			}
			uniq := make(map[string]bool, len(k.Options))
			for _, o := range k.Options {
				n := textnorm.Normalize(o)
				if n == "" {
					errs = append(errs, fmt.Errorf("%s: empty option", prefix))
					continue
				}
				if uniq[n] {
					errs = append(errs, fmt.Errorf("%s: duplicate option %q", prefix, o))
				}
				uniq[n] = true
			}
		default:
			errs = append(errs, fmt.Errorf("%s: kind is required", prefix))
		}

		if d := fd.DependsOn; d != nil {
			j, ok := seen[d.Field]
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("%s: depends_on field %q must be declared earlier", prefix, d.Field))
			case d.Value == "":
				errs = append(errs, fmt.Errorf("%s: depends_on value is required", prefix))
			default:
				if c, isCat := f.Fields[j].Kind.(Categorical); isCat && !hasNormalized(c.Options, d.Value) {
					errs = append(errs, fmt.Errorf("%s: depends_on value %q is not an option of %q", prefix, d.Value, d.Field))
				}
			}
		}

		if fd.Name != "" {
			if _, dup := seen[fd.Name]; !dup {
				seen[fd.Name] = i
			}
		}
	}
	return errors.Join(errs...)
}

func hasNormalized(opts []string, v string) bool {
	want := textnorm.Normalize(v)
	for _, o := range opts {
		if textnorm.Normalize(o) == want {
			return true
		}
	}
	return false
}

// Decode reads one or more YAML documents, each holding a form, and
// validates them. Unknown keys are rejected.
func Decode(r io.Reader) ([]Form, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var forms []Form
	for {
		var f Form
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("form: decode: %w", err)
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	if len(forms) == 0 {
		return nil, errors.New("form: no forms found")
	}
	return forms, nil
}
