package config

import (
	"reflect"
	"slices"
	"strings"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; they are applied
// between sessions, never to a session in progress.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	FormsChanged bool
	FormChanges  []FormDiff

	VocabularyChanged bool
	PromptsChanged    bool
	VoicesChanged     bool
	DialogueChanged   bool

	// RestartRequired is set when provider or server settings changed; these
	// are only picked up on restart.
	RestartRequired bool
}

// FormDiff describes what changed for a single form between two configs.
type FormDiff struct {
	Name     string
	Modified bool
	Added    bool
	Removed  bool
}

// Any reports whether any hot-reloadable setting changed.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.FormsChanged || d.VocabularyChanged ||
		d.PromptsChanged || d.VoicesChanged || d.DialogueChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.VocabularyChanged = !reflect.DeepEqual(old.Vocabulary, new.Vocabulary)
	d.PromptsChanged = !reflect.DeepEqual(old.Prompts, new.Prompts)
	d.VoicesChanged = !reflect.DeepEqual(old.Voices, new.Voices)
	d.DialogueChanged = !reflect.DeepEqual(old.Dialogue, new.Dialogue)

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	d.RestartRequired = oldServer != newServer ||
		!reflect.DeepEqual(old.Providers, new.Providers) ||
		old.Journal != new.Journal

	// Build form lookup maps keyed by name.
	oldForms := make(map[string]int, len(old.Forms))
	for i := range old.Forms {
		oldForms[old.Forms[i].Name] = i
	}
	newForms := make(map[string]int, len(new.Forms))
	for i := range new.Forms {
		newForms[new.Forms[i].Name] = i
	}

	// Detect modified and removed forms.
	for name, oi := range oldForms {
		ni, exists := newForms[name]
		if !exists {
			d.FormChanges = append(d.FormChanges, FormDiff{Name: name, Removed: true})
			continue
		}
		if !reflect.DeepEqual(old.Forms[oi], new.Forms[ni]) {
			d.FormChanges = append(d.FormChanges, FormDiff{Name: name, Modified: true})
		}
	}

	// Detect added forms.
	for name := range newForms {
		if _, exists := oldForms[name]; !exists {
			d.FormChanges = append(d.FormChanges, FormDiff{Name: name, Added: true})
		}
	}

	slices.SortFunc(d.FormChanges, func(a, b FormDiff) int { return strings.Compare(a.Name, b.Name) })
	d.FormsChanged = len(d.FormChanges) > 0
	return d
}
