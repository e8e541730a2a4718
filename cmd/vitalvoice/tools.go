package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/vitalvoice/internal/config"
	"github.com/MrWong99/vitalvoice/internal/transcript"
	"github.com/MrWong99/vitalvoice/pkg/audio"
	"github.com/MrWong99/vitalvoice/pkg/form"
	"github.com/MrWong99/vitalvoice/pkg/numparse"
	"github.com/MrWong99/vitalvoice/pkg/options"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// langFlag resolves --lang, falling back to the configured default.
func langFlag(flag string, cfg *config.Config) (types.Language, error) {
	if flag == "" {
		return cfg.Language(), nil
	}
	return types.ParseLanguage(flag)
}

func newParseNumberCmd() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "parse-number <transcript...>",
		Short: "Parse a spoken number the way a capture session would",
		Example: `  vitalvoice parse-number one hundred twenty five
  vitalvoice parse-number --lang sw mia moja ishirini na tano`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			l, err := langFlag(lang, cfg)
			if err != nil {
				return err
			}
			lex, err := cfg.LexiconStore()
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			c := transcript.New(transcript.WithEntries(cfg.IntentEntries()...))
			if c.IsSkip(text, l) {
				fmt.Fprintln(out, "skip")
				return nil
			}
			n, ok := numparse.New(numparse.WithLexicon(lex)).Parse(text, l)
			if !ok {
				return fmt.Errorf("no number recognised in %q (%s)", text, l)
			}
			fmt.Fprintln(out, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "language: en or sw")
	return cmd
}

func newMapOptionCmd() *cobra.Command {
	var (
		lang     string
		formName string
	)
	cmd := &cobra.Command{
		Use:   "map-option <field> <transcript...>",
		Short: "Map a spoken answer to one of a field's options",
		Example: `  vitalvoice map-option context fasting, empty stomach
  vitalvoice map-option --lang sw arm kushoto`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			l, err := langFlag(lang, cfg)
			if err != nil {
				return err
			}
			store, err := cfg.OptionStore()
			if err != nil {
				return err
			}
			field, text := args[0], strings.Join(args[1:], " ")
			allowed := allowedOptions(cfg, formName, field)

			m := options.NewMapper(options.WithStore(store))
			match, ok := m.MapWithin(text, field, l, allowed)
			if !ok {
				return fmt.Errorf("no option of %q recognised in %q (%s)", field, text, l)
			}
			certainty := "clear"
			if !match.Clear {
				certainty = "needs confirmation"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", match.Option, certainty)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "language: en or sw")
	cmd.Flags().StringVarP(&formName, "form", "f", "", "take the option set from this form's field")
	return cmd
}

// allowedOptions returns the option set of field in the named form, or nil
// to use the keyword store's options.
func allowedOptions(cfg *config.Config, formName, field string) []string {
	f, ok := cfg.FindForm(formName)
	if !ok {
		return nil
	}
	fd, ok := f.Field(field)
	if !ok {
		return nil
	}
	if k, ok := fd.Kind.(form.Categorical); ok {
		return k.Options
	}
	return nil
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the audio input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}
			reg := config.NewRegistry()
			registerBuiltinProviders(reg)
			entry := cfg.Providers.Audio
			if entry.Name == "" {
				entry.Name = "pulse"
			}
			backend, err := reg.CreateAudio(entry)
			if err != nil {
				return err
			}
			defer backend.Close()

			lister, ok := backend.(audio.DeviceLister)
			if !ok {
				return fmt.Errorf("audio backend %q cannot list devices", entry.Name)
			}
			devs, err := lister.ListDevices(contextOf(cmd))
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devs)
		},
	}
}

func printDevices(w io.Writer, devs []audio.Device) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDESCRIPTION\tSTATE\tDEFAULT")
	for _, d := range devs {
		def := ""
		if d.Default {
			def = "*"
		}
		state := d.State
		if d.Muted {
			state += " (muted)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.Description, state, def)
	}
	return tw.Flush()
}

func newVoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List the voices offered by the TTS provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if cfg.Providers.TTS.Name == "" {
				return errors.New("providers.tts is not configured")
			}
			reg := config.NewRegistry()
			registerBuiltinProviders(reg)
			p, err := reg.CreateTTS(cfg.Providers.TTS)
			if err != nil {
				return err
			}
			voices, err := p.ListVoices(contextOf(cmd))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tLANGUAGE")
			for _, v := range voices {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Name, v.Language)
			}
			return tw.Flush()
		},
	}
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and summarise its forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", configPath)
			fmt.Fprintf(out, "default language: %s\n", cfg.Language())
			for _, f := range cfg.FormSet() {
				fmt.Fprintf(out, "form %q:\n", f.Name)
				for _, fd := range f.Fields {
					fmt.Fprintf(out, "  %s\n", describeField(fd))
				}
			}
			return nil
		},
	}
}

func describeField(f form.Field) string {
	var b strings.Builder
	b.WriteString(f.Name)
	if f.Required {
		b.WriteString(" (required)")
	}
	switch k := f.Kind.(type) {
	case form.Numeric:
		fmt.Fprintf(&b, ": number %d..%d", k.Min, k.Max)
		if k.Unit != "" {
			b.WriteString(" " + k.Unit)
		}
	case form.Categorical:
		fmt.Fprintf(&b, ": one of %s", strings.Join(k.Options, ", "))
	}
	if f.DependsOn != nil {
		fmt.Fprintf(&b, " [when %s = %s]", f.DependsOn.Field, f.DependsOn.Value)
	}
	return b.String()
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

