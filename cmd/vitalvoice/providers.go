package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrWong99/vitalvoice/internal/app"
	"github.com/MrWong99/vitalvoice/internal/config"
	"github.com/MrWong99/vitalvoice/internal/observe"
	"github.com/MrWong99/vitalvoice/internal/resilience"
	"github.com/MrWong99/vitalvoice/pkg/audio"
	audiomock "github.com/MrWong99/vitalvoice/pkg/audio/mock"
	"github.com/MrWong99/vitalvoice/pkg/audio/pulse"
	"github.com/MrWong99/vitalvoice/pkg/provider/stt"
	"github.com/MrWong99/vitalvoice/pkg/provider/stt/deepgram"
	sttmock "github.com/MrWong99/vitalvoice/pkg/provider/stt/mock"
	sttopenai "github.com/MrWong99/vitalvoice/pkg/provider/stt/openai"
	"github.com/MrWong99/vitalvoice/pkg/provider/stt/whisper"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts/coqui"
	"github.com/MrWong99/vitalvoice/pkg/provider/tts/elevenlabs"
	ttsmock "github.com/MrWong99/vitalvoice/pkg/provider/tts/mock"
	ttsopenai "github.com/MrWong99/vitalvoice/pkg/provider/tts/openai"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

// registerBuiltinProviders wires every built-in provider factory into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(types.Language(lang)))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.OptString("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(types.Language(lang)))
		}
		if n := entry.OptFloat("threads"); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(types.Language(lang)))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if kws := keywords(entry); len(kws) > 0 {
			opts = append(opts, deepgram.WithKeywords(kws...))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		if prompt := entry.OptString("prompt"); prompt != "" {
			opts = append(opts, sttopenai.WithPrompt(prompt))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})

	// mock replays a fixed transcript; useful for demos without a model.
	reg.RegisterSTT("mock", func(entry config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{Default: sttmock.Response{Text: entry.OptString("text")}}, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.OptString("output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.OptString("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(types.Language(lang)))
		}
		if mode := entry.OptString("api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		return ttsopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterAudio("pulse", func(entry config.ProviderEntry) (audio.Backend, error) {
		var opts []pulse.Option
		if in := entry.OptString("input"); in != "" {
			opts = append(opts, pulse.WithInput(in))
		}
		if fb := entry.OptString("fallback"); fb != "" {
			opts = append(opts, pulse.WithFallback(fb))
		}
		if th := entry.OptFloat("silence_threshold"); th > 0 {
			opts = append(opts, pulse.WithSilenceThreshold(th))
		}
		return pulse.New(opts...)
	})

	reg.RegisterAudio("mock", func(config.ProviderEntry) (audio.Backend, error) {
		return audiomock.NewBackend(), nil
	})

	for _, kind := range []string{"stt", "tts", "audio"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// keywords reads the deepgram "keywords" option: a list of words, or of
// {word, boost} maps.
func keywords(entry config.ProviderEntry) []deepgram.Keyword {
	list, _ := entry.Options["keywords"].([]any)
	out := make([]deepgram.Keyword, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			out = append(out, deepgram.Keyword{Word: v, Boost: 1})
		case map[string]any:
			word, _ := v["word"].(string)
			if word == "" {
				continue
			}
			kw := deepgram.Keyword{Word: word, Boost: 1}
			if b, ok := v["boost"].(float64); ok {
				kw.Boost = b
			} else if b, ok := v["boost"].(int); ok {
				kw.Boost = float64(b)
			}
			out = append(out, kw)
		}
	}
	return out
}

// builtProviders is what buildProviders hands back: the providers for
// [app.New] plus the closers for providers holding native resources.
type builtProviders struct {
	*app.Providers
	closers []func() error
}

// buildProviders instantiates the providers named in cfg. When fallbacks are
// configured the primary is wrapped in a failover group whose breaker
// transitions are counted on met.
func buildProviders(cfg *config.Config, reg *config.Registry, met *observe.Metrics) (*builtProviders, error) {
	out := &builtProviders{Providers: &app.Providers{}}
	track := func(p any) {
		if c, ok := p.(io.Closer); ok {
			out.closers = append(out.closers, c.Close)
		}
	}
	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Info("provider breaker changed state", "provider", name, "from", from, "to", to)
				met.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}

	// STT is required.
	primary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	track(primary)
	out.STT, out.STTName = primary, cfg.Providers.STT.Name
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)
	if len(cfg.Providers.STTFallbacks) > 0 {
		fb := resilience.NewSTTFallback(primary, cfg.Providers.STT.Name, fbCfg)
		for _, entry := range cfg.Providers.STTFallbacks {
			p, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, errors.Join(fmt.Errorf("create stt fallback %q: %w", entry.Name, err), out.close())
			}
			track(p)
			fb.AddFallback(entry.Name, p)
		}
		out.STT = fb
		slog.Info("stt failover enabled", "order", fb.Names())
	}

	// TTS is optional; without it prompts are printed.
	if name := cfg.Providers.TTS.Name; name != "" {
		primary, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("create tts provider %q: %w", name, err), out.close())
		}
		out.TTS, out.TTSName = primary, name
		slog.Info("provider created", "kind", "tts", "name", name)
		if len(cfg.Providers.TTSFallbacks) > 0 {
			fb := resilience.NewTTSFallback(primary, name, fbCfg)
			for _, entry := range cfg.Providers.TTSFallbacks {
				p, err := reg.CreateTTS(entry)
				if err != nil {
					return nil, errors.Join(fmt.Errorf("create tts fallback %q: %w", entry.Name, err), out.close())
				}
				fb.AddFallback(entry.Name, p)
			}
			out.TTS = fb
			slog.Info("tts failover enabled", "order", fb.Names())
		}
	}

	audioEntry := cfg.Providers.Audio
	if audioEntry.Name == "" {
		audioEntry.Name = "pulse"
	}
	if audioEntry.OptFloat("silence_threshold") == 0 && cfg.Dialogue.SilenceThreshold > 0 {
		opts := make(map[string]any, len(audioEntry.Options)+1)
		for k, v := range audioEntry.Options {
			opts[k] = v
		}
		opts["silence_threshold"] = cfg.Dialogue.SilenceThreshold
		audioEntry.Options = opts
	}
	backend, err := reg.CreateAudio(audioEntry)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create audio backend %q: %w", audioEntry.Name, err), out.close())
	}
	out.Audio = backend
	slog.Info("provider created", "kind", "audio", "name", audioEntry.Name)
	return out, nil
}

func (b *builtProviders) close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
