package openai_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/vitalvoice/pkg/provider/stt"
	"github.com/MrWong99/vitalvoice/pkg/provider/stt/openai"
	"github.com/MrWong99/vitalvoice/pkg/types"
)

type seen struct {
	path   string
	auth   string
	fields map[string]string
	file   []byte
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, func() seen) {
	t.Helper()
	var (
		mu   sync.Mutex
		last seen
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := seen{path: r.URL.Path, auth: r.Header.Get("Authorization"), fields: map[string]string{}}
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				rec.fields[k] = v[0]
			}
			if f, _, err := r.FormFile("file"); err == nil {
				rec.file, _ = io.ReadAll(f)
				f.Close()
			}
		}
		mu.Lock()
		last = rec
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, func() seen {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	if _, err := openai.New("", ""); err == nil {
		t.Error("expected error for empty API key")
	}
	p, err := openai.New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != openai.DefaultModel {
		t.Errorf("ModelID = %q, want %q", p.ModelID(), openai.DefaultModel)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv, last := newServer(t, http.StatusOK, `{"text":" mia moja na ishirini "}`)
	p, err := openai.New("sk-test", "whisper-1", openai.WithBaseURL(srv.URL+"/v1/"), openai.WithPrompt("Fasting, Random"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("RIFF-wav"), Language: types.Swahili})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "mia moja na ishirini" {
		t.Errorf("Text = %q", res.Text)
	}

	got := last()
	if !strings.HasSuffix(got.path, "/audio/transcriptions") {
		t.Errorf("path = %q", got.path)
	}
	if got.auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", got.auth)
	}
	for k, v := range map[string]string{"model": "whisper-1", "language": "sw", "prompt": "Fasting, Random"} {
		if got.fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, got.fields[k], v)
		}
	}
	if string(got.file) != "RIFF-wav" {
		t.Errorf("file = %q", got.file)
	}
}

func TestTranscribe_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		noText bool
	}{
		{name: "empty text", status: http.StatusOK, body: `{"text":"  "}`, noText: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"message":"bad audio","type":"invalid_request_error"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := newServer(t, tc.status, tc.body)
			p, _ := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/v1/"))
			_, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("RIFF"), Language: types.English})
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, stt.ErrNoTranscript) != tc.noText {
				t.Errorf("err = %v, ErrNoTranscript match want %v", err, tc.noText)
			}
		})
	}

	p, _ := openai.New("sk-test", "")
	if _, err := p.Transcribe(context.Background(), stt.Request{}); err == nil {
		t.Error("expected error for empty audio")
	}
}
