package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/lettersprout/pkg/audio"
	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// TestNew_DefaultModel verifies that an empty model string defaults to whisper-1.
func TestNew_DefaultModel(t *testing.T) {
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != string(DefaultModel) {
		t.Errorf("expected default model %s, got %s", DefaultModel, p.ModelID())
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New("", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestParseVerbose(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		text     string
		wantN    int
		wantText string
		wantLP   float64
	}{
		{
			name:     "segments",
			raw:      `{"text":"dog","segments":[{"text":" dog","start":0,"end":0.4,"avg_logprob":-0.25}]}`,
			wantN:    1,
			wantText: " dog",
			wantLP:   -0.25,
		},
		{
			name:     "text only",
			raw:      `{"text":"dog"}`,
			wantN:    1,
			wantText: "dog",
		},
		{
			name:     "empty raw falls back to typed text",
			text:     "cat",
			wantN:    1,
			wantText: "cat",
		},
		{
			name:  "silence",
			raw:   `{"text":" "}`,
			wantN: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := parseVerbose(tt.raw, tt.text)
			if err != nil {
				t.Fatalf("parseVerbose: %v", err)
			}
			if len(segs) != tt.wantN {
				t.Fatalf("got %d segments, want %d", len(segs), tt.wantN)
			}
			if tt.wantN > 0 && (segs[0].Text != tt.wantText || segs[0].AvgLogProb != tt.wantLP) {
				t.Errorf("segment = %+v", segs[0])
			}
		})
	}
}

func TestParseVerbose_Malformed(t *testing.T) {
	if _, err := parseVerbose("{nope", ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTranscribe_SendsVerboseRequest(t *testing.T) {
	var fields map[string][]string
	var filename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields = r.MultipartForm.Value
		if _, hdr, err := r.FormFile("file"); err == nil {
			filename = hdr.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text": "apple",
			"segments": []map[string]any{
				{"text": "apple", "start": 0, "end": 0.6, "avg_logprob": -0.1},
			},
		})
	}))
	defer srv.Close()

	p, err := New("sk-test", "", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wav := audio.EncodeWAV(audio.Clip{PCM: make([]byte, 64), SampleRate: 16000, Channels: 1})
	segs, err := p.Transcribe(context.Background(), wav, stt.Options{Language: "en", Hint: "A. Apple."})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "apple" || segs[0].AvgLogProb != -0.1 {
		t.Errorf("segments = %+v", segs)
	}

	want := map[string]string{
		"model":           "whisper-1",
		"response_format": "verbose_json",
		"language":        "en",
		"prompt":          "A. Apple.",
	}
	for k, v := range want {
		if got := fields[k]; len(got) == 0 || got[0] != v {
			t.Errorf("field %s = %v, want %q", k, got, v)
		}
	}
	if filename != "audio.wav" {
		t.Errorf("filename = %q, want audio.wav", filename)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, _ := New("sk-test", "", WithBaseURL(srv.URL+"/"), WithMaxRetries(0))
	if _, err := p.Transcribe(context.Background(), []byte("garbage"), stt.Options{}); err == nil {
		t.Fatal("expected error")
	}
}
