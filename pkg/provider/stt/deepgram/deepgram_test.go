package deepgram

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/lettersprout/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Options{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "host", "api.deepgram.com", u.Host)
	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "keywords", "", q.Get("keywords"))
}

func TestBuildURL_CustomModelAndLanguageOverride(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("de-DE"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, _ := p.buildURL(stt.Options{})
	q, _ := url.ParseQuery(strings.SplitN(rawURL, "?", 2)[1])
	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))

	rawURL, _ = p.buildURL(stt.Options{Language: "fr"})
	q, _ = url.ParseQuery(strings.SplitN(rawURL, "?", 2)[1])
	assertEqual(t, "language override", "fr", q.Get("language"))
}

func TestBuildURL_Keywords(t *testing.T) {
	p, _ := New("key")
	rawURL, err := p.buildURL(stt.Options{Hint: "I. Ice cream.", Keywords: []string{"Ice", "cream"}})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	u, _ := url.Parse(rawURL)
	kws := u.Query()["keywords"]
	if len(kws) != 2 || kws[0] != "Ice:2" || kws[1] != "cream:2" {
		t.Errorf("keywords = %v, want [Ice:2 cream:2]", kws)
	}
}

// ---- response parsing ----

func TestParseDeepgramResponse_Final(t *testing.T) {
	msg := []byte(`{
		"type": "Results",
		"is_final": true,
		"start": 0.5,
		"duration": 1.25,
		"channel": {"alternatives": [{"transcript": "apple", "confidence": 0.9}]}
	}`)
	seg, ok := parseDeepgramResponse(msg)
	if !ok {
		t.Fatal("expected ok")
	}
	assertEqual(t, "text", "apple", seg.Text)
	if math.Abs(seg.AvgLogProb-math.Log(0.9)) > 1e-12 {
		t.Errorf("AvgLogProb = %v, want ln(0.9)", seg.AvgLogProb)
	}
	if seg.Start != 500*time.Millisecond || seg.End != 1750*time.Millisecond {
		t.Errorf("timing = %v-%v", seg.Start, seg.End)
	}
}

func TestParseDeepgramResponse_ZeroConfidenceStaysFinite(t *testing.T) {
	seg, ok := parseDeepgramResponse([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"x","confidence":0}]}}`))
	if !ok {
		t.Fatal("expected ok")
	}
	if math.IsInf(seg.AvgLogProb, 0) {
		t.Error("AvgLogProb must stay finite")
	}
}

func TestParseDeepgramResponse_Ignored(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"partial", `{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"ap"}]}}`},
		{"metadata", `{"type":"Metadata","request_id":"abc"}`},
		{"empty alternatives", `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`},
		{"empty transcript", `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":""}]}}`},
		{"invalid json", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := parseDeepgramResponse([]byte(tt.msg)); ok {
				t.Error("expected message to be ignored")
			}
		})
	}
}

// ---- end-to-end over a local websocket ----

func TestTranscribe_CollectsFinals(t *testing.T) {
	var (
		mu       sync.Mutex
		received []byte
		authz    string
		query    url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		authz = r.Header.Get("Authorization")
		query = r.URL.Query()
		mu.Unlock()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && strings.Contains(string(data), "CloseStream") {
				break
			}
			mu.Lock()
			received = append(received, data...)
			mu.Unlock()
		}
		msgs := []string{
			`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"ap","confidence":0.4}]}}`,
			`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"apple","confidence":0.8}]}}`,
			`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"pie","confidence":0.6}]}}`,
			`{"type":"Metadata"}`,
		}
		for _, m := range msgs {
			if err := conn.Write(ctx, websocket.MessageText, []byte(m)); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	clip := make([]byte, chunkSize*2+10)
	for i := range clip {
		clip[i] = byte(i)
	}

	segs, err := p.Transcribe(context.Background(), clip, stt.Options{Keywords: []string{"Apple"}})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "apple" || segs[1].Text != "pie" {
		t.Fatalf("segments = %+v, want [apple pie]", segs)
	}

	mu.Lock()
	defer mu.Unlock()
	assertEqual(t, "authorization", "Token secret", authz)
	assertEqual(t, "keywords", "Apple:2", query.Get("keywords"))
	if len(received) != len(clip) {
		t.Errorf("server received %d bytes, want %d", len(received), len(clip))
	}
}

func TestTranscribe_AbnormalClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Close(websocket.StatusPolicyViolation, "bad auth")
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint("ws"+strings.TrimPrefix(srv.URL, "http")))
	if _, err := p.Transcribe(context.Background(), []byte{1, 2, 3}, stt.Options{}); err == nil {
		t.Fatal("expected error on abnormal close")
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Transcribe(context.Background(), nil, stt.Options{}); err == nil {
		t.Fatal("expected error for empty audio")
	}
}

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
