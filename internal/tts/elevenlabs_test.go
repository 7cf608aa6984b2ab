package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewElevenLabsEngineRequiresKey(t *testing.T) {
	if _, err := NewElevenLabsEngine(ElevenLabsConfig{}, NewUsageTracker()); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestRenderInlineTags(t *testing.T) {
	cases := []struct {
		name string
		tags []string
		text string
		want string
	}{
		{"no tags", nil, "Hello there", "Hello there"},
		{"single tag", []string{"excited"}, "Hello there", "[excited] Hello there"},
		{"stacked tags", []string{"excited", "fast-paced"}, "Wow!", "[excited] [fast-paced] Wow!"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := renderInlineTags(c.tags, c.text); got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestSplitSentencesShortTextUntouched(t *testing.T) {
	got := splitSentences("Hello. World.", 4500)
	if len(got) != 1 || got[0] != "Hello. World." {
		t.Errorf("got %v", got)
	}
}

func TestSplitSentencesRespectsLimit(t *testing.T) {
	sentence := strings.Repeat("word ", 19) + "end." // 100 字符的句子
	text := strings.Repeat(sentence+" ", 10)

	pieces := splitSentences(strings.TrimSpace(text), 250)
	if len(pieces) < 2 {
		t.Fatalf("expected multiple pieces, got %d", len(pieces))
	}
	for i, p := range pieces {
		if len(p) > 250 {
			t.Errorf("piece %d has %d chars, limit 250", i, len(p))
		}
		if !strings.HasSuffix(p, "end.") {
			t.Errorf("piece %d not split at sentence boundary: %q", i, p[len(p)-20:])
		}
	}

	// 重组后内容不丢失
	joined := strings.Join(pieces, " ")
	if joined != strings.TrimSpace(text) {
		t.Error("pieces do not reassemble to original text")
	}
}

func TestSplitSentencesHardSplitsOversizedSentence(t *testing.T) {
	text := strings.Repeat("word ", 100) // 没有任何句子边界
	pieces := splitSentences(strings.TrimSpace(text), 120)
	if len(pieces) < 2 {
		t.Fatalf("expected hard split, got %d pieces", len(pieces))
	}
	for i, p := range pieces {
		if len(p) > 120 {
			t.Errorf("piece %d has %d chars", i, len(p))
		}
	}
}

// 请求体字段与 ElevenLabs API 契约一致。
func TestElevenLabsRequestShape(t *testing.T) {
	var captured struct {
		path  string
		query string
		key   string
		body  map[string]interface{}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.key = r.Header.Get("xi-api-key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &captured.body)
		// 返回 400 即可终止流程，请求体已捕获
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	engine, err := NewElevenLabsEngine(ElevenLabsConfig{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		Model:           "eleven_v3",
		Stability:       0.5,
		SimilarityBoost: 0.75,
		MaxAttempts:     1,
	}, NewUsageTracker())
	if err != nil {
		t.Fatal(err)
	}

	_, synthErr := engine.Synthesize(context.Background(), &Request{
		SegmentIndex:  0,
		Text:          "Hello there",
		ResolvedTags:  []string{"excited"},
		ResolvedSpeed: 1.05,
		VoiceID:       "voice-a",
	})
	if synthErr == nil {
		t.Fatal("expected error from 400 response")
	}

	if captured.path != "/v1/text-to-speech/voice-a" {
		t.Errorf("path = %q", captured.path)
	}
	if captured.query != "output_format=mp3_44100_128" {
		t.Errorf("query = %q", captured.query)
	}
	if captured.key != "test-key" {
		t.Errorf("xi-api-key = %q", captured.key)
	}
	if captured.body["text"] != "[excited] Hello there" {
		t.Errorf("text = %q", captured.body["text"])
	}
	if captured.body["model_id"] != "eleven_v3" {
		t.Errorf("model_id = %v", captured.body["model_id"])
	}
	vs, ok := captured.body["voice_settings"].(map[string]interface{})
	if !ok {
		t.Fatalf("voice_settings missing: %v", captured.body)
	}
	if vs["speed"] != 1.05 || vs["stability"] != 0.5 || vs["similarity_boost"] != 0.75 {
		t.Errorf("voice_settings = %v", vs)
	}
}

// 认证失败不重试，且不产生计费。
func TestElevenLabsAuthErrorNotRetriedNotBilled(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	usage := NewUsageTracker()
	engine, err := NewElevenLabsEngine(ElevenLabsConfig{
		APIKey:      "bad-key",
		BaseURL:     srv.URL,
		MaxAttempts: 3,
	}, usage)
	if err != nil {
		t.Fatal(err)
	}

	_, synthErr := engine.Synthesize(context.Background(), &Request{SegmentIndex: 4, Text: "hi", VoiceID: "v"})
	if !errors.Is(synthErr, ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", synthErr)
	}

	var se *SynthesisError
	if !errors.As(synthErr, &se) || se.SegmentIndex != 4 || se.Provider != ProviderElevenLabs {
		t.Errorf("error context wrong: %v", synthErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth error)", calls)
	}
	if usage.Summary().Segments != 0 {
		t.Error("failed call must not bill")
	}
}
