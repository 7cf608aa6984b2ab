package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"Providers.ElevenLabs.BaseURL", cfg.Providers.ElevenLabs.BaseURL, "https://api.elevenlabs.io"},
		{"Providers.ElevenLabs.Model", cfg.Providers.ElevenLabs.Model, "eleven_v3"},
		{"Providers.Cartesia.BaseURL", cfg.Providers.Cartesia.BaseURL, "https://api.cartesia.ai"},
		{"Providers.Cartesia.Model", cfg.Providers.Cartesia.Model, "sonic-english"},
		{"Providers.Cartesia.Version", cfg.Providers.Cartesia.Version, "2024-06-10"},
		{"Synthesis.Concurrency", cfg.Synthesis.Concurrency, 3},
		{"Synthesis.MaxAttempts", cfg.Synthesis.MaxAttempts, 3},
		{"Synthesis.TimeoutSeconds", cfg.Synthesis.TimeoutSeconds, 120},
		{"Audio.SampleRate", cfg.Audio.SampleRate, 44100},
		{"Audio.CrossfadeMs", cfg.Audio.CrossfadeMs, 10},
		{"Cache.MaxSizeMB", cfg.Cache.MaxSizeMB, 512},
		{"Output.Dir", cfg.Output.Dir, "./output"},
		{"Log.Level", cfg.Log.Level, "info"},
	}

	for _, c := range checks {
		switch want := c.want.(type) {
		case int:
			if c.got.(int) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		case string:
			if c.got.(string) != want {
				t.Errorf("%s: got %v, want %v", c.name, c.got, want)
			}
		}
	}

	if cfg.Speed.SpeakerA != 1.0 || cfg.Speed.SpeakerB != 1.0 {
		t.Errorf("speed adjustments should default to 1.0: got A=%v B=%v", cfg.Speed.SpeakerA, cfg.Speed.SpeakerB)
	}
	if cfg.Languages["english"].Speed != 1.05 {
		t.Errorf("english default speed: got %v, want 1.05", cfg.Languages["english"].Speed)
	}
	if cfg.Languages["german"].Code != "de" {
		t.Errorf("german default code: got %q, want de", cfg.Languages["german"].Code)
	}
}

func TestSetDefaults_FillsVoiceTable(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	for _, provider := range []string{"elevenlabs", "cartesia", "edge"} {
		for _, lang := range []string{"german", "english", "dutch"} {
			voices, err := cfg.Voices.Lookup(provider, lang)
			if err != nil {
				t.Errorf("Lookup(%s, %s) failed: %v", provider, lang, err)
				continue
			}
			if voices.SpeakerA == "" || voices.SpeakerB == "" {
				t.Errorf("Lookup(%s, %s) returned incomplete voices: %+v", provider, lang, voices)
			}
		}
	}
}

func TestSetDefaults_DoesNotOverride(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{
			ElevenLabs: ElevenLabsConfig{Model: "eleven_multilingual_v2", Stability: 0.3},
			Cartesia:   CartesiaConfig{Model: "sonic-multilingual", Version: "2025-01-01"},
		},
		Voices: VoiceTable{
			"elevenlabs": {"english": {SpeakerA: "custom-a", SpeakerB: "custom-b"}},
		},
		Synthesis: SynthesisConfig{Concurrency: 1, MaxAttempts: 5},
		Audio:     AudioConfig{SampleRate: 24000, CrossfadeMs: 20},
		Log:       LogConfig{Level: "debug"},
	}
	setDefaults(cfg)

	if cfg.Providers.ElevenLabs.Model != "eleven_multilingual_v2" {
		t.Errorf("ElevenLabs.Model should not be overridden: got %s", cfg.Providers.ElevenLabs.Model)
	}
	if cfg.Providers.ElevenLabs.Stability != 0.3 {
		t.Errorf("ElevenLabs.Stability should not be overridden: got %v", cfg.Providers.ElevenLabs.Stability)
	}
	if cfg.Providers.Cartesia.Version != "2025-01-01" {
		t.Errorf("Cartesia.Version should not be overridden: got %s", cfg.Providers.Cartesia.Version)
	}
	voices, err := cfg.Voices.Lookup("elevenlabs", "english")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if voices.SpeakerA != "custom-a" {
		t.Errorf("custom voice should not be overridden: got %s", voices.SpeakerA)
	}
	if cfg.Synthesis.Concurrency != 1 {
		t.Errorf("Concurrency should not be overridden: got %d", cfg.Synthesis.Concurrency)
	}
	if cfg.Audio.SampleRate != 24000 {
		t.Errorf("SampleRate should not be overridden: got %d", cfg.Audio.SampleRate)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level should not be overridden: got %s", cfg.Log.Level)
	}
	// 其它 (服务商, 语言) 组合仍应补全默认值
	if _, err := cfg.Voices.Lookup("elevenlabs", "german"); err != nil {
		t.Errorf("german voices should be filled with defaults: %v", err)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	yamlContent := `
providers:
  elevenlabs:
    api_key: test-el-key
    model: eleven_turbo_v2
  cartesia:
    api_key: test-crts-key
voices:
  cartesia:
    german:
      speaker_a: aaaa-1111
      speaker_b: bbbb-2222
languages:
  german:
    speed: 0.95
synthesis:
  concurrency: 2
audio:
  sample_rate: 22050
output:
  dir: /tmp/podcast-out
log:
  level: debug
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "podcast.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Providers.ElevenLabs.APIKey != "test-el-key" {
		t.Errorf("ElevenLabs.APIKey: got %q, want %q", cfg.Providers.ElevenLabs.APIKey, "test-el-key")
	}
	if cfg.Providers.ElevenLabs.Model != "eleven_turbo_v2" {
		t.Errorf("ElevenLabs.Model: got %q, want %q", cfg.Providers.ElevenLabs.Model, "eleven_turbo_v2")
	}
	voices, err := cfg.Voices.Lookup("cartesia", "german")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if voices.SpeakerA != "aaaa-1111" || voices.SpeakerB != "bbbb-2222" {
		t.Errorf("cartesia german voices: got %+v", voices)
	}
	if cfg.Languages["german"].Speed != 0.95 {
		t.Errorf("german speed: got %v, want 0.95", cfg.Languages["german"].Speed)
	}
	if cfg.Synthesis.Concurrency != 2 {
		t.Errorf("Concurrency: got %d, want 2", cfg.Synthesis.Concurrency)
	}
	if cfg.Audio.SampleRate != 22050 {
		t.Errorf("SampleRate: got %d, want 22050", cfg.Audio.SampleRate)
	}
	// Defaults should be applied for unset fields
	if cfg.Providers.Cartesia.Version != "2024-06-10" {
		t.Errorf("Cartesia.Version should default to 2024-06-10, got %q", cfg.Providers.Cartesia.Version)
	}
	if cfg.Languages["german"].Code != "de" {
		t.Errorf("german code should default to de, got %q", cfg.Languages["german"].Code)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CARTESIA_KEY", "secret-from-env")

	yamlContent := `
providers:
  cartesia:
    api_key: "${TEST_CARTESIA_KEY}"
`
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "podcast.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Providers.Cartesia.APIKey != "secret-from-env" {
		t.Errorf("expected env var expansion, got %q", cfg.Providers.Cartesia.APIKey)
	}
}

func TestLoad_FileNotFound_UsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/podcast.yaml")
	if err != nil {
		t.Fatalf("missing config file should fall back to defaults, got error: %v", err)
	}
	if cfg.Providers.Cartesia.BaseURL != "https://api.cartesia.ai" {
		t.Errorf("defaults not applied: BaseURL=%q", cfg.Providers.Cartesia.BaseURL)
	}
}

func TestSetDefaults_TrimsAPIKey(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{
			ElevenLabs: ElevenLabsConfig{APIKey: "  key-with-spaces  "},
		},
	}
	setDefaults(cfg)
	if cfg.Providers.ElevenLabs.APIKey != "key-with-spaces" {
		t.Errorf("expected trimmed API key, got %q", cfg.Providers.ElevenLabs.APIKey)
	}
}

func TestVoiceTable_Lookup_Errors(t *testing.T) {
	table := VoiceTable{
		"cartesia": {
			"german": {SpeakerA: "only-a"},
		},
	}

	if _, err := table.Lookup("elevenlabs", "german"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := table.Lookup("cartesia", "english"); err == nil {
		t.Error("expected error for unknown language")
	}
	if _, err := table.Lookup("cartesia", "german"); err == nil {
		t.Error("expected error for incomplete speaker voices")
	}
}

func TestLanguageByCode(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	name, lang, err := cfg.LanguageByCode("DE")
	if err != nil {
		t.Fatalf("LanguageByCode failed: %v", err)
	}
	if name != "german" || lang.Code != "de" {
		t.Errorf("got name=%q code=%q, want german/de", name, lang.Code)
	}

	if _, _, err := cfg.LanguageByCode("fr"); err == nil {
		t.Error("expected error for unsupported language code")
	}
}
