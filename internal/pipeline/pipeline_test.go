package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pljvp/myfirstpodcast/internal/config"
	"github.com/pljvp/myfirstpodcast/internal/tts"
)

const testScript = `**Speaker A:** [excited] Welcome to the show!
**Speaker B:** [curious] Thanks, great to be here.
**Speaker A:** Let's dive right in.
`

// fakeEngine 在内存里合成固定音频，记录收到的请求。
type fakeEngine struct {
	mu       sync.Mutex
	requests []*tts.Request
	usage    *tts.UsageTracker

	// failIndex 指定哪个片段返回不可重试错误，-1 表示全部成功。
	failIndex int
}

func newFakeEngine(usage *tts.UsageTracker) *fakeEngine {
	return &fakeEngine{usage: usage, failIndex: -1}
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Capabilities() tts.Capabilities {
	return tts.Capabilities{NativeSampleRate: 44100, SupportsSpeedControl: true}
}

func (f *fakeEngine) Synthesize(ctx context.Context, req *tts.Request) (*tts.AudioChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	fail := f.failIndex == req.SegmentIndex
	f.mu.Unlock()

	if fail {
		return nil, &tts.SynthesisError{
			Provider:     "fake",
			SegmentIndex: req.SegmentIndex,
			Status:       401,
			Message:      "unauthorized",
			Retryable:    false,
		}
	}

	f.usage.Record("fake", len(req.Text))
	samples := make([]float32, 44100/10) // 100ms
	for i := range samples {
		samples[i] = 0.1
	}
	return &tts.AudioChunk{
		SegmentIndex: req.SegmentIndex,
		Samples:      samples,
		SampleRate:   44100,
		Channels:     1,
	}, nil
}

func (f *fakeEngine) received() []*tts.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*tts.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func testPipeline(t *testing.T, opts Options, fake *fakeEngine, usage *tts.UsageTracker) *Pipeline {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Output.Dir = t.TempDir()
	cfg.Cache.Enabled = false

	if opts.OutputDir == "" {
		opts.OutputDir = cfg.Output.Dir
	}
	return &Pipeline{
		cfg:    cfg,
		opts:   opts,
		state:  NewStateMachine(),
		engine: fake,
		usage:  usage,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	usage := tts.NewUsageTracker()
	fake := newFakeEngine(usage)
	p := testPipeline(t, Options{
		Provider: "cartesia",
		Language: "en",
		Project:  "demo",
	}, fake, usage)

	result, err := p.Run(context.Background(), testScript)
	if err != nil {
		t.Fatal(err)
	}

	if p.State() != StateDone {
		t.Errorf("final state = %s, want Done", p.State())
	}

	// 三个片段各发一次请求，序号齐全
	reqs := fake.received()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	seen := map[int]bool{}
	for _, r := range reqs {
		seen[r.SegmentIndex] = true
	}
	for i := 0; i < 3; i++ {
		if !seen[i] {
			t.Errorf("segment %d never synthesized", i)
		}
	}

	// 成品落盘且可读
	info, err := os.Stat(result.Path)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if info.Size() != result.Size {
		t.Errorf("size mismatch: stat %d, result %d", info.Size(), result.Size)
	}
	if !strings.HasSuffix(result.Path, "_CRTS_PRODUCTION.wav") {
		t.Errorf("unexpected artifact name: %s", result.Path)
	}
	if result.Duration <= 0 {
		t.Error("duration must be positive")
	}

	// 计费只按片段文本长度累加
	if result.Usage.Total() == 0 {
		t.Error("expected usage to be recorded")
	}
}

func TestRun_ResolvesTagsAndSpeed(t *testing.T) {
	usage := tts.NewUsageTracker()
	fake := newFakeEngine(usage)
	p := testPipeline(t, Options{
		Provider: "cartesia",
		Language: "en",
		Project:  "demo",
	}, fake, usage)

	result, err := p.Run(context.Background(), testScript)
	if err != nil {
		t.Fatal(err)
	}

	// 英语默认语速 1.05，两位说话人的显示语速都应回到用户标度
	if result.SpeedA != 1.05 || result.SpeedB != 1.05 {
		t.Errorf("display speeds = %.2f / %.2f, want 1.05", result.SpeedA, result.SpeedB)
	}

	byIndex := map[int]*tts.Request{}
	for _, r := range fake.received() {
		byIndex[r.SegmentIndex] = r
	}

	// [excited] → Cartesia 规范标签
	if got := byIndex[0].ResolvedTags; len(got) != 1 || got[0] != "positivity:high" {
		t.Errorf("segment 0 tags = %v", got)
	}
	// 英语默认语速 1.05 → Cartesia 原生 0.1
	if got := byIndex[0].ResolvedSpeed; got < 0.099 || got > 0.101 {
		t.Errorf("segment 0 speed = %v, want 0.1", got)
	}
	// 两位说话人拿到不同的音色
	if byIndex[0].VoiceID == byIndex[1].VoiceID {
		t.Error("speakers A and B must use different voices")
	}
	if byIndex[0].VoiceID != byIndex[2].VoiceID {
		t.Error("segments 0 and 2 are the same speaker, must share a voice")
	}
}

func TestRun_NonRetryableFailureAbortsWithoutArtifact(t *testing.T) {
	usage := tts.NewUsageTracker()
	fake := newFakeEngine(usage)
	fake.failIndex = 1
	opts := Options{
		Provider:  "cartesia",
		Language:  "en",
		Project:   "demo",
		OutputDir: "",
	}
	p := testPipeline(t, opts, fake, usage)
	outDir := p.opts.OutputDir

	result, err := p.Run(context.Background(), testScript)
	if err == nil {
		t.Fatal("expected error")
	}
	if result != nil {
		t.Error("failed run must not return a result")
	}
	if p.State() != StateFailed {
		t.Errorf("final state = %s, want Failed", p.State())
	}

	var synthErr *tts.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("err = %v, want *tts.SynthesisError", err)
	}
	if synthErr.SegmentIndex != 1 {
		t.Errorf("failed segment = %d, want 1", synthErr.SegmentIndex)
	}

	// 输出目录里不能留下成品或半成品
	entries, readErr := os.ReadDir(outDir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wav") {
			t.Errorf("aborted run left artifact %s", e.Name())
		}
	}
}

func TestRun_MalformedScriptFails(t *testing.T) {
	usage := tts.NewUsageTracker()
	fake := newFakeEngine(usage)
	p := testPipeline(t, Options{Provider: "cartesia", Language: "en", Project: "demo"}, fake, usage)

	_, err := p.Run(context.Background(), "just some prose without any speaker labels")
	if err == nil {
		t.Fatal("expected error for script without speaker labels")
	}
	if p.State() != StateFailed {
		t.Errorf("final state = %s, want Failed", p.State())
	}
	if len(fake.received()) != 0 {
		t.Error("no synthesis may happen for a malformed script")
	}
}

func TestRun_UnknownLanguageFailsBeforeSynthesis(t *testing.T) {
	usage := tts.NewUsageTracker()
	fake := newFakeEngine(usage)
	p := testPipeline(t, Options{Provider: "cartesia", Language: "fr", Project: "demo"}, fake, usage)

	if _, err := p.Run(context.Background(), testScript); err == nil {
		t.Fatal("expected error for unsupported language code")
	}
	if len(fake.received()) != 0 {
		t.Error("no synthesis may happen when resolution fails")
	}
}

func TestRun_SequentialProducesSameRequests(t *testing.T) {
	usage := tts.NewUsageTracker()
	fake := newFakeEngine(usage)
	p := testPipeline(t, Options{
		Provider:   "cartesia",
		Language:   "en",
		Project:    "demo",
		Sequential: true,
	}, fake, usage)

	if _, err := p.Run(context.Background(), testScript); err != nil {
		t.Fatal(err)
	}

	// 顺序模式下请求按片段序号逐个发出
	for i, r := range fake.received() {
		if r.SegmentIndex != i {
			t.Errorf("request %d has segment index %d", i, r.SegmentIndex)
		}
	}
}

func TestSpeedAdjusted(t *testing.T) {
	tests := []struct {
		name      string
		def, a, b float64
		want      bool
	}{
		// 英语默认 1.05、无任何调整：不算偏离，提供商不支持语速也不该告警
		{"language default untouched", 1.05, 1.05, 1.05, false},
		{"german default untouched", 1.0, 1.0, 1.0, false},
		{"overall speed raised", 1.05, 1.1, 1.1, true},
		{"speaker A tuned", 1.0, 1.1, 1.0, true},
		{"speaker B tuned", 1.0, 1.0, 0.9, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := speedAdjusted(tt.def, tt.a, tt.b); got != tt.want {
				t.Errorf("speedAdjusted(%v, %v, %v) = %v, want %v", tt.def, tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRun_TunedNaming(t *testing.T) {
	usage := tts.NewUsageTracker()
	fake := newFakeEngine(usage)
	p := testPipeline(t, Options{
		Provider: "cartesia",
		Language: "de",
		Project:  "demo",
		SpeedA:   1.1,
		SpeedB:   0.9,
	}, fake, usage)

	result, err := p.Run(context.Background(), testScript)
	if err != nil {
		t.Fatal(err)
	}

	base := filepath.Base(result.Path)
	if !strings.HasPrefix(base, "demo_A1.10_B0.90_de_") || !strings.HasSuffix(base, "_CRTS_TUNED.wav") {
		t.Errorf("unexpected tuned artifact name: %s", base)
	}
	if result.SpeedA != 1.1 || result.SpeedB != 0.9 {
		t.Errorf("result speeds = %.2f / %.2f", result.SpeedA, result.SpeedB)
	}
}

func TestRun_DebugDumpsRequests(t *testing.T) {
	usage := tts.NewUsageTracker()
	fake := newFakeEngine(usage)
	p := testPipeline(t, Options{Provider: "cartesia", Language: "en", Project: "demo"}, fake, usage)
	p.cfg.Output.Debug = true

	if _, err := p.Run(context.Background(), testScript); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		name := filepath.Join(p.opts.OutputDir, "debug", fmt.Sprintf("chunk_%d_CRTS_content.json", i))
		if _, err := os.Stat(name); err != nil {
			t.Errorf("missing debug dump %s", name)
		}
	}
}
