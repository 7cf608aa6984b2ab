// Package pipeline 是主编排器：脚本进、成品音频出。
// 它把脚本切分、参数解析、并发合成、缓存、拼接和落盘串联在一起。
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pljvp/myfirstpodcast/internal/audio"
	"github.com/pljvp/myfirstpodcast/internal/cache"
	"github.com/pljvp/myfirstpodcast/internal/config"
	"github.com/pljvp/myfirstpodcast/internal/emotion"
	"github.com/pljvp/myfirstpodcast/internal/logger"
	"github.com/pljvp/myfirstpodcast/internal/script"
	"github.com/pljvp/myfirstpodcast/internal/speed"
	"github.com/pljvp/myfirstpodcast/internal/tts"
)

// Options 是一次运行的参数，来自命令行。
type Options struct {
	Provider string // elevenlabs / cartesia / edge
	Language string // 语言码 de / en / nl
	Project  string // 成品文件名里的项目名

	// Speed 是整体用户语速；0 表示用该语言的配置默认值。
	// 显式指定时文件名带 OS/MS/FS 测速块。
	Speed float64
	// SpeedA / SpeedB 是两位说话人的精确语速覆盖；非 0 时启用 TUNED 命名。
	SpeedA float64
	SpeedB float64

	// Prototype 为 true 时走低保真档（半采样率）。
	Prototype bool

	// OutputDir 覆盖配置里的输出目录，空表示不覆盖。
	OutputDir string

	// Sequential 强制逐段顺序合成。
	Sequential bool
}

// Result 是一次成功运行的汇总。
type Result struct {
	Path     string
	Duration time.Duration
	Size     int64

	// 两位说话人的最终语速（用户标度）。
	SpeedA float64
	SpeedB float64

	Usage     tts.Usage
	CacheHits int
}

// Pipeline 持有一次运行所需的引擎、缓存和状态机。
type Pipeline struct {
	cfg   *config.Config
	opts  Options
	state *StateMachine

	engine tts.Engine
	usage  *tts.UsageTracker
	cache  *cache.SegmentCache
}

// New 根据配置和运行参数创建 Pipeline，按 Options.Provider 挑选引擎。
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	usage := tts.NewUsageTracker()
	timeout := time.Duration(cfg.Synthesis.TimeoutSeconds) * time.Second

	var engine tts.Engine
	var err error
	switch opts.Provider {
	case tts.ProviderElevenLabs:
		engine, err = tts.NewElevenLabsEngine(tts.ElevenLabsConfig{
			APIKey:          cfg.Providers.ElevenLabs.APIKey,
			BaseURL:         cfg.Providers.ElevenLabs.BaseURL,
			Model:           cfg.Providers.ElevenLabs.Model,
			Stability:       cfg.Providers.ElevenLabs.Stability,
			SimilarityBoost: cfg.Providers.ElevenLabs.SimilarityBoost,
			MaxAttempts:     cfg.Synthesis.MaxAttempts,
			Timeout:         timeout,
		}, usage)
	case tts.ProviderCartesia:
		engine, err = tts.NewCartesiaEngine(tts.CartesiaConfig{
			APIKey:      cfg.Providers.Cartesia.APIKey,
			BaseURL:     cfg.Providers.Cartesia.BaseURL,
			Model:       cfg.Providers.Cartesia.Model,
			Version:     cfg.Providers.Cartesia.Version,
			MaxAttempts: cfg.Synthesis.MaxAttempts,
			Timeout:     timeout,
		}, usage)
	case tts.ProviderEdge:
		engine = tts.NewEdgeEngine(cfg.Synthesis.MaxAttempts, usage)
	default:
		return nil, fmt.Errorf("未知的 TTS 服务商: %s", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("初始化 %s 引擎失败: %w", opts.Provider, err)
	}

	var segCache *cache.SegmentCache
	if cfg.Cache.Enabled {
		segCache, err = cache.Open(cfg.Cache.Dir, int64(cfg.Cache.MaxSizeMB))
		if err != nil {
			// 缓存打不开不拦路，降级为无缓存运行
			logger.Warnf("[pipeline] 打开片段缓存失败，本次运行不使用缓存: %v", err)
			segCache = nil
		}
	}

	return &Pipeline{
		cfg:    cfg,
		opts:   opts,
		state:  NewStateMachine(),
		engine: engine,
		usage:  usage,
		cache:  segCache,
	}, nil
}

// State 返回当前运行阶段。
func (p *Pipeline) State() State {
	return p.state.Current()
}

// Close 释放缓存等资源。
func (p *Pipeline) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
}

// Run 执行完整的合成流程：切分 → 解析 → 合成 → 拼接 → 落盘。
// 任何片段的不可重试失败都会中止整次运行，不留半成品文件。
func (p *Pipeline) Run(ctx context.Context, scriptText string) (*Result, error) {
	result, err := p.run(ctx, scriptText)
	if err != nil {
		p.state.Transition(StateFailed)
		return nil, err
	}
	p.state.Transition(StateDone)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, scriptText string) (*Result, error) {
	// 阶段一：清洗脚本并切分（Parse 内部先做 Clean）
	segments, err := script.Parse(scriptText)
	if err != nil {
		return nil, err
	}
	logger.Infof("[pipeline] 脚本切分完成: %d 个片段", len(segments))

	// 阶段二：解析音色和语速
	p.state.Transition(StateResolving)

	language, langCfg, err := p.cfg.LanguageByCode(p.opts.Language)
	if err != nil {
		return nil, err
	}
	voices, err := p.cfg.Voices.Lookup(p.opts.Provider, language)
	if err != nil {
		return nil, err
	}

	baseSpeed := p.opts.Speed
	if baseSpeed == 0 {
		baseSpeed = langCfg.Speed
	}
	speedA := speed.ForSpeaker(baseSpeed, p.cfg.Speed.SpeakerA, p.opts.SpeedA)
	speedB := speed.ForSpeaker(baseSpeed, p.cfg.Speed.SpeakerB, p.opts.SpeedB)
	logger.Infof("[pipeline] 语速解析: 整体 %.2f, 说话人 A %.2f, B %.2f", baseSpeed, speedA, speedB)

	caps := p.engine.Capabilities()
	if !caps.SupportsSpeedControl && speedAdjusted(langCfg.Speed, speedA, speedB) {
		logger.Warnf("[pipeline] %s 不支持语速控制，语速设置将被忽略", p.engine.Name())
	}

	requests := make([]*tts.Request, len(segments))
	for i, seg := range segments {
		voiceID := voices.SpeakerA
		userSpeed := speedA
		if seg.Speaker == script.SpeakerB {
			voiceID = voices.SpeakerB
			userSpeed = speedB
		}
		if seg.SpeedOverride > 0 {
			userSpeed, _ = speed.ClampUser(seg.SpeedOverride)
		}
		requests[i] = &tts.Request{
			SegmentIndex:  seg.Index,
			Text:          seg.Text,
			ResolvedTags:  emotion.Resolve(seg.EmotionTags, p.opts.Provider),
			ResolvedSpeed: speed.ToProvider(userSpeed, p.opts.Provider),
			VoiceID:       voiceID,
			LanguageCode:  p.opts.Language,
		}
	}

	outDir := p.cfg.Output.Dir
	if p.opts.OutputDir != "" {
		outDir = p.opts.OutputDir
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	if p.cfg.Output.Debug {
		if err := p.dumpRequests(outDir, requests); err != nil {
			logger.Warnf("[pipeline] 写调试请求失败: %v", err)
		}
	}

	// 阶段三：并发合成
	p.state.Transition(StateSynthesizing)

	concurrency := p.cfg.Synthesis.Concurrency
	if p.opts.Sequential || concurrency < 1 {
		concurrency = 1
	}

	chunks := make([]*tts.AudioChunk, len(requests))
	var cacheHits atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			key := p.cacheKey(req)
			if p.cache != nil {
				if samples, rate, ok := p.cache.Lookup(key); ok {
					chunks[i] = &tts.AudioChunk{
						SegmentIndex: req.SegmentIndex,
						Samples:      samples,
						SampleRate:   rate,
						Channels:     1,
						FromCache:    true,
					}
					cacheHits.Add(1)
					logger.Debugf("[pipeline] 片段 %d 缓存命中", req.SegmentIndex)
					return nil
				}
			}

			chunk, err := p.engine.Synthesize(gctx, req)
			if err != nil {
				return err
			}
			if p.cache != nil {
				p.cache.Store(key, chunk.Samples, chunk.SampleRate)
			}
			chunks[i] = chunk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 阶段四：拼接并落盘
	p.state.Transition(StateAssembling)

	artifact, err := audio.Assemble(chunks, audio.AssembleOptions{
		SampleRate:  p.cfg.Audio.SampleRate,
		CrossfadeMs: p.cfg.Audio.CrossfadeMs,
		Prototype:   p.opts.Prototype,
	})
	if err != nil {
		return nil, err
	}

	path, err := p.writeArtifact(outDir, artifact.Data, speedA, speedB, baseSpeed)
	if err != nil {
		return nil, err
	}

	usage := p.usage.Summary()
	logger.Infof("[pipeline] 成品已写出: %s (%.1fs, %d bytes, 计费 %d 字符, 缓存命中 %d)",
		path, artifact.Duration.Seconds(), artifact.SizeBytes(), usage.Total(), cacheHits.Load())

	return &Result{
		Path:      path,
		Duration:  artifact.Duration,
		Size:      int64(artifact.SizeBytes()),
		SpeedA:    speedA,
		SpeedB:    speedB,
		Usage:     usage,
		CacheHits: int(cacheHits.Load()),
	}, nil
}

// speedAdjusted 判断说话人语速是否偏离该语言的配置默认值。
// 只有用户或配置确实调整过语速才算，语言自带的默认值不算。
func speedAdjusted(languageDefault, speedA, speedB float64) bool {
	return speedA != languageDefault || speedB != languageDefault
}

// cacheKey 构造片段的缓存键。所有影响输出音频的输入都参与。
func (p *Pipeline) cacheKey(req *tts.Request) cache.Key {
	model := ""
	switch p.opts.Provider {
	case tts.ProviderElevenLabs:
		model = p.cfg.Providers.ElevenLabs.Model
	case tts.ProviderCartesia:
		model = p.cfg.Providers.Cartesia.Model
	}
	return cache.Key{
		Provider: p.opts.Provider,
		VoiceID:  req.VoiceID,
		Language: req.LanguageCode,
		Model:    model,
		Text:     req.Text,
		Tags:     req.ResolvedTags,
		Speed:    req.ResolvedSpeed,
	}
}

// writeArtifact 先写进同目录的临时文件，成功后才改名到最终文件名。
// 失败的运行不会在最终路径留下半成品。
func (p *Pipeline) writeArtifact(outDir string, data []byte, speedA, speedB, overall float64) (string, error) {
	mode := "production"
	if p.opts.Prototype {
		mode = "prototype"
	}
	name := ArtifactName(NamingInfo{
		Project:     p.opts.Project,
		Language:    p.opts.Language,
		ProviderTag: ProviderTag(p.opts.Provider),
		Mode:        mode,
		Tuned:       p.opts.SpeedA > 0 || p.opts.SpeedB > 0,
		SpeedA:      speedA,
		SpeedB:      speedB,
		SpeedTest:   p.opts.Speed > 0,
		Overall:     overall,
	}, time.Now())

	tmp := filepath.Join(outDir, "."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("写临时文件失败: %w", err)
	}

	final := filepath.Join(outDir, name)
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("写成品文件失败: %w", err)
	}
	return final, nil
}

// dumpRequests 把每个片段的合成请求写成 JSON，便于排查提供商行为。
func (p *Pipeline) dumpRequests(outDir string, requests []*tts.Request) error {
	debugDir := filepath.Join(outDir, "debug")
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		return err
	}
	tag := ProviderTag(p.opts.Provider)
	for _, req := range requests {
		data, err := json.MarshalIndent(req, "", "  ")
		if err != nil {
			return err
		}
		name := fmt.Sprintf("chunk_%d_%s_content.json", req.SegmentIndex, tag)
		if err := os.WriteFile(filepath.Join(debugDir, name), data, 0644); err != nil {
			return err
		}
	}
	return nil
}
