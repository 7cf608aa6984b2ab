package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pljvp/myfirstpodcast/internal/logger"
)

const (
	// elevenLabsMaxChars 单次请求的文本上限。超长分段按句子边界
	// 切成多个子请求，解码后的音频拼回同一个 AudioChunk。
	elevenLabsMaxChars = 4500

	// elevenLabsSampleRate 请求的输出格式 mp3_44100_128 的采样率。
	elevenLabsSampleRate = 44100
)

// ElevenLabsConfig ElevenLabs 接入配置。
type ElevenLabsConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Stability       float64
	SimilarityBoost float64
	MaxAttempts     int
	Timeout         time.Duration
}

// ElevenLabsEngine 调用 ElevenLabs text-to-speech REST API。
// 文本携带行内 [tag] 情绪标记和破折号打断标点，v3 模型原生理解二者。
type ElevenLabsEngine struct {
	cfg    ElevenLabsConfig
	client *http.Client
	usage  *UsageTracker
}

// NewElevenLabsEngine 创建 ElevenLabs 引擎。
func NewElevenLabsEngine(cfg ElevenLabsConfig, usage *UsageTracker) (*ElevenLabsEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[tts] ElevenLabs 需要 API Key（环境变量 ELEVENLABS_API_KEY）")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Model == "" {
		cfg.Model = "eleven_v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &ElevenLabsEngine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		usage:  usage,
	}, nil
}

// Name 返回服务商标识。
func (e *ElevenLabsEngine) Name() string { return ProviderElevenLabs }

// Capabilities 返回能力标志。
func (e *ElevenLabsEngine) Capabilities() Capabilities {
	return Capabilities{
		SupportsQualityTiers:       true,
		NativeSampleRate:           elevenLabsSampleRate,
		SupportsInterruptionMarkup: true,
		SupportsSpeedControl:       true,
	}
}

// elevenLabsRequest 请求体。
type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Speed           float64 `json:"speed"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize 合成单个分段。
func (e *ElevenLabsEngine) Synthesize(ctx context.Context, req *Request) (*AudioChunk, error) {
	text := renderInlineTags(req.ResolvedTags, req.Text)
	pieces := splitSentences(text, elevenLabsMaxChars)
	if len(pieces) > 1 {
		logger.Infof("[tts] elevenlabs 分段 %d: 文本 %d 字符超限，切为 %d 个子请求",
			req.SegmentIndex, len(text), len(pieces))
	}

	var samples []float32
	for _, piece := range pieces {
		var mp3Data []byte
		err := withRetry(ctx, ProviderElevenLabs, req.SegmentIndex, e.cfg.MaxAttempts, func() error {
			var reqErr error
			mp3Data, reqErr = e.post(ctx, req, piece)
			return reqErr
		})
		if err != nil {
			return nil, err
		}

		pcm, rate, err := decodeMP3Mono(mp3Data)
		if err != nil {
			return nil, newSynthesisError(ProviderElevenLabs, req.SegmentIndex, 0, "音频解码失败", err, false)
		}
		if rate != elevenLabsSampleRate {
			logger.Warnf("[tts] elevenlabs 分段 %d: 返回采样率 %d Hz，预期 %d Hz",
				req.SegmentIndex, rate, elevenLabsSampleRate)
		}
		samples = append(samples, pcm...)
	}

	e.usage.Record(ProviderElevenLabs, len(req.Text))
	logger.Debugf("[tts] elevenlabs 分段 %d: %d 字符 → %d 样本", req.SegmentIndex, len(req.Text), len(samples))

	return &AudioChunk{
		SegmentIndex: req.SegmentIndex,
		Samples:      samples,
		SampleRate:   elevenLabsSampleRate,
		Channels:     1,
	}, nil
}

// post 发送一次合成请求，返回 MP3 字节。
func (e *ElevenLabsEngine) post(ctx context.Context, req *Request, text string) ([]byte, error) {
	body := elevenLabsRequest{
		Text:    text,
		ModelID: e.cfg.Model,
		VoiceSettings: elevenLabsVoiceSettings{
			Speed:           req.ResolvedSpeed,
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.SimilarityBoost,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newSynthesisError(ProviderElevenLabs, req.SegmentIndex, 0, "序列化请求失败", err, false)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=mp3_44100_128", e.cfg.BaseURL, req.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, newSynthesisError(ProviderElevenLabs, req.SegmentIndex, 0, "构造请求失败", err, false)
	}
	httpReq.Header.Set("xi-api-key", e.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, newSynthesisError(ProviderElevenLabs, req.SegmentIndex, 0, "请求失败", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, classifyStatus(ProviderElevenLabs, req.SegmentIndex, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newSynthesisError(ProviderElevenLabs, req.SegmentIndex, 0, "读取响应失败", err, true)
	}
	return data, nil
}

// renderInlineTags 把原生标签渲染为文本前的行内 [tag] 标记。
func renderInlineTags(tags []string, text string) string {
	if len(tags) == 0 {
		return text
	}
	var b strings.Builder
	for _, tag := range tags {
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("] ")
	}
	b.WriteString(text)
	return b.String()
}

// splitSentences 把文本按句子边界切成不超过 maxChars 字符的片段。
// 句子结尾为 .!? 后跟空白；找不到边界的超长句子按词硬切。
func splitSentences(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var pieces []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			pieces = append(pieces, s)
		}
		current.Reset()
	}

	for _, sentence := range sentences(text) {
		if len(sentence) > maxChars {
			// 单句超限，按词硬切
			flush()
			for _, word := range strings.Fields(sentence) {
				if current.Len()+len(word)+1 > maxChars {
					flush()
				}
				if current.Len() > 0 {
					current.WriteString(" ")
				}
				current.WriteString(word)
			}
			flush()
			continue
		}
		if current.Len()+len(sentence)+1 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	flush()
	return pieces
}

// sentences 把文本切成句子（结尾标点归入前句）。
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			// 标点后是空白或文本结束才算句子边界
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				s := strings.TrimSpace(string(runes[start : i+1]))
				if s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}
