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

// cartesiaSampleRate 请求的 MP3 输出采样率。
const cartesiaSampleRate = 44100

// CartesiaConfig Cartesia 接入配置。
type CartesiaConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Version 是 Cartesia-Version 请求头的取值。
	Version     string
	MaxAttempts int
	Timeout     time.Duration
}

// CartesiaEngine 调用 Cartesia Sonic 的 /tts/bytes REST API。
// 情绪和语速通过 voice.__experimental_controls 传递：
// 情绪是至多一个 dimension:level 标签的数组，全中性时整个字段省略。
type CartesiaEngine struct {
	cfg    CartesiaConfig
	client *http.Client
	usage  *UsageTracker
}

// NewCartesiaEngine 创建 Cartesia 引擎。
func NewCartesiaEngine(cfg CartesiaConfig, usage *UsageTracker) (*CartesiaEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("[tts] Cartesia 需要 API Key（环境变量 CARTESIA_API_KEY）")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cartesia.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "sonic-english"
	}
	if cfg.Version == "" {
		cfg.Version = "2024-06-10"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CartesiaEngine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		usage:  usage,
	}, nil
}

// Name 返回服务商标识。
func (e *CartesiaEngine) Name() string { return ProviderCartesia }

// Capabilities 返回能力标志。Cartesia 始终全质量输出，无档位。
func (e *CartesiaEngine) Capabilities() Capabilities {
	return Capabilities{
		SupportsQualityTiers:       false,
		NativeSampleRate:           cartesiaSampleRate,
		SupportsInterruptionMarkup: false,
		SupportsSpeedControl:       true,
	}
}

// cartesiaRequest 请求体，与服务端期望的字段逐一对应。
type cartesiaRequest struct {
	ModelID      string               `json:"model_id"`
	Transcript   string               `json:"transcript"`
	Voice        cartesiaVoice        `json:"voice"`
	OutputFormat cartesiaOutputFormat `json:"output_format"`
}

type cartesiaVoice struct {
	Mode     string           `json:"mode"`
	ID       string           `json:"id"`
	Controls cartesiaControls `json:"__experimental_controls"`
}

type cartesiaControls struct {
	Emotion []string `json:"emotion,omitempty"`
	Speed   float64  `json:"speed"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// Synthesize 合成单个分段。
func (e *CartesiaEngine) Synthesize(ctx context.Context, req *Request) (*AudioChunk, error) {
	var mp3Data []byte
	err := withRetry(ctx, ProviderCartesia, req.SegmentIndex, e.cfg.MaxAttempts, func() error {
		var reqErr error
		mp3Data, reqErr = e.post(ctx, req)
		return reqErr
	})
	if err != nil {
		return nil, err
	}

	samples, rate, err := decodeMP3Mono(mp3Data)
	if err != nil {
		return nil, newSynthesisError(ProviderCartesia, req.SegmentIndex, 0, "音频解码失败", err, false)
	}

	e.usage.Record(ProviderCartesia, len(req.Text))
	logger.Debugf("[tts] cartesia 分段 %d: %d 字符 → %d 样本 (%d Hz)",
		req.SegmentIndex, len(req.Text), len(samples), rate)

	return &AudioChunk{
		SegmentIndex: req.SegmentIndex,
		Samples:      samples,
		SampleRate:   rate,
		Channels:     1,
	}, nil
}

// post 发送一次合成请求，返回 MP3 字节。
func (e *CartesiaEngine) post(ctx context.Context, req *Request) ([]byte, error) {
	payload, err := json.Marshal(e.buildRequest(req))
	if err != nil {
		return nil, newSynthesisError(ProviderCartesia, req.SegmentIndex, 0, "序列化请求失败", err, false)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.cfg.BaseURL+"/tts/bytes", bytes.NewReader(payload))
	if err != nil {
		return nil, newSynthesisError(ProviderCartesia, req.SegmentIndex, 0, "构造请求失败", err, false)
	}
	httpReq.Header.Set("X-API-Key", e.cfg.APIKey)
	httpReq.Header.Set("Cartesia-Version", e.cfg.Version)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, newSynthesisError(ProviderCartesia, req.SegmentIndex, 0, "请求失败", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, classifyStatus(ProviderCartesia, req.SegmentIndex, resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newSynthesisError(ProviderCartesia, req.SegmentIndex, 0, "读取响应失败", err, true)
	}
	return data, nil
}

// buildRequest 组装请求体。
func (e *CartesiaEngine) buildRequest(req *Request) cartesiaRequest {
	return cartesiaRequest{
		ModelID:    e.cfg.Model,
		Transcript: req.Text,
		Voice: cartesiaVoice{
			Mode: "id",
			ID:   req.VoiceID,
			Controls: cartesiaControls{
				Emotion: req.ResolvedTags,
				Speed:   req.ResolvedSpeed,
			},
		},
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			Encoding:   "mp3",
			SampleRate: cartesiaSampleRate,
		},
	}
}
