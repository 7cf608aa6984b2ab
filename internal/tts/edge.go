package tts

import (
	"bytes"
	"context"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/pljvp/myfirstpodcast/internal/logger"
)

// edgeSampleRate Edge TTS 神经网络语音的输出采样率。
const edgeSampleRate = 24000

// EdgeEngine 使用微软 Edge TTS，无需 API Key，适合无凭据的原型试听。
// 没有情绪和语速控制：已解析的标签在这里被丢弃（映射层已将其
// 全部落到中性），非默认语速由流水线在解析阶段告警。
type EdgeEngine struct {
	maxAttempts int
	usage       *UsageTracker
}

// NewEdgeEngine 创建 Edge TTS 引擎。
func NewEdgeEngine(maxAttempts int, usage *UsageTracker) *EdgeEngine {
	return &EdgeEngine{maxAttempts: maxAttempts, usage: usage}
}

// Name 返回服务商标识。
func (e *EdgeEngine) Name() string { return ProviderEdge }

// Capabilities 返回能力标志。
func (e *EdgeEngine) Capabilities() Capabilities {
	return Capabilities{
		SupportsQualityTiers:       false,
		NativeSampleRate:           edgeSampleRate,
		SupportsInterruptionMarkup: false,
		SupportsSpeedControl:       false,
	}
}

// Synthesize 合成单个分段。
// 通过 edge-tts-go 获取流式 MP3，收齐后解码为 PCM。
func (e *EdgeEngine) Synthesize(ctx context.Context, req *Request) (*AudioChunk, error) {
	var mp3Data []byte
	err := withRetry(ctx, ProviderEdge, req.SegmentIndex, e.maxAttempts, func() error {
		var streamErr error
		mp3Data, streamErr = e.stream(ctx, req)
		return streamErr
	})
	if err != nil {
		return nil, err
	}

	samples, rate, err := decodeMP3Mono(mp3Data)
	if err != nil {
		return nil, newSynthesisError(ProviderEdge, req.SegmentIndex, 0, "音频解码失败", err, false)
	}

	e.usage.Record(ProviderEdge, len(req.Text))
	logger.Debugf("[tts] edge 分段 %d: %d 字节 MP3 → %d 样本 (%d Hz)",
		req.SegmentIndex, len(mp3Data), len(samples), rate)

	return &AudioChunk{
		SegmentIndex: req.SegmentIndex,
		Samples:      samples,
		SampleRate:   rate,
		Channels:     1,
	}, nil
}

// stream 启动一次流式合成并收集全部 MP3 数据。
// Edge 的失败基本都是网络层面的，统一按瞬时错误处理。
func (e *EdgeEngine) stream(ctx context.Context, req *Request) ([]byte, error) {
	comm, err := edge.NewCommunicate(req.Text, edge.WithVoice(req.VoiceID))
	if err != nil {
		return nil, newSynthesisError(ProviderEdge, req.SegmentIndex, 0, "创建会话失败", err, false)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, newSynthesisError(ProviderEdge, req.SegmentIndex, 0, "开始流式合成失败", err, true)
	}

	// Stream() 返回的 map 中，type=="audio" 的条目包含音频数据
	var mp3Buf bytes.Buffer
	for msg := range ch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}

	if mp3Buf.Len() == 0 {
		return nil, newSynthesisError(ProviderEdge, req.SegmentIndex, 0, "未收到音频数据", ErrEmptyAudio, true)
	}
	return mp3Buf.Bytes(), nil
}
