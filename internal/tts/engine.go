// Package tts 定义语音合成后端的统一契约及三个服务商适配器。
package tts

import "context"

// 服务商标识，同时用于语音表、情绪映射和语速换算的查表键。
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderCartesia   = "cartesia"
	ProviderEdge       = "edge"
)

// Request 是单个分段的合成请求，由流水线在合成时派生，不持久化。
type Request struct {
	// SegmentIndex 对应分段的播放序号，用于错误上下文和结果排序。
	SegmentIndex int
	// Text 纯口播文本（不含标签标记，适配器自行渲染）。
	Text string
	// ResolvedTags 已翻译为服务商原生表示的情绪标签。
	ResolvedTags []string
	// ResolvedSpeed 服务商原生刻度的语速。
	ResolvedSpeed float64
	// VoiceID 按 (服务商, 语言, 说话人) 解析出的语音 ID。
	VoiceID string
	// LanguageCode 两位语言码，仅用于日志和调试转储。
	LanguageCode string
}

// AudioChunk 一个分段合成出的音频，解码为统一的单声道 float32 PCM。
// 所有权在拼接时移交 AudioAssembler，拼接后即丢弃。
type AudioChunk struct {
	SegmentIndex int
	// Samples 单声道样本，归一化到 [-1.0, 1.0]。
	Samples []float32
	// SampleRate 采样率（Hz），由服务商返回的音频决定。
	SampleRate int
	// Channels 声道数，适配器混音后恒为 1。
	Channels int
	// FromCache 标记该块来自分段缓存，未经合成也未计费。
	FromCache bool
}

// Capabilities 服务商能力标志。
type Capabilities struct {
	// SupportsQualityTiers 是否支持 prototype/production 质量档位。
	SupportsQualityTiers bool
	// NativeSampleRate 服务商原生采样率（Hz）。
	NativeSampleRate int
	// SupportsInterruptionMarkup 是否支持行内标签和破折号打断标记。
	SupportsInterruptionMarkup bool
	// SupportsSpeedControl 是否接受语速参数。
	SupportsSpeedControl bool
}

// Engine 定义语音合成后端接口。
// 新增服务商只需实现这三个方法，调用方永不按类型分支。
type Engine interface {
	// Name 返回服务商标识（elevenlabs/cartesia/edge）。
	Name() string
	// Synthesize 合成单个分段。瞬时失败在内部有界重试，
	// 不可重试失败立即以 *SynthesisError 返回。
	// 成功时向 UsageTracker 记入该段的计费字符数。
	Synthesize(ctx context.Context, req *Request) (*AudioChunk, error)
	// Capabilities 返回能力标志。
	Capabilities() Capabilities
}
