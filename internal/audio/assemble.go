package audio

import (
	"fmt"
	"sort"
	"time"

	"github.com/pljvp/myfirstpodcast/internal/logger"
	"github.com/pljvp/myfirstpodcast/internal/tts"
)

// DefaultCrossfadeMs 分段边界交叉淡化的默认时长（毫秒）。
// 线性淡化，消除合成分段拼接处的咔嗒声；可由配置覆盖。
const DefaultCrossfadeMs = 10

// AssemblyError 表示分段序列有缺口/重复，或音频格式无法统一。
// 始终致命：缺失分段绝不静默跳过，失败时不写任何产物。
type AssemblyError struct {
	Reason string
	Cause  error
}

func (e *AssemblyError) Error() string {
	if e.Cause != nil {
		return "音频拼接失败: " + e.Reason + ": " + e.Cause.Error()
	}
	return "音频拼接失败: " + e.Reason
}

func (e *AssemblyError) Unwrap() error { return e.Cause }

// AssembleOptions 拼接参数。
type AssembleOptions struct {
	// SampleRate 拼接统一到的目标采样率（Hz）。
	SampleRate int
	// CrossfadeMs 边界交叉淡化时长（毫秒），0 取默认值。
	CrossfadeMs int
	// Prototype 原型档：拼接完成后把成品降采样到目标率的一半。
	// 降采样只发生在拼接之后，拼接本身始终在最高保真表示上进行。
	Prototype bool
}

// Artifact 拼接成品：一个完整的 WAV 音频及其元数据。
type Artifact struct {
	// Data 编码后的 WAV 字节。
	Data []byte
	// SampleRate 成品采样率（Hz）。
	SampleRate int
	// Duration 成品时长。
	Duration time.Duration
}

// SizeBytes 返回成品字节数。
func (a *Artifact) SizeBytes() int { return len(a.Data) }

// Assemble 把各分段的音频块拼成一个连续成品。
// 块按分段序号严格排序消费，与传入顺序无关；序号必须构成
// 0..N-1 的稠密序列，缺口或重复都是 AssemblyError。
// 拼接前所有块重采样到统一目标采样率，边界做线性交叉淡化。
func Assemble(chunks []*tts.AudioChunk, opts AssembleOptions) (*Artifact, error) {
	if len(chunks) == 0 {
		return nil, &AssemblyError{Reason: "没有任何音频块"}
	}
	if opts.SampleRate <= 0 {
		return nil, &AssemblyError{Reason: fmt.Sprintf("目标采样率无效: %d", opts.SampleRate)}
	}
	if opts.CrossfadeMs <= 0 {
		opts.CrossfadeMs = DefaultCrossfadeMs
	}

	ordered := make([]*tts.AudioChunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SegmentIndex < ordered[j].SegmentIndex
	})

	// 序号必须稠密：排序后第 i 个块的序号就是 i
	for i, c := range ordered {
		if c.SegmentIndex != i {
			return nil, &AssemblyError{
				Reason: fmt.Sprintf("分段序列不完整: 位置 %d 处的序号是 %d", i, c.SegmentIndex),
			}
		}
	}

	// 统一到目标采样率和单声道布局
	parts := make([][]float32, len(ordered))
	for i, c := range ordered {
		if len(c.Samples) == 0 {
			return nil, &AssemblyError{Reason: fmt.Sprintf("分段 %d 的音频为空", c.SegmentIndex)}
		}
		if c.Channels != 1 {
			return nil, &AssemblyError{
				Reason: fmt.Sprintf("分段 %d 有 %d 个声道，无法统一为单声道", c.SegmentIndex, c.Channels),
			}
		}
		if c.SampleRate != opts.SampleRate {
			logger.Debugf("[audio] 分段 %d: %d Hz → %d Hz 重采样", c.SegmentIndex, c.SampleRate, opts.SampleRate)
			parts[i] = Resample(c.Samples, c.SampleRate, opts.SampleRate)
		} else {
			parts[i] = c.Samples
		}
	}

	fade := opts.SampleRate * opts.CrossfadeMs / 1000
	mixed := crossfadeConcat(parts, fade)

	rate := opts.SampleRate
	if opts.Prototype {
		// 原型档：成品降到半采样率，减小文件体积
		half := rate / 2
		mixed = Resample(mixed, rate, half)
		rate = half
		logger.Infof("[audio] 原型档降采样: %d Hz → %d Hz", opts.SampleRate, half)
	}

	artifact := &Artifact{
		Data:       EncodeWAV(mixed, rate),
		SampleRate: rate,
		Duration:   time.Duration(float64(len(mixed)) / float64(rate) * float64(time.Second)),
	}
	logger.Infof("[audio] 拼接完成: %d 段, %.1f 秒, %d 字节",
		len(parts), artifact.Duration.Seconds(), artifact.SizeBytes())
	return artifact, nil
}

// crossfadeConcat 顺序拼接各段，相邻段边界做 fade 个样本的线性交叉淡化：
// 前段尾部淡出与后段头部淡入叠加。任一侧不足两个淡化窗口时直接硬接。
func crossfadeConcat(parts [][]float32, fade int) []float32 {
	total := 0
	for _, p := range parts {
		total += len(p)
	}

	out := make([]float32, 0, total)
	out = append(out, parts[0]...)

	for _, p := range parts[1:] {
		n := fade
		if len(out) < 2*n || len(p) < 2*n {
			n = 0
		}
		if n == 0 {
			out = append(out, p...)
			continue
		}

		base := len(out) - n
		for i := 0; i < n; i++ {
			t := float32(i+1) / float32(n+1)
			out[base+i] = out[base+i]*(1-t) + p[i]*t
		}
		out = append(out, p[n:]...)
	}
	return out
}
