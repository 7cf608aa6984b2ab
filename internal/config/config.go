package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 是播客生成器的顶层配置结构。
type Config struct {
	Providers ProvidersConfig           `yaml:"providers"`
	Voices    VoiceTable                `yaml:"voices"`
	Languages map[string]LanguageConfig `yaml:"languages"`
	Speed     SpeedConfig               `yaml:"speed_adjustments"`
	Synthesis SynthesisConfig           `yaml:"synthesis"`
	Audio     AudioConfig               `yaml:"audio"`
	Cache     CacheConfig               `yaml:"cache"`
	Output    OutputConfig              `yaml:"output"`
	Log       LogConfig                 `yaml:"log"`
}

// ProvidersConfig TTS 服务商接入配置。
// Edge TTS 无需凭据，因此没有对应的配置段。
type ProvidersConfig struct {
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	Cartesia   CartesiaConfig   `yaml:"cartesia"`
}

// ElevenLabsConfig ElevenLabs 接入配置。
type ElevenLabsConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Model           string  `yaml:"model"`
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
}

// CartesiaConfig Cartesia 接入配置。
type CartesiaConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Version 是 Cartesia-Version 请求头的取值。
	Version string `yaml:"version"`
}

// VoiceTable 按 服务商 → 语言 → 说话人 三级索引的语音表。
type VoiceTable map[string]map[string]SpeakerVoices

// SpeakerVoices 一种语言下两位说话人的语音 ID。
// Edge TTS 填写神经网络语音名（如 en-US-AriaNeural）。
type SpeakerVoices struct {
	SpeakerA string `yaml:"speaker_a"`
	SpeakerB string `yaml:"speaker_b"`
}

// Lookup 查找指定服务商和语言的说话人语音。
// 语音表缺项属于配置错误，必须在任何合成开始之前暴露。
func (t VoiceTable) Lookup(provider, language string) (SpeakerVoices, error) {
	langs, ok := t[provider]
	if !ok {
		return SpeakerVoices{}, fmt.Errorf("语音表中没有服务商 %s", provider)
	}
	voices, ok := langs[language]
	if !ok {
		return SpeakerVoices{}, fmt.Errorf("服务商 %s 没有配置 %s 语音", provider, language)
	}
	if voices.SpeakerA == "" || voices.SpeakerB == "" {
		return SpeakerVoices{}, fmt.Errorf("服务商 %s 的 %s 语音不完整（需要 speaker_a 和 speaker_b）", provider, language)
	}
	return voices, nil
}

// LanguageConfig 单一语言的配置。
type LanguageConfig struct {
	// Code 是文件名中使用的两位语言码（de/en/nl）。
	Code string `yaml:"code"`
	// Speed 是该语言的默认用户语速（0.7~1.2）。
	Speed float64 `yaml:"speed"`
}

// SpeedConfig 按说话人区分的语速倍率，施加在整体语速之上。
type SpeedConfig struct {
	SpeakerA float64 `yaml:"speaker_a"`
	SpeakerB float64 `yaml:"speaker_b"`
}

// SynthesisConfig 合成调度配置。
type SynthesisConfig struct {
	// Concurrency 并发合成的分段数上限，1 表示严格串行。
	Concurrency int `yaml:"concurrency"`
	// MaxAttempts 单段请求的最大尝试次数（含首次）。
	MaxAttempts int `yaml:"max_attempts"`
	// TimeoutSeconds 单次 HTTP 请求超时（秒）。
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// AudioConfig 音频拼接配置。
type AudioConfig struct {
	// SampleRate 拼接时统一到的采样率（Hz）。
	SampleRate int `yaml:"sample_rate"`
	// CrossfadeMs 分段边界的交叉淡化时长（毫秒）。
	CrossfadeMs int `yaml:"crossfade_ms"`
}

// CacheConfig 分段合成缓存配置。
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Dir       string `yaml:"dir"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// OutputConfig 产物输出配置。
type OutputConfig struct {
	Dir string `yaml:"dir"`
	// Debug 开启后在输出目录下保存每段请求的 JSON 转储。
	Debug bool `yaml:"debug"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开；
// 文件不存在时返回纯默认配置（凭据从环境变量读取）。
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			setDefaults(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${ELEVENLABS_API_KEY}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// LanguageByCode 按两位语言码找到语言名及其配置。
func (c *Config) LanguageByCode(code string) (string, LanguageConfig, error) {
	for name, lang := range c.Languages {
		if lang.Code == strings.ToLower(code) {
			return name, lang, nil
		}
	}
	return "", LanguageConfig{}, fmt.Errorf("不支持的语言码: %s", code)
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Providers.ElevenLabs.APIKey == "" {
		cfg.Providers.ElevenLabs.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.Providers.ElevenLabs.BaseURL == "" {
		cfg.Providers.ElevenLabs.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Providers.ElevenLabs.Model == "" {
		cfg.Providers.ElevenLabs.Model = "eleven_v3"
	}
	if cfg.Providers.ElevenLabs.Stability == 0 {
		cfg.Providers.ElevenLabs.Stability = 0.5
	}
	if cfg.Providers.ElevenLabs.SimilarityBoost == 0 {
		cfg.Providers.ElevenLabs.SimilarityBoost = 0.75
	}

	if cfg.Providers.Cartesia.APIKey == "" {
		cfg.Providers.Cartesia.APIKey = os.Getenv("CARTESIA_API_KEY")
	}
	if cfg.Providers.Cartesia.BaseURL == "" {
		cfg.Providers.Cartesia.BaseURL = "https://api.cartesia.ai"
	}
	if cfg.Providers.Cartesia.Model == "" {
		cfg.Providers.Cartesia.Model = "sonic-english"
	}
	if cfg.Providers.Cartesia.Version == "" {
		cfg.Providers.Cartesia.Version = "2024-06-10"
	}

	if cfg.Voices == nil {
		cfg.Voices = VoiceTable{}
	}
	fillDefaultVoices(cfg.Voices)

	if cfg.Languages == nil {
		cfg.Languages = map[string]LanguageConfig{}
	}
	fillDefaultLanguages(cfg.Languages)

	if cfg.Speed.SpeakerA == 0 {
		cfg.Speed.SpeakerA = 1.0
	}
	if cfg.Speed.SpeakerB == 0 {
		cfg.Speed.SpeakerB = 1.0
	}

	if cfg.Synthesis.Concurrency == 0 {
		cfg.Synthesis.Concurrency = 3
	}
	if cfg.Synthesis.MaxAttempts == 0 {
		cfg.Synthesis.MaxAttempts = 3
	}
	if cfg.Synthesis.TimeoutSeconds == 0 {
		cfg.Synthesis.TimeoutSeconds = 120
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Audio.CrossfadeMs == 0 {
		cfg.Audio.CrossfadeMs = 10
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = "./.podcast-cache"
	} else if strings.HasPrefix(cfg.Cache.Dir, "~/") {
		// Go 不会自动展开 ~，需要手动替换为用户主目录
		home, _ := os.UserHomeDir()
		if home != "" {
			cfg.Cache.Dir = home + cfg.Cache.Dir[1:]
		}
	}
	if cfg.Cache.MaxSizeMB == 0 {
		cfg.Cache.MaxSizeMB = 512
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./output"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// 去除 API Key 两端可能的空白（环境变量展开后常见）
	cfg.Providers.ElevenLabs.APIKey = strings.TrimSpace(cfg.Providers.ElevenLabs.APIKey)
	cfg.Providers.Cartesia.APIKey = strings.TrimSpace(cfg.Providers.Cartesia.APIKey)
}

// fillDefaultVoices 为缺失的 (服务商, 语言) 组合补全默认语音。
// ElevenLabs/Cartesia 的默认语音为多语言模型语音，三种语言共用，
// 正式使用时应在配置中按语言覆盖。
func fillDefaultVoices(table VoiceTable) {
	defaults := map[string]map[string]SpeakerVoices{
		"elevenlabs": {
			"german":  {SpeakerA: "21m00Tcm4TlvDq8ikWAM", SpeakerB: "ErXwobaYiN019PkySvjV"},
			"english": {SpeakerA: "21m00Tcm4TlvDq8ikWAM", SpeakerB: "ErXwobaYiN019PkySvjV"},
			"dutch":   {SpeakerA: "21m00Tcm4TlvDq8ikWAM", SpeakerB: "ErXwobaYiN019PkySvjV"},
		},
		"cartesia": {
			"german":  {SpeakerA: "156fb8d2-335b-4950-9cb3-a2d33befec77", SpeakerB: "a0e99841-438c-4a64-b679-ae501e7d6091"},
			"english": {SpeakerA: "156fb8d2-335b-4950-9cb3-a2d33befec77", SpeakerB: "a0e99841-438c-4a64-b679-ae501e7d6091"},
			"dutch":   {SpeakerA: "156fb8d2-335b-4950-9cb3-a2d33befec77", SpeakerB: "a0e99841-438c-4a64-b679-ae501e7d6091"},
		},
		"edge": {
			"german":  {SpeakerA: "de-DE-KatjaNeural", SpeakerB: "de-DE-ConradNeural"},
			"english": {SpeakerA: "en-US-AriaNeural", SpeakerB: "en-US-GuyNeural"},
			"dutch":   {SpeakerA: "nl-NL-ColetteNeural", SpeakerB: "nl-NL-MaartenNeural"},
		},
	}

	for provider, langs := range defaults {
		if table[provider] == nil {
			table[provider] = map[string]SpeakerVoices{}
		}
		for lang, voices := range langs {
			if _, ok := table[provider][lang]; !ok {
				table[provider][lang] = voices
			}
		}
	}
}

// fillDefaultLanguages 补全默认支持的语言。
func fillDefaultLanguages(langs map[string]LanguageConfig) {
	defaults := map[string]LanguageConfig{
		"german":  {Code: "de", Speed: 1.0},
		"english": {Code: "en", Speed: 1.05},
		"dutch":   {Code: "nl", Speed: 1.0},
	}
	for name, def := range defaults {
		cur, ok := langs[name]
		if !ok {
			langs[name] = def
			continue
		}
		if cur.Code == "" {
			cur.Code = def.Code
		}
		if cur.Speed == 0 {
			cur.Speed = def.Speed
		}
		langs[name] = cur
	}
}
