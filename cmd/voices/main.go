// voices 打印配置的语音表，以及各服务商的 API 密钥是否就位。
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/joho/godotenv"

	"github.com/pljvp/myfirstpodcast/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/podcast.yaml", "配置文件路径")
	provider := flag.String("provider", "", "只显示指定服务商: elevenlabs / cartesia / edge")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("[voices] 未加载 .env 文件: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	providers := make([]string, 0, len(cfg.Voices))
	for name := range cfg.Voices {
		if *provider != "" && name != *provider {
			continue
		}
		providers = append(providers, name)
	}
	sort.Strings(providers)

	if len(providers) == 0 {
		fmt.Fprintf(os.Stderr, "语音表中没有服务商 %s\n", *provider)
		os.Exit(1)
	}

	for _, name := range providers {
		fmt.Printf("%s (%s)\n", name, keyStatus(cfg, name))

		langs := make([]string, 0, len(cfg.Voices[name]))
		for lang := range cfg.Voices[name] {
			langs = append(langs, lang)
		}
		sort.Strings(langs)

		for _, lang := range langs {
			voices := cfg.Voices[name][lang]
			code := ""
			if lc, ok := cfg.Languages[lang]; ok {
				code = lc.Code
			}
			fmt.Printf("  %-8s (%s)\n", lang, code)
			fmt.Printf("    speaker_a: %s\n", voices.SpeakerA)
			fmt.Printf("    speaker_b: %s\n", voices.SpeakerB)
		}
		fmt.Println()
	}
}

// keyStatus 报告服务商的凭据状态。Edge 不需要密钥。
func keyStatus(cfg *config.Config, provider string) string {
	switch provider {
	case "elevenlabs":
		if cfg.Providers.ElevenLabs.APIKey != "" {
			return "API 密钥已配置"
		}
		return "缺少 API 密钥"
	case "cartesia":
		if cfg.Providers.Cartesia.APIKey != "" {
			return "API 密钥已配置"
		}
		return "缺少 API 密钥"
	case "edge":
		return "无需密钥"
	}
	return "未知服务商"
}
