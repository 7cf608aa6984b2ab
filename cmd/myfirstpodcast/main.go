package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pljvp/myfirstpodcast/internal/config"
	"github.com/pljvp/myfirstpodcast/internal/logger"
	"github.com/pljvp/myfirstpodcast/internal/pipeline"
	"github.com/pljvp/myfirstpodcast/internal/tts"
)

func main() {
	configPath := flag.String("config", "configs/podcast.yaml", "配置文件路径")
	scriptPath := flag.String("script", "", "对话脚本文件路径（必填）")
	project := flag.String("project", "", "项目名，用于成品文件名；默认取脚本文件名")
	provider := flag.String("provider", "cartesia", "TTS 服务商: elevenlabs / cartesia / edge")
	lang := flag.String("lang", "de", "语言码: de / en / nl")
	overall := flag.Float64("speed", 0, "整体语速 0.7~1.2；0 表示使用该语言默认值")
	speedA := flag.Float64("speed-a", 0, "说话人 A 的精确语速覆盖（启用 TUNED 命名）")
	speedB := flag.Float64("speed-b", 0, "说话人 B 的精确语速覆盖（启用 TUNED 命名）")
	mode := flag.String("mode", "production", "质量档: prototype / production")
	outDir := flag.String("out", "", "输出目录，覆盖配置")
	sequential := flag.Bool("seq", false, "强制逐段顺序合成")
	flag.Parse()

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "用法: myfirstpodcast -script <脚本文件> [选项]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *mode != "prototype" && *mode != "production" {
		fmt.Fprintf(os.Stderr, "未知的质量档: %s\n", *mode)
		os.Exit(1)
	}

	// .env 缺失只是提示，不是错误
	if err := godotenv.Load(); err != nil {
		log.Printf("[main] 未加载 .env 文件: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	scriptText, err := os.ReadFile(*scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取脚本失败: %v\n", err)
		os.Exit(1)
	}

	if *project == "" {
		base := filepath.Base(*scriptPath)
		*project = strings.TrimSuffix(base, filepath.Ext(base))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，中断时取消运行
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] 收到信号 %v，正在中止...", sig)
		cancel()
	}()

	p, err := pipeline.New(cfg, pipeline.Options{
		Provider:   *provider,
		Language:   *lang,
		Project:    *project,
		Speed:      *overall,
		SpeedA:     *speedA,
		SpeedB:     *speedB,
		Prototype:  *mode == "prototype",
		OutputDir:  *outDir,
		Sequential: *sequential,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建流水线失败: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	result, err := p.Run(ctx, string(scriptText))
	if err != nil {
		var synthErr *tts.SynthesisError
		if errors.As(err, &synthErr) {
			fmt.Fprintf(os.Stderr, "合成失败: 片段 %d @ %s: %v\n",
				synthErr.SegmentIndex, synthErr.Provider, err)
		} else {
			fmt.Fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("成品: %s\n", result.Path)
	fmt.Printf("时长: %.1f 秒, 大小: %d 字节\n", result.Duration.Seconds(), result.Size)
	fmt.Printf("语速: A %.2f / B %.2f\n", result.SpeedA, result.SpeedB)
	for provider, units := range result.Usage.UnitsByProvider {
		fmt.Printf("计费: %s %d 字符\n", provider, units)
	}
	if result.CacheHits > 0 {
		fmt.Printf("缓存命中: %d 段\n", result.CacheHits)
	}
}
