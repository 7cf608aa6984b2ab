package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// ProviderTag 返回提供商在成品文件名里使用的短代号。
func ProviderTag(provider string) string {
	switch provider {
	case "elevenlabs":
		return "11LB"
	case "cartesia":
		return "CRTS"
	case "edge":
		return "EDGE"
	}
	return strings.ToUpper(provider)
}

// NamingInfo 包含生成成品文件名所需的全部字段。
// 文件名里的语速都是用户标度（显示值），不是提供商原生值。
type NamingInfo struct {
	Project     string
	Language    string // 语言代码，如 de / en / nl
	ProviderTag string
	Mode        string // prototype 或 production

	// Tuned 为 true 时文件名带 A/B 两位小数语速块，模式后缀固定为 TUNED。
	Tuned  bool
	SpeedA float64
	SpeedB float64

	// SpeedTest 为 true 时在模式后缀前插入 OS/MS/FS 语速块。
	SpeedTest bool
	Overall   float64
}

// ArtifactName 按约定生成成品文件名：
//
//	默认:   {project}_{lang}_{date}_{time}_{TAG}_{MODE}.wav
//	调优:   {project}_A{a}_B{b}_{lang}_{date}_{time}_{TAG}_TUNED.wav
//	测速:   {project}_{lang}_{date}_{time}_{TAG}_OS{o}_MS{m}_FS{f}_{MODE}.wav
func ArtifactName(info NamingInfo, now time.Time) string {
	date := now.Format("2006-01-02")
	clock := now.Format("15-04")
	project := sanitizeProject(info.Project)

	if info.Tuned {
		return fmt.Sprintf("%s_A%.2f_B%.2f_%s_%s_%s_%s_TUNED.wav",
			project, info.SpeedA, info.SpeedB, info.Language, date, clock, info.ProviderTag)
	}

	mode := strings.ToUpper(info.Mode)
	if info.SpeedTest {
		// A 说话人映射 FS、B 说话人映射 MS，沿用最初双主播的性别分工
		return fmt.Sprintf("%s_%s_%s_%s_%s_OS%.2f_MS%.2f_FS%.2f_%s.wav",
			project, info.Language, date, clock, info.ProviderTag,
			info.Overall, info.SpeedB, info.SpeedA, mode)
	}

	return fmt.Sprintf("%s_%s_%s_%s_%s_%s.wav",
		project, info.Language, date, clock, info.ProviderTag, mode)
}

// sanitizeProject 把项目名里不适合出现在文件名中的字符换成连字符。
func sanitizeProject(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "podcast"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "-", "_", "-")
	return strings.ToLower(replacer.Replace(name))
}
