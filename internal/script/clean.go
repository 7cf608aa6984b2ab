package script

import (
	"regexp"
	"strings"
)

// SourcesMarker 是口播内容与来源附录之间的边界标记。
// 标记及其之后的全部内容不得进入任何分段。
const SourcesMarker = "SOURCES FOUND:"

var (
	speakerRe = regexp.MustCompile(`Speaker [AB]:`)

	// 来源附录标记的三种写法：纯文本、加粗、markdown 标题
	sourcesRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\n\s*` + SourcesMarker),
		regexp.MustCompile(`(?i)\n\s*\*\*` + SourcesMarker + `\*\*`),
		regexp.MustCompile(`(?i)\n\s*##\s*` + SourcesMarker),
	}

	separatorRe = regexp.MustCompile(`(?m)^-{3,}\s*$`)
	headerRe    = regexp.MustCompile(`(?m)^#+\s+.*$`)
	// 舞台说明：整行被 *...* 包裹且不含 [，音频标签必须保留
	stageRe     = regexp.MustCompile(`(?m)^\*[^\[\n]*\*\s*$`)
	wordCountRe = regexp.MustCompile(`(?mi)^\s*\*{0,2}(?:total |approximate )?(?:script )?(?:word count|length|count):?\s*~?\d+\s*words?\*{0,2}\s*$`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
)

// Clean 去除脚本中的非口播内容。
// 依次处理：首个说话人标签之前的前言、来源附录、分隔线、
// markdown 标题、舞台说明、字数统计行，最后压缩多余空行。
func Clean(raw string) string {
	s := raw

	// 丢弃第一个 Speaker A:/B: 之前的所有前言
	if loc := speakerRe.FindStringIndex(s); loc != nil {
		s = s[loc[0]:]
	}

	// 来源附录必须在去除 --- 之前裁掉，附录前常有一条分隔线
	cut := false
	for _, re := range sourcesRes {
		if loc := re.FindStringIndex(s); loc != nil {
			s = s[:loc[0]]
			cut = true
			break
		}
	}
	// 兜底：标记出现在行中间或首行时同样生效
	if !cut {
		if idx := strings.Index(s, SourcesMarker); idx >= 0 {
			s = s[:idx]
		}
	}

	s = separatorRe.ReplaceAllString(s, "")
	s = headerRe.ReplaceAllString(s, "")
	s = stageRe.ReplaceAllString(s, "")
	s = wordCountRe.ReplaceAllString(s, "")

	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
