package script

import (
	"regexp"
	"strings"

	"github.com/pljvp/myfirstpodcast/internal/logger"
)

// Speaker 对话中的说话人。
type Speaker int

const (
	// SpeakerA 说话人 A。
	SpeakerA Speaker = iota
	// SpeakerB 说话人 B。
	SpeakerB
)

// String 返回说话人的单字母标识。
func (s Speaker) String() string {
	if s == SpeakerB {
		return "B"
	}
	return "A"
}

// Segment 一位说话人的一段连续台词。
// 由 Parse 产出后不再修改，序号即播放顺序。
type Segment struct {
	// Index 0 起始的播放序号，丢弃空段后保证连续。
	Index int
	// Speaker 说话人。
	Speaker Speaker
	// Text 纯口播文本，情绪标签与来源附录均已去除。
	Text string
	// EmotionTags 按出现顺序提取的规范情绪词（小写），允许重复。
	EmotionTags []string
	// SpeedOverride 该段的用户语速覆盖，0 表示使用说话人默认。
	// Parse 不会填写此字段，由调用方在切分之后按需设置。
	SpeedOverride float64
}

// MalformedScriptError 表示脚本中找不到任何说话人标签，
// 属于用户可见错误，需要重新提供格式正确的脚本。
type MalformedScriptError struct {
	Reason string
}

func (e *MalformedScriptError) Error() string {
	return "脚本格式错误: " + e.Reason
}

var tagRe = regexp.MustCompile(`\[([^\]]+)\]`)

// Parse 清洗脚本并切分为有序的说话人分段。
// 每个以 Speaker A:/Speaker B: 开头的行（允许 ** 加粗包裹）开启新分段，
// 其余行并入当前分段；[标签] 被提取进 EmotionTags 并从文本中去除。
// 找不到任何说话人标签时返回 MalformedScriptError。
func Parse(raw string) ([]Segment, error) {
	cleaned := Clean(raw)

	var (
		segments []Segment
		current  *Segment
		found    bool
		dropped  int
	)

	flush := func() {
		if current == nil {
			return
		}
		if current.Text == "" {
			// 只剩标签没有台词的分段直接丢弃，序号在追加时重排
			dropped++
			logger.Warnf("[script] 丢弃空分段（speaker=%s, tags=%v）", current.Speaker, current.EmotionTags)
			current = nil
			return
		}
		current.Index = len(segments)
		segments = append(segments, *current)
		current = nil
	}

	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		speaker, rest, ok := matchSpeaker(line)
		if ok {
			flush()
			found = true
			current = &Segment{Speaker: speaker}
			appendLine(current, rest)
			continue
		}

		if current != nil {
			appendLine(current, line)
		}
	}
	flush()

	if !found {
		return nil, &MalformedScriptError{Reason: "没有找到 Speaker A:/Speaker B: 标签"}
	}

	if dropped > 0 {
		logger.Infof("[script] 切分完成：%d 段，丢弃 %d 个空段", len(segments), dropped)
	}
	return segments, nil
}

// matchSpeaker 识别说话人标签行，返回说话人和标签后的剩余文本。
// 标签大小写敏感，允许 **Speaker A:** 形式的加粗包裹。
func matchSpeaker(line string) (Speaker, string, bool) {
	candidate := strings.TrimPrefix(line, "**")
	var speaker Speaker
	switch {
	case strings.HasPrefix(candidate, "Speaker A:"):
		speaker = SpeakerA
	case strings.HasPrefix(candidate, "Speaker B:"):
		speaker = SpeakerB
	default:
		return 0, "", false
	}
	rest := candidate[len("Speaker A:"):]
	rest = strings.ReplaceAll(rest, "**", "")
	return speaker, strings.TrimSpace(rest), true
}

// appendLine 提取一行中的情绪标签并把剩余文本并入分段。
func appendLine(seg *Segment, line string) {
	if line == "" {
		return
	}
	for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
		seg.EmotionTags = append(seg.EmotionTags, strings.ToLower(strings.TrimSpace(m[1])))
	}
	text := tagRe.ReplaceAllString(line, "")
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return
	}
	if seg.Text == "" {
		seg.Text = text
	} else {
		seg.Text += " " + text
	}
}
