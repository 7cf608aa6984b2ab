// Package emotion 把规范情绪词翻译为各 TTS 服务商的原生表示。
//
// 规范词表与服务商解耦：脚本中出现的 [excited]、[curious] 等标签
// 先被提取为规范词，再按当前服务商查表翻译。
//   - ElevenLabs v3 的音频标签词汇是自由形式，规范词本身即原生标签，
//     由适配器渲染为行内 [tag] 标记；
//   - Cartesia 只有 positivity/curiosity/surprise/anger/sadness 五个
//     维度，每个维度四档（lowest/low/high/highest，没有 medium），
//     按出现顺序取第一个有非中性映射的词作为唯一标签；
//   - Edge 没有情绪控制，所有词都落到中性。
//
// 查表是纯函数：相同输入永远产生相同输出。
package emotion

// Neutral 配置的默认中性表示：空字符串，表示省略情绪参数。
const Neutral = ""

// canonical 是规范词总表，值为 Cartesia 的 dimension:level 表示，
// Neutral 表示该词对 Cartesia 无映射（仅 ElevenLabs 可用）。
// 词表覆盖兴奋、好奇、惊讶、逗乐、沉思、笑声等情绪族，
// 以及打断、节奏、音量、反应类的播报控制词。
var canonical = map[string]string{
	// 兴奋/积极
	"excited":      "positivity:high",
	"enthusiastic": "positivity:high",
	"thrilled":     "positivity:highest",
	"energetic":    "positivity:high",
	"happy":        "positivity:high",
	"delighted":    "positivity:high",
	"cheerful":     "positivity:high",
	"upbeat":       "positivity:high",
	"animated":     "positivity:high",
	"passionate":   "positivity:high",
	"eager":        "positivity:high",
	"proud":        "positivity:high",
	"triumphant":   "positivity:highest",
	"warm":         "positivity:low",
	"friendly":     "positivity:low",
	"playful":      "positivity:high",

	// 好奇/探究
	"curious":     "curiosity:high",
	"questioning": "curiosity:high",
	"intrigued":   "curiosity:high",
	"wondering":   "curiosity:high",
	"interested":  "curiosity:high",
	"fascinated":  "curiosity:highest",
	"inquisitive": "curiosity:high",
	"confused":    "curiosity:high",
	"uncertain":   "curiosity:low",

	// 惊讶
	"surprised":   "surprise:high",
	"amazed":      "surprise:high",
	"astonished":  "surprise:highest",
	"shocked":     "surprise:highest",
	"stunned":     "surprise:highest",
	"startled":    "surprise:high",
	"incredulous": "surprise:high",
	"impressed":   "surprise:low",

	// 逗乐/笑声
	"amused":   "positivity:high",
	"laughs":   "positivity:high",
	"laughing": "positivity:high",
	"chuckles": "positivity:low",
	"giggles":  "positivity:high",
	"snickers": "positivity:low",
	"joking":   "positivity:high",
	"teasing":  "positivity:high",
	"grinning": "positivity:high",
	"smiling":  "positivity:low",

	// 沉思/分析
	"thoughtful":    "curiosity:low",
	"analytical":    "curiosity:low",
	"reflective":    "curiosity:low",
	"contemplative": "curiosity:low",
	"pensive":       "sadness:low",
	"considering":   "curiosity:low",
	"measured":      "curiosity:low",
	"skeptical":     "curiosity:low",
	"doubtful":      "curiosity:low",
	"cautious":      "curiosity:low",
	"serious":       "curiosity:low",

	// 消极/紧张
	"worried":      "anger:low",
	"concerned":    "curiosity:low",
	"nervous":      "sadness:low",
	"hesitant":     "sadness:low",
	"anxious":      "sadness:low",
	"frustrated":   "anger:high",
	"annoyed":      "anger:low",
	"angry":        "anger:high",
	"outraged":     "anger:highest",
	"disappointed": "sadness:high",
	"sad":          "sadness:high",
	"somber":       "sadness:high",
	"resigned":     "sadness:low",
	"dismissive":   "anger:low",

	// 反应声
	"sighs":  "sadness:low",
	"gasps":  "surprise:high",
	"hmm":    "curiosity:low",
	"groans": "sadness:low",

	// 播报控制（仅 ElevenLabs 有原生表示）
	"interrupting": Neutral,
	"overlapping":  Neutral,
	"interjecting": Neutral,
	"fast-paced":   Neutral,
	"slowly":       Neutral,
	"pause":        Neutral,
	"quietly":      Neutral,
	"loudly":       Neutral,
	"whispers":     Neutral,
	"exhales":      Neutral,
	"deadpan":      Neutral,
	"dramatic":     Neutral,
	"sarcastic":    Neutral,
	"emphatic":     Neutral,
	"calm":         Neutral,
	"gentle":       Neutral,
	"firm":         Neutral,
}

// Known 判断一个词是否在规范词表中。
func Known(tag string) bool {
	_, ok := canonical[tag]
	return ok
}

// Resolve 把一组规范词（按出现顺序）翻译为指定服务商的原生标签。
// 每个输入词独立翻译，除服务商表示本身的归并外不做去重：
//   - elevenlabs: 词表内的词原样保留（自由词汇），词表外落到中性即丢弃；
//   - cartesia: 取第一个有非中性映射的词，返回至多一个 dimension:level 标签；
//   - 其他（edge 等）：无情绪控制，返回 nil。
func Resolve(tags []string, provider string) []string {
	switch provider {
	case "elevenlabs":
		var out []string
		for _, tag := range tags {
			if Known(tag) {
				out = append(out, tag)
			}
		}
		return out
	case "cartesia":
		if label := BestMatch(tags); label != Neutral {
			return []string{label}
		}
		return nil
	default:
		return nil
	}
}

// BestMatch 返回第一个有非中性 Cartesia 映射的词的标签，
// 都没有时返回 Neutral。匹配优先级即词的出现顺序。
func BestMatch(tags []string) string {
	for _, tag := range tags {
		if label := canonical[tag]; label != Neutral {
			return label
		}
	}
	return Neutral
}
