// Package speed 在用户语速刻度与各服务商的原生语速表示之间转换。
// 用户刻度 0.7（慢）~1.2（快）对所有服务商统一，便于横向比较；
// 各服务商的原生范围互不相同，换算关系固定且可逆。
package speed

import "github.com/pljvp/myfirstpodcast/internal/logger"

const (
	// UserMin 用户语速刻度下限。
	UserMin = 0.7
	// UserMax 用户语速刻度上限。
	UserMax = 1.2

	// Cartesia 原生范围 [-1.0, 1.0]，0 为正常语速。
	// 换算：native = (user - 1.0) × 2.0，即 0.7→-0.6、1.05→0.1、1.2→0.4。
	cartesiaScale = 2.0
	cartesiaMin   = -1.0
	cartesiaMax   = 1.0
)

// ClampUser 将用户语速钳位到 [0.7, 1.2]，返回钳位结果和是否发生钳位。
func ClampUser(v float64) (float64, bool) {
	switch {
	case v < UserMin:
		return UserMin, true
	case v > UserMax:
		return UserMax, true
	}
	return v, false
}

// ToProvider 把用户语速换算为指定服务商的原生语速。
// ElevenLabs 原生范围即用户范围，Edge 不支持语速控制，二者均为恒等映射；
// Cartesia 按 (user-1.0)×2.0 换算并钳到 [-1.0, 1.0]。
// 超出范围的输入只钳位并告警，从不报错。
func ToProvider(userSpeed float64, provider string) float64 {
	clamped, out := ClampUser(userSpeed)
	if out {
		logger.Warnf("[speed] 用户语速 %.2f 超出 [%.1f, %.1f]，已钳位到 %.2f", userSpeed, UserMin, UserMax, clamped)
	}

	if provider != "cartesia" {
		return clamped
	}

	native := (clamped - 1.0) * cartesiaScale
	if native < cartesiaMin {
		native = cartesiaMin
	} else if native > cartesiaMax {
		native = cartesiaMax
	}
	return native
}

// ToDisplay 把服务商原生语速换算回用户刻度，仅用于人类可读的标注
// （产物文件名、运行摘要）。ToProvider(ToDisplay(x, P), P) == x
// 在浮点误差内对 P 的全部合法原生范围成立。
func ToDisplay(nativeSpeed float64, provider string) float64 {
	if provider != "cartesia" {
		return nativeSpeed
	}
	return nativeSpeed/cartesiaScale + 1.0
}

// ForSpeaker 计算某位说话人的有效用户语速：
// override 非零时直接采用（精调模式的精确值），
// 否则取整体语速乘以该说话人的配置倍率，结果钳回用户刻度并告警。
func ForSpeaker(base, multiplier, override float64) float64 {
	if override != 0 {
		v, out := ClampUser(override)
		if out {
			logger.Warnf("[speed] 说话人语速覆盖 %.2f 超出范围，已钳位到 %.2f", override, v)
		}
		return v
	}
	if multiplier == 0 {
		multiplier = 1.0
	}
	v, out := ClampUser(base * multiplier)
	if out {
		logger.Warnf("[speed] 说话人语速 %.2f×%.2f 超出范围，已钳位到 %.2f", base, multiplier, v)
	}
	return v
}
