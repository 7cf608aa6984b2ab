package audio

// Resample 用线性插值把单声道样本从 fromRate 重采样到 toRate。
// 采样率相同时返回原切片的副本。
func Resample(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}

	numOut := int(float64(len(in)) * float64(toRate) / float64(fromRate))
	if numOut == 0 {
		return []float32{}
	}

	out := make([]float32, numOut)
	ratio := float64(fromRate) / float64(toRate)

	for i := 0; i < numOut; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		if srcIdx >= len(in)-1 {
			out[i] = in[len(in)-1]
		} else {
			// 相邻两个样本线性插值
			out[i] = in[srcIdx] + frac*(in[srcIdx+1]-in[srcIdx])
		}
	}
	return out
}
