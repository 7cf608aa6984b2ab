package audio

import "encoding/binary"

// wavHeaderSize 标准 RIFF/WAVE 头的字节数。
const wavHeaderSize = 44

// EncodeWAV 把单声道 float32 样本封装为 16-bit PCM WAV 文件字节。
// 头部按 44 字节标准 RIFF 布局手工构造。
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := Float32ToBytes(samples)
	dataSize := len(pcm)

	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	wav := make([]byte, wavHeaderSize+dataSize)

	// RIFF 块
	copy(wav[0:4], "RIFF")
	binary.LittleEndian.PutUint32(wav[4:8], uint32(36+dataSize))
	copy(wav[8:12], "WAVE")

	// fmt 子块（PCM）
	copy(wav[12:16], "fmt ")
	binary.LittleEndian.PutUint32(wav[16:20], 16)
	binary.LittleEndian.PutUint16(wav[20:22], 1)
	binary.LittleEndian.PutUint16(wav[22:24], channels)
	binary.LittleEndian.PutUint32(wav[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(wav[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(wav[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(wav[34:36], bitsPerSample)

	// data 子块
	copy(wav[36:40], "data")
	binary.LittleEndian.PutUint32(wav[40:44], uint32(dataSize))
	copy(wav[wavHeaderSize:], pcm)

	return wav
}
