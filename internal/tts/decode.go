package tts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// decodeMP3Mono 把服务商返回的 MP3 解码为单声道 float32 PCM。
// go-mp3 固定输出立体声 signed 16-bit LE（每帧 4 字节），
// 左右声道取平均得到单声道，归一化到 [-1.0, 1.0]。
// 拼接始终在这个最高保真的未压缩表示上进行。
func decodeMP3Mono(mp3Data []byte) ([]float32, int, error) {
	if len(mp3Data) == 0 {
		return nil, 0, ErrEmptyAudio
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(mp3Data))
	if err != nil {
		return nil, 0, fmt.Errorf("MP3 解码失败: %w", err)
	}

	sampleRate := decoder.SampleRate()

	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("读取 PCM 数据失败: %w", err)
	}

	const bytesPerFrame = 4
	if len(pcmData)%bytesPerFrame != 0 {
		// 截掉不完整的尾部帧
		pcmData = pcmData[:len(pcmData)/bytesPerFrame*bytesPerFrame]
	}

	numFrames := len(pcmData) / bytesPerFrame
	samples := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		offset := i * bytesPerFrame
		left := int16(binary.LittleEndian.Uint16(pcmData[offset : offset+2]))
		right := int16(binary.LittleEndian.Uint16(pcmData[offset+2 : offset+4]))
		mono := (float32(left) + float32(right)) / 2.0
		samples[i] = mono / 32768.0
	}

	if len(samples) == 0 {
		return nil, 0, ErrEmptyAudio
	}
	return samples, sampleRate, nil
}
