package tts

import (
	"errors"
	"fmt"
	"net/http"
)

// 常见合成错误，供 errors.Is 判断。
var (
	// ErrRateLimited 触发服务商限流（HTTP 429）。
	ErrRateLimited = errors.New("触发限流")
	// ErrInvalidVoice 语音 ID 不存在。
	ErrInvalidVoice = errors.New("语音 ID 无效")
	// ErrAuth 凭据无效或缺失。
	ErrAuth = errors.New("认证失败")
	// ErrEmptyAudio 服务商返回了空音频。
	ErrEmptyAudio = errors.New("未返回音频数据")
)

// SynthesisError 表示服务商拒绝或未能完成一次合成请求。
// Retryable 标记该错误是否为瞬时错误（网络、限流、5xx）；
// 瞬时错误在适配器内部有界重试，重试耗尽后以 Retryable=false 上抛；
// 非瞬时错误（凭据、语音 ID、请求格式）直接中止整次运行。
type SynthesisError struct {
	// Provider 服务商标识。
	Provider string
	// SegmentIndex 失败分段的播放序号。
	SegmentIndex int
	// Status HTTP 状态码，非 HTTP 失败时为 0。
	Status int
	// Message 人类可读的失败描述。
	Message string
	// Cause 底层错误。
	Cause error
	// Retryable 是否为瞬时错误。
	Retryable bool
}

func (e *SynthesisError) Error() string {
	msg := fmt.Sprintf("合成失败 [%s 分段 %d]: %s", e.Provider, e.SegmentIndex, e.Message)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SynthesisError) Unwrap() error {
	return e.Cause
}

// newSynthesisError 构造 SynthesisError。
func newSynthesisError(provider string, segment, status int, message string, cause error, retryable bool) *SynthesisError {
	return &SynthesisError{
		Provider:     provider,
		SegmentIndex: segment,
		Status:       status,
		Message:      message,
		Cause:        cause,
		Retryable:    retryable,
	}
}

// classifyStatus 把 HTTP 状态码归类为 SynthesisError。
// 429 和 5xx 是瞬时错误；401/403 是认证失败、404 是语音 ID 无效、
// 其余 4xx 是请求格式问题，均不可重试。
func classifyStatus(provider string, segment, status int, body string) *SynthesisError {
	var cause error
	retryable := false

	switch {
	case status == http.StatusTooManyRequests:
		cause = ErrRateLimited
		retryable = true
	case status >= 500:
		retryable = true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		cause = ErrAuth
	case status == http.StatusNotFound:
		cause = ErrInvalidVoice
	}

	msg := "服务商返回错误"
	if body != "" {
		msg = msg + ": " + body
	}
	return newSynthesisError(provider, segment, status, msg, cause, retryable)
}
