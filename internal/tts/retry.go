package tts

import (
	"context"
	"errors"
	"time"

	"github.com/pljvp/myfirstpodcast/internal/logger"
)

// defaultMaxAttempts 单段请求的默认最大尝试次数（含首次）。
const defaultMaxAttempts = 3

// withRetry 以有界退避执行 fn：瞬时错误（Retryable 的 SynthesisError）
// 在第 n 次失败后等待 n 秒再试，最多 maxAttempts 次；
// 非瞬时错误立即返回；重试耗尽后将最后一个错误降级为不可重试上抛。
func withRetry(ctx context.Context, provider string, segment, maxAttempts int, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			logger.Debugf("[tts] %s 分段 %d: 第 %d/%d 次尝试", provider, segment, attempt, maxAttempts)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var synthErr *SynthesisError
		if !errors.As(lastErr, &synthErr) || !synthErr.Retryable {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		logger.Warnf("[tts] %s 分段 %d: 瞬时失败，%d 秒后重试: %v", provider, segment, attempt, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	// 重试耗尽，升级为终态错误
	var synthErr *SynthesisError
	if errors.As(lastErr, &synthErr) {
		return newSynthesisError(provider, segment, synthErr.Status,
			"重试次数耗尽: "+synthErr.Message, synthErr.Cause, false)
	}
	return lastErr
}
