package tts

import "sync"

// Usage 一次运行的用量汇总。
type Usage struct {
	// UnitsByProvider 按服务商累计的计费字符数。
	UnitsByProvider map[string]int64
	// Segments 计费的合成次数（缓存命中不计）。
	Segments int
}

// Total 返回所有服务商的计费字符总数。
func (u Usage) Total() int64 {
	var total int64
	for _, n := range u.UnitsByProvider {
		total += n
	}
	return total
}

// UsageTracker 累计单次运行的计费用量。
// 每次成功的合成调用记账一次；并发合成共享同一实例，互斥保护；
// 只增不减，不跨运行持久化，新运行从零开始。
type UsageTracker struct {
	mu       sync.Mutex
	units    map[string]int64
	segments int
}

// NewUsageTracker 创建清零的用量追踪器。
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{units: make(map[string]int64)}
}

// Record 记入一次成功合成：unitsBilled 为该段的计费字符数。
func (t *UsageTracker) Record(provider string, unitsBilled int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.units[provider] += int64(unitsBilled)
	t.segments++
}

// Summary 返回当前累计的用量快照。
func (t *UsageTracker) Summary() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	units := make(map[string]int64, len(t.units))
	for p, n := range t.units {
		units[p] = n
	}
	return Usage{UnitsByProvider: units, Segments: t.segments}
}
