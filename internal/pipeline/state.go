package pipeline

import (
	"log"
	"sync"
)

// State 表示一次合成运行的当前阶段。
type State int

const (
	// StateSegmenting — 正在清洗脚本并切分片段。
	StateSegmenting State = iota
	// StateResolving — 正在解析音色、语速和情绪参数。
	StateResolving
	// StateSynthesizing — 正在并发调用 TTS 提供商。
	StateSynthesizing
	// StateAssembling — 正在拼接片段并写出成品。
	StateAssembling
	// StateDone — 运行成功结束。
	StateDone
	// StateFailed — 运行中止，终态。
	StateFailed
)

var stateNames = [...]string{
	"Segmenting",
	"Resolving",
	"Synthesizing",
	"Assembling",
	"Done",
	"Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// StateMachine 管理线程安全的阶段转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 创建一个初始阶段为 Segmenting 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateSegmenting,
	}
}

// SetOnChange 注册阶段变化时的回调函数。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前阶段。
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换阶段。只有合法的转换才会生效：
//
//	Segmenting   → Resolving     （片段切分完成）
//	Resolving    → Synthesizing  （参数解析完成）
//	Synthesizing → Assembling    （所有片段音频到齐）
//	Assembling   → Done          （成品写出）
//
// 任何非终态都可以转换到 Failed（用于中止），Done 和 Failed 是终态。
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		log.Printf("[state] 非法转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	log.Printf("[state] %s → %s", from, to)

	if sm.onChange != nil {
		sm.onChange(from, to)
	}
	return true
}

// validTransition 检查阶段转换是否合法。
func validTransition(from, to State) bool {
	// 终态不再转换
	if from == StateDone || from == StateFailed {
		return false
	}
	// 任何非终态都允许中止
	if to == StateFailed {
		return true
	}
	switch from {
	case StateSegmenting:
		return to == StateResolving
	case StateResolving:
		return to == StateSynthesizing
	case StateSynthesizing:
		return to == StateAssembling
	case StateAssembling:
		return to == StateDone
	}
	return false
}
