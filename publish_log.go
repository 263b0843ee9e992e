package dex

import "sync"

// PublishLog receives book log records (opens, matches, cancels).
//
// The engine recycles *BookLog values to a pool right after Publish returns,
// so implementations must finish with them synchronously or copy what they
// keep.
type PublishLog interface {
	Publish(...*BookLog)
}

// MemoryPublishLog retains published logs by value, for tests.
type MemoryPublishLog struct {
	mu   sync.RWMutex
	logs []BookLog
}

func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{}
}

func (m *MemoryPublishLog) Publish(logs ...*BookLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, log := range logs {
		m.logs = append(m.logs, *log)
	}
}

// All returns a copy of every log published so far, in order.
func (m *MemoryPublishLog) All() []BookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]BookLog, len(m.logs))
	copy(out, m.logs)
	return out
}

// DiscardPublishLog drops every log. The default when no publisher is given.
type DiscardPublishLog struct{}

func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

func (p *DiscardPublishLog) Publish(...*BookLog) {}
