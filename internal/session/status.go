package session

import (
	"sync"
	"time"
)

// Status 为最近一次认证或交易尝试的可读结果，每次尝试都会覆盖。
type Status struct {
	mu        sync.RWMutex
	message   string
	updatedAt time.Time
}

// Set 覆盖状态消息。
func (s *Status) Set(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = msg
	s.updatedAt = time.Now()
}

// Get 返回状态消息及更新时间。
func (s *Status) Get() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message, s.updatedAt
}
