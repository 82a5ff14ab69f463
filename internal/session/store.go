package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// IdentityKey 为持久化当前用户名的键。
const IdentityKey = "hft_user"

// KV 抽象本地持久化，读写失败与"无身份"不做区分。
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Observer 接收会话开始/结束通知。
type Observer interface {
	SessionStarted(identity string)
	SessionEnded()
}

// Store 持有当前身份，是唯一可以写入 Identity 的组件。
type Store struct {
	kv     KV
	logger *zap.Logger

	mu        sync.RWMutex
	identity  string
	observers []Observer
}

// NewStore 创建会话存储。
func NewStore(kv KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:     kv,
		logger: logger,
	}
}

// Observe 注册会话观察者。
func (s *Store) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Restore 启动时读取已持久化的身份，不向服务端校验。
func (s *Store) Restore(ctx context.Context) (string, bool) {
	if s.kv == nil {
		return "", false
	}
	identity, ok, err := s.kv.Get(ctx, IdentityKey)
	if err != nil {
		s.logger.Warn("读取持久化身份失败", zap.Error(err))
		return "", false
	}
	if !ok || identity == "" {
		return "", false
	}

	s.apply(identity)
	s.logger.Info("已恢复会话", zap.String("username", identity))
	return identity, true
}

// Set 持久化并激活身份。
func (s *Store) Set(ctx context.Context, identity string) {
	if identity == "" {
		s.Clear(ctx)
		return
	}
	if s.kv != nil {
		if err := s.kv.Put(ctx, IdentityKey, identity); err != nil {
			s.logger.Warn("持久化身份失败", zap.String("username", identity), zap.Error(err))
		}
	}
	s.apply(identity)
}

// Clear 注销：删除持久化身份并通知观察者清空余额。
func (s *Store) Clear(ctx context.Context) {
	if s.kv != nil {
		if err := s.kv.Delete(ctx, IdentityKey); err != nil {
			s.logger.Warn("删除持久化身份失败", zap.Error(err))
		}
	}

	s.mu.Lock()
	prev := s.identity
	s.identity = ""
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o.SessionEnded()
	}
	if prev != "" {
		s.logger.Info("会话已结束", zap.String("username", prev))
	}
}

// Identity 返回当前身份。
func (s *Store) Identity() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.identity != ""
}

// Active 表示会话是否有效。
func (s *Store) Active() bool {
	_, ok := s.Identity()
	return ok
}

func (s *Store) apply(identity string) {
	s.mu.Lock()
	s.identity = identity
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	for _, o := range observers {
		o.SessionStarted(identity)
	}
}
