package balance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"hft-terminal/internal/api"
)

var (
	// ErrNoSession 表示当前没有有效会话，不会发出请求。
	ErrNoSession = errors.New("balance: no active session")
	// ErrSuperseded 表示响应已被更新的快照或会话切换取代，结果被丢弃。
	ErrSuperseded = errors.New("balance: response superseded")
)

type balanceClient interface {
	Balance(ctx context.Context, username string) (api.BalanceResponse, error)
}

// Recorder 记录余额拉取失败，可为空。
type Recorder interface {
	RecordBalanceFailure(ctx context.Context, username string, err error)
}

// Sync 负责轮询与按需刷新余额，是唯一可以写入快照的组件。
type Sync struct {
	client   balanceClient
	interval time.Duration
	recorder Recorder
	logger   *zap.Logger

	mu       sync.Mutex
	identity string
	epoch    uint64
	issued   uint64
	applied  uint64
	snapshot *Snapshot
	failing  bool
	sessCtx  context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

// NewSync 创建余额同步器。
func NewSync(client balanceClient, interval time.Duration, recorder Recorder, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Sync{
		client:   client,
		interval: interval,
		recorder: recorder,
		logger:   logger,
		subs:     make(map[int]chan struct{}),
	}
}

// SessionStarted 实现 session.Observer。
func (s *Sync) SessionStarted(identity string) {
	s.Start(identity)
}

// SessionEnded 实现 session.Observer。
func (s *Sync) SessionEnded() {
	s.Stop()
}

// Start 为指定身份启动轮询：立即拉取一次，此后按固定间隔拉取。
// 已有的轮询会先被停止；切换身份时旧快照被清空。
func (s *Sync) Start(identity string) {
	if identity == "" {
		s.Stop()
		return
	}

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	if s.identity != identity {
		s.snapshot = nil
		s.applied = s.issued
	}
	s.identity = identity
	s.epoch++
	s.failing = false
	ctx, newCancel := context.WithCancel(context.Background())
	newDone := make(chan struct{})
	s.sessCtx, s.cancel, s.done = ctx, newCancel, newDone
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.logger.Info("余额轮询已启动", zap.String("username", identity), zap.Duration("interval", s.interval))
	go s.loop(ctx, identity, newDone)
	s.notify()
}

// Stop 停止轮询并清空快照。进行中的请求被取消，迟到的结果一律丢弃。
func (s *Sync) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	wasActive := s.identity != ""
	s.sessCtx, s.cancel, s.done = nil, nil, nil
	s.identity = ""
	s.epoch++
	s.snapshot = nil
	s.applied = s.issued
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if wasActive {
		s.logger.Info("余额轮询已停止")
	}
	s.notify()
}

// RefreshNow 绕过定时器立即拉取一次。
func (s *Sync) RefreshNow(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()
	if identity == "" {
		return Snapshot{}, ErrNoSession
	}
	return s.Fetch(ctx, identity)
}

// Fetch 拉取一次余额。成功时原子替换快照；失败时保留旧快照，只记录日志。
// 请求绑定到当前会话，会话结束时随之取消。
func (s *Sync) Fetch(ctx context.Context, identity string) (Snapshot, error) {
	s.mu.Lock()
	if identity == "" || identity != s.identity || s.sessCtx == nil {
		s.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	epoch := s.epoch
	sessCtx := s.sessCtx
	s.issued++
	seq := s.issued
	s.mu.Unlock()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sessCtx, cancel)
	defer stop()

	if reqCtx.Err() != nil {
		return Snapshot{}, ErrSuperseded
	}

	resp, err := s.client.Balance(reqCtx, identity)
	if err != nil {
		s.handleFailure(ctx, identity, epoch, err)
		return Snapshot{}, fmt.Errorf("balance: 拉取余额失败: %w", err)
	}

	snap := Snapshot{
		Cash:      resp.Cash,
		Stocks:    resp.Stocks,
		FetchedAt: time.Now().UTC(),
	}.clone()

	s.mu.Lock()
	if epoch != s.epoch || seq < s.applied {
		s.mu.Unlock()
		s.logger.Debug("丢弃过期的余额响应", zap.String("username", identity), zap.Uint64("seq", seq))
		return Snapshot{}, ErrSuperseded
	}
	s.snapshot = &snap
	s.applied = seq
	recovered := s.failing
	s.failing = false
	s.mu.Unlock()

	if recovered {
		s.logger.Info("余额拉取已恢复", zap.String("username", identity))
	}
	s.logger.Debug("余额快照已更新",
		zap.String("username", identity),
		zap.Float64("cash", snap.Cash),
		zap.Int("positions", len(snap.Stocks)),
	)
	s.notify()

	return snap.clone(), nil
}

// Snapshot 返回当前快照的副本，尚未成功拉取或已注销时 ok=false。
func (s *Sync) Snapshot() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return Snapshot{}, false
	}
	return s.snapshot.clone(), true
}

// Subscribe 返回快照变化通知（合并发送），以及取消订阅函数。
func (s *Sync) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Sync) loop(ctx context.Context, identity string, done chan struct{}) {
	defer close(done)

	s.poll(ctx, identity)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx, identity)
		}
	}
}

func (s *Sync) poll(ctx context.Context, identity string) {
	if ctx.Err() != nil {
		return
	}
	_, _ = s.Fetch(ctx, identity)
}

func (s *Sync) handleFailure(ctx context.Context, identity string, epoch uint64, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Debug("余额请求已取消", zap.String("username", identity))
		return
	}

	s.mu.Lock()
	current := epoch == s.epoch
	first := current && !s.failing
	if current {
		s.failing = true
	}
	s.mu.Unlock()

	if !first {
		s.logger.Debug("余额拉取仍然失败", zap.String("username", identity), zap.Error(err))
		return
	}

	s.logger.Warn("余额拉取失败，保留旧快照",
		zap.String("username", identity),
		zap.Bool("timeout", api.IsTimeout(err)),
		zap.Error(err),
	)
	if s.recorder != nil {
		s.recorder.RecordBalanceFailure(context.WithoutCancel(ctx), identity, err)
	}
}

func (s *Sync) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
