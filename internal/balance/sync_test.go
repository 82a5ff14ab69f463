package balance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"hft-terminal/internal/api"
	"hft-terminal/internal/config"
)

type fakeClient struct {
	calls atomic.Int64
	fn    func(ctx context.Context, call int64, username string) (api.BalanceResponse, error)
}

func (f *fakeClient) Balance(ctx context.Context, username string) (api.BalanceResponse, error) {
	call := f.calls.Add(1)
	return f.fn(ctx, call, username)
}

type fakeRecorder struct {
	mu    sync.Mutex
	count int
}

func (r *fakeRecorder) RecordBalanceFailure(context.Context, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func okResponse(cash float64) api.BalanceResponse {
	return api.BalanceResponse{Cash: cash, Stocks: map[string]float64{"1": 10}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestFetch_FailureRetainsSnapshotAndIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	client := &fakeClient{fn: func(_ context.Context, call int64, _ string) (api.BalanceResponse, error) {
		if call == 1 {
			return okResponse(100), nil
		}
		return api.BalanceResponse{}, api.ErrConnection
	}}
	recorder := &fakeRecorder{}
	s := NewSync(client, time.Hour, recorder, zap.New(core))
	s.Start("alice")
	defer s.Stop()

	waitFor(t, func() bool { _, ok := s.Snapshot(); return ok })
	before, _ := s.Snapshot()

	for i := 0; i < 3; i++ {
		if _, err := s.RefreshNow(context.Background()); !errors.Is(err, api.ErrConnection) {
			t.Fatalf("expected connection error, got %v", err)
		}
	}

	after, ok := s.Snapshot()
	if !ok || after.Cash != before.Cash || after.Stocks["1"] != before.Stocks["1"] || !after.FetchedAt.Equal(before.FetchedAt) {
		t.Fatalf("snapshot mutated by failing fetch: before=%+v after=%+v", before, after)
	}
	if warn := logs.FilterLevelExact(zapcore.WarnLevel).Len(); warn != 1 {
		t.Fatalf("expected one warn log for the failure streak, got %d", warn)
	}
	if recorder.count != 1 {
		t.Fatalf("expected one recorded failure, got %d", recorder.count)
	}
}

func TestStart_PollsImmediatelyAndRepeatedly(t *testing.T) {
	client := &fakeClient{fn: func(context.Context, int64, string) (api.BalanceResponse, error) {
		return okResponse(5), nil
	}}
	s := NewSync(client, 10*time.Millisecond, nil, nil)
	updates, cancel := s.Subscribe()
	defer cancel()

	s.Start("alice")
	defer s.Stop()

	waitFor(t, func() bool { return client.calls.Load() >= 3 })

	select {
	case <-updates:
	default:
		t.Fatalf("expected a snapshot notification")
	}
}

func TestStop_NoFurtherFetchesAndSnapshotAbsent(t *testing.T) {
	client := &fakeClient{fn: func(_ context.Context, _ int64, username string) (api.BalanceResponse, error) {
		if username != "alice" {
			t.Errorf("unexpected username %q", username)
		}
		return okResponse(7), nil
	}}
	s := NewSync(client, 5*time.Millisecond, nil, nil)
	s.Start("alice")
	waitFor(t, func() bool { return client.calls.Load() >= 2 })

	s.Stop()
	if _, ok := s.Snapshot(); ok {
		t.Fatalf("expected snapshot cleared after Stop")
	}
	calls := client.calls.Load()

	time.Sleep(50 * time.Millisecond)
	if got := client.calls.Load(); got != calls {
		t.Fatalf("expected zero fetches after Stop, got %d more", got-calls)
	}
	if _, err := s.RefreshNow(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := s.Fetch(context.Background(), "alice"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for cleared identity, got %v", err)
	}
	if got := client.calls.Load(); got != calls {
		t.Fatalf("expected no request for cleared identity")
	}
}

func TestFetch_LateResponseAfterStopDiscarded(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	client := &fakeClient{fn: func(_ context.Context, call int64, _ string) (api.BalanceResponse, error) {
		if call == 1 {
			return okResponse(1), nil
		}
		close(entered)
		<-release
		return okResponse(999), nil
	}}
	s := NewSync(client, time.Hour, nil, nil)
	s.Start("alice")
	waitFor(t, func() bool { _, ok := s.Snapshot(); return ok })

	result := make(chan error, 1)
	go func() {
		_, err := s.RefreshNow(context.Background())
		result <- err
	}()

	<-entered
	s.Stop()
	close(release)

	if err := <-result; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if _, ok := s.Snapshot(); ok {
		t.Fatalf("late response must not resurrect the snapshot")
	}
}

func TestFetch_OlderResponseDoesNotOverwriteNewer(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	client := &fakeClient{fn: func(_ context.Context, call int64, _ string) (api.BalanceResponse, error) {
		switch call {
		case 1:
			return okResponse(0), nil
		case 2:
			close(entered)
			<-release
			return okResponse(1), nil
		default:
			return okResponse(2), nil
		}
	}}
	s := NewSync(client, time.Hour, nil, nil)
	s.Start("alice")
	defer s.Stop()
	waitFor(t, func() bool { _, ok := s.Snapshot(); return ok })

	slow := make(chan error, 1)
	go func() {
		_, err := s.RefreshNow(context.Background())
		slow <- err
	}()
	<-entered

	snap, err := s.RefreshNow(context.Background())
	if err != nil || snap.Cash != 2 {
		t.Fatalf("unexpected fast refresh %+v err=%v", snap, err)
	}

	close(release)
	if err := <-slow; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected older response superseded, got %v", err)
	}
	if current, _ := s.Snapshot(); current.Cash != 2 {
		t.Fatalf("expected newest snapshot retained, got %+v", current)
	}
}

func TestSnapshot_IsCopyOnRead(t *testing.T) {
	client := &fakeClient{fn: func(context.Context, int64, string) (api.BalanceResponse, error) {
		return okResponse(3), nil
	}}
	s := NewSync(client, time.Hour, nil, nil)
	s.Start("alice")
	defer s.Stop()
	waitFor(t, func() bool { _, ok := s.Snapshot(); return ok })

	snap, _ := s.Snapshot()
	snap.Stocks["1"] = -1

	again, _ := s.Snapshot()
	if again.Stocks["1"] != 10 {
		t.Fatalf("caller mutation leaked into stored snapshot: %+v", again)
	}
}

func TestStart_SwitchingIdentityClearsSnapshot(t *testing.T) {
	block := make(chan struct{})
	client := &fakeClient{fn: func(ctx context.Context, _ int64, username string) (api.BalanceResponse, error) {
		if username == "bob" {
			select {
			case <-block:
			case <-ctx.Done():
				return api.BalanceResponse{}, ctx.Err()
			}
		}
		return okResponse(4), nil
	}}
	s := NewSync(client, time.Hour, nil, nil)
	s.Start("alice")
	waitFor(t, func() bool { _, ok := s.Snapshot(); return ok })

	s.Start("bob")
	if _, ok := s.Snapshot(); ok {
		t.Fatalf("expected previous user's snapshot cleared on identity switch")
	}
	s.Stop()
	close(block)
}

func TestFetch_ServerErrorBodyRetainsSnapshot(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"cash": 250, "stocks": {"3": 4}}`)
			return
		}
		_, _ = io.WriteString(w, `{"error":"user not found"}`)
	}))
	defer srv.Close()

	client, err := api.NewClient(config.APIConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	s := NewSync(client, time.Hour, nil, nil)
	s.Start("alice")
	defer s.Stop()

	waitFor(t, func() bool { _, ok := s.Snapshot(); return ok })
	before, _ := s.Snapshot()

	_, err = s.RefreshNow(context.Background())
	var serverErr *api.ServerError
	if !errors.As(err, &serverErr) || serverErr.Message != "user not found" {
		t.Fatalf("expected server error, got %v", err)
	}

	after, ok := s.Snapshot()
	if !ok || after.Cash != 250 || after.Stocks["3"] != 4 || !after.FetchedAt.Equal(before.FetchedAt) {
		t.Fatalf("snapshot changed by error body: before=%+v after=%+v", before, after)
	}
}

func TestStop_AbortsInFlightRefresh(t *testing.T) {
	started := make(chan struct{})
	client := &fakeClient{fn: func(ctx context.Context, call int64, _ string) (api.BalanceResponse, error) {
		if call == 1 {
			return okResponse(1), nil
		}
		close(started)
		<-ctx.Done()
		return api.BalanceResponse{}, ctx.Err()
	}}
	s := NewSync(client, time.Hour, nil, nil)
	s.Start("alice")
	waitFor(t, func() bool { _, ok := s.Snapshot(); return ok })

	result := make(chan error, 1)
	go func() {
		_, err := s.RefreshNow(context.Background())
		result <- err
	}()
	<-started

	s.Stop()

	select {
	case err := <-result:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected canceled refresh, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("refresh not aborted by Stop")
	}
	if _, ok := s.Snapshot(); ok {
		t.Fatalf("expected snapshot cleared after Stop")
	}
}
