package console

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"hft-terminal/internal/auth"
	"hft-terminal/internal/balance"
	"hft-terminal/internal/execution"
	"hft-terminal/internal/order"
)

type fakeSession struct {
	identity string
	cleared  bool
}

func (f *fakeSession) Identity() (string, bool) { return f.identity, f.identity != "" }
func (f *fakeSession) Clear(context.Context)    { f.identity = ""; f.cleared = true }

type fakeStatus struct{ msg string }

func (f *fakeStatus) Get() (string, time.Time) { return f.msg, time.Time{} }

type fakeAuth struct {
	session *fakeSession
	calls   []string
}

func (f *fakeAuth) Authenticate(_ context.Context, username string, mode auth.Mode) (auth.Result, error) {
	f.calls = append(f.calls, string(mode)+":"+username)
	f.session.identity = username
	return auth.Result{Identity: username}, nil
}

type submitted struct {
	action   order.Action
	symbolID float64
	amount   float64
}

type fakeTrader struct {
	calls []submitted
}

func (f *fakeTrader) Execute(context.Context, order.Request) (execution.Result, error) {
	return execution.Result{}, nil
}

func (f *fakeTrader) Submit(_ context.Context, action order.Action, symbolID, amount float64) (execution.Result, error) {
	f.calls = append(f.calls, submitted{action, symbolID, amount})
	return execution.Result{}, nil
}

type fakeBalances struct {
	snap      balance.Snapshot
	ok        bool
	refreshes int
}

func (f *fakeBalances) Snapshot() (balance.Snapshot, bool)    { return f.snap, f.ok }
func (f *fakeBalances) Subscribe() (<-chan struct{}, func()) { return make(chan struct{}), func() {} }
func (f *fakeBalances) RefreshNow(context.Context) (balance.Snapshot, error) {
	f.refreshes++
	return f.snap, nil
}

type fixture struct {
	session  *fakeSession
	auth     *fakeAuth
	trader   *fakeTrader
	balances *fakeBalances
	model    model
}

func newFixture(identity string) *fixture {
	sess := &fakeSession{identity: identity}
	f := &fixture{
		session:  sess,
		auth:     &fakeAuth{session: sess},
		trader:   &fakeTrader{},
		balances: &fakeBalances{},
	}
	f.model = newModel(context.Background(), Deps{
		Session:  sess,
		Status:   &fakeStatus{},
		Auth:     f.auth,
		Trader:   f.trader,
		Balances: f.balances,
	}, make(chan struct{}))
	return f
}

// enter 输入一行并执行回车产生的异步命令。
func (f *fixture) enter(t *testing.T, line string) {
	t.Helper()
	var next tea.Model = f.model
	for _, r := range line {
		if r == ' ' {
			next, _ = next.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		next, _ = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		if msg := cmd(); msg != nil {
			next, _ = next.Update(msg)
		}
	}
	f.model = next.(model)
}

func TestModel_LoginThenBuyUsesFormFields(t *testing.T) {
	f := newFixture("")

	f.enter(t, "login alice")
	if len(f.auth.calls) != 1 || f.auth.calls[0] != "login:alice" {
		t.Fatalf("unexpected auth calls %v", f.auth.calls)
	}
	if f.model.identity != "alice" {
		t.Fatalf("expected model to pick up identity, got %q", f.model.identity)
	}

	f.enter(t, "buy")
	f.enter(t, "sell 3 -4.5")
	f.enter(t, "withdraw 50")

	want := []submitted{
		{order.ActionBuy, 1, 10},
		{order.ActionSell, 3, -4.5},
		{order.ActionWithdraw, 3, 50},
	}
	if len(f.trader.calls) != len(want) {
		t.Fatalf("unexpected submissions %+v", f.trader.calls)
	}
	for i := range want {
		if f.trader.calls[i] != want[i] {
			t.Fatalf("submission %d: got %+v want %+v", i, f.trader.calls[i], want[i])
		}
	}
}

func TestModel_TradeRequiresLogin(t *testing.T) {
	f := newFixture("")
	f.enter(t, "deposit 100")
	if len(f.trader.calls) != 0 {
		t.Fatalf("expected no submission without session")
	}
	if !strings.Contains(f.model.hint, "login required") {
		t.Fatalf("unexpected hint %q", f.model.hint)
	}
}

func TestModel_RefreshAndLogout(t *testing.T) {
	f := newFixture("alice")
	f.enter(t, "refresh")
	if f.balances.refreshes != 1 {
		t.Fatalf("expected one manual refresh, got %d", f.balances.refreshes)
	}
	f.enter(t, "logout")
	if !f.session.cleared || f.model.identity != "" {
		t.Fatalf("expected session cleared")
	}
}

func TestModel_ViewRendersHoldings(t *testing.T) {
	f := newFixture("alice")
	f.balances.snap = balance.Snapshot{Cash: 1234567.5, Stocks: map[string]float64{"2": 5, "1": 10}}
	f.balances.ok = true
	next, _ := f.model.Update(snapshotMsg{})
	view := next.(model).View()

	for _, want := range []string{"$1,234,567.5", "SYM_ID::1", "SYM_ID::2", "10 UNITS"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q\n%s", want, view)
		}
	}
}

func TestParseCommand(t *testing.T) {
	c, err := parseCommand("REGISTER bob")
	if err != nil || c.kind != cmdAuth || c.mode != auth.ModeRegister || c.username != "bob" {
		t.Fatalf("unexpected parse %+v err=%v", c, err)
	}
	if _, err := parseCommand("login"); err == nil {
		t.Fatalf("expected usage error")
	}
	if _, err := parseCommand("short 1 2"); err == nil {
		t.Fatalf("expected unknown command error")
	}
	c, err = parseCommand("deposit 25")
	if err != nil || c.action != order.ActionDeposit || c.amount == nil || *c.amount != "25" {
		t.Fatalf("unexpected parse %+v err=%v", c, err)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		-1234.25:  "-1,234.25",
		1000000.5: "1,000,000.5",
		0.125:     "0.125",
		-12345678: "-12,345,678",
	}
	for in, want := range cases {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%v) = %q want %q", in, got, want)
		}
	}
}
