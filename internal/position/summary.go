package position

import (
	"sort"
	"strconv"
	"time"

	"hft-terminal/internal/balance"
)

// Holding 表示单个标的的持仓数量。
type Holding struct {
	SymbolID string
	Quantity float64
}

// Summary 为余额快照的展示视图。
type Summary struct {
	Cash      float64
	Holdings  []Holding
	FetchedAt time.Time
	Loaded    bool
}

// Summarize 把快照转换为按 symbol 排序的持仓列表。数字 ID 按数值排序，其余按字典序排在后面。
func Summarize(snap balance.Snapshot, ok bool) Summary {
	if !ok {
		return Summary{}
	}

	holdings := make([]Holding, 0, len(snap.Stocks))
	for id, qty := range snap.Stocks {
		holdings = append(holdings, Holding{SymbolID: id, Quantity: qty})
	}
	sort.Slice(holdings, func(i, j int) bool {
		return lessSymbol(holdings[i].SymbolID, holdings[j].SymbolID)
	})

	return Summary{
		Cash:      snap.Cash,
		Holdings:  holdings,
		FetchedAt: snap.FetchedAt,
		Loaded:    true,
	}
}

// Empty 表示没有任何持仓。
func (s Summary) Empty() bool {
	return len(s.Holdings) == 0
}

func lessSymbol(a, b string) bool {
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if na != nb {
			return na < nb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
