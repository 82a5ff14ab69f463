package balance

import "time"

// Snapshot 为最近一次成功拉取的服务端余额，只能整体替换。
type Snapshot struct {
	Cash      float64
	Stocks    map[string]float64
	FetchedAt time.Time
}

func (s Snapshot) clone() Snapshot {
	stocks := make(map[string]float64, len(s.Stocks))
	for k, v := range s.Stocks {
		stocks[k] = v
	}
	s.Stocks = stocks
	return s
}
