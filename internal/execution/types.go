package execution

import (
	"encoding/json"
	"time"

	"hft-terminal/internal/order"
)

// Result 为一次提交的摘要。
type Result struct {
	Request     order.Request
	Response    json.RawMessage
	Status      string
	SubmittedAt time.Time
	Refreshed   bool
}
