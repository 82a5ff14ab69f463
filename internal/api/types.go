package api

const (
	// PathLogin 登录接口。
	PathLogin = "/login"
	// PathRegister 注册接口。
	PathRegister = "/register"
	// PathBalance 余额查询接口，{username} 为路径参数。
	PathBalance = "/balance/{username}"
	// PathTrade 交易接口。
	PathTrade = "/trade"
)

// Credentials 为登录/注册请求体。
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// AuthResponse 为登录/注册成功响应。UserID 保留服务端原始 JSON 表示。
type AuthResponse struct {
	UserID string
}

// BalanceResponse 为余额查询成功响应。
type BalanceResponse struct {
	Cash   float64            `json:"cash"`
	Stocks map[string]float64 `json:"stocks"`
}
