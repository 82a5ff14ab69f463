package api

import (
	"context"
	"errors"
	"net"
)

var (
	// ErrConnection 表示请求未能完成：网络错误、超时、响应无法解析，或非 2xx 且不含 error 字段。
	ErrConnection = errors.New("api: connection failed")
)

// ServerError 表示响应体中携带了 error 字段的应用级失败。
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// IsServerError 判断错误是否来自服务端 error 字段，并返回其文本。
func IsServerError(err error) (string, bool) {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Message, true
	}
	return "", false
}

// IsTimeout 判断错误是否由请求超时引起。
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
