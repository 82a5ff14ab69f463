package console

import (
	"fmt"
	"strings"

	"hft-terminal/internal/auth"
	"hft-terminal/internal/order"
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdAuth
	cmdTrade
	cmdSetSymbol
	cmdSetAmount
	cmdRefresh
	cmdLogout
	cmdHelp
	cmdQuit
)

type command struct {
	kind     commandKind
	mode     auth.Mode
	username string
	action   order.Action
	symbol   *string
	amount   *string
}

const helpText = "login <user> | register <user> | buy [sym] [qty] | sell [sym] [qty] | deposit [amt] | withdraw [amt] | symbol <id> | amount <n> | refresh | logout | quit"

// parseCommand 解析一行输入。表单字段保持原始文本，数值转换推迟到提交时。
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{kind: cmdNone}, nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "login", "register":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: %s <user>", verb)
		}
		mode := auth.ModeLogin
		if verb == "register" {
			mode = auth.ModeRegister
		}
		return command{kind: cmdAuth, mode: mode, username: args[0]}, nil
	case "buy", "sell":
		if len(args) > 2 {
			return command{}, fmt.Errorf("usage: %s [sym] [qty]", verb)
		}
		action, _ := order.ParseAction(verb)
		c := command{kind: cmdTrade, action: action}
		if len(args) >= 1 {
			c.symbol = &args[0]
		}
		if len(args) == 2 {
			c.amount = &args[1]
		}
		return c, nil
	case "deposit", "withdraw":
		if len(args) > 1 {
			return command{}, fmt.Errorf("usage: %s [amt]", verb)
		}
		action, _ := order.ParseAction(verb)
		c := command{kind: cmdTrade, action: action}
		if len(args) == 1 {
			c.amount = &args[0]
		}
		return c, nil
	case "symbol", "amount":
		if len(args) != 1 {
			return command{}, fmt.Errorf("usage: %s <value>", verb)
		}
		if verb == "symbol" {
			return command{kind: cmdSetSymbol, symbol: &args[0]}, nil
		}
		return command{kind: cmdSetAmount, amount: &args[0]}, nil
	case "refresh":
		return command{kind: cmdRefresh}, nil
	case "logout":
		return command{kind: cmdLogout}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %q (type help)", verb)
	}
}
