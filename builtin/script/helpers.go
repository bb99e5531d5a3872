package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/go-lua"

	"github.com/agentstation/operation"
)

// setupSandbox creates a safe Lua environment.
func setupSandbox(l *lua.State) {
	lua.Require(l, "_G", lua.BaseOpen, true)
	l.Pop(1)
	lua.Require(l, "string", lua.StringOpen, true)
	l.Pop(1)
	lua.Require(l, "table", lua.TableOpen, true)
	l.Pop(1)
	lua.Require(l, "math", lua.MathOpen, true)
	l.Pop(1)

	// os keeps only clock, date, difftime and time
	lua.Require(l, "os", lua.OSOpen, true)
	l.Pop(1)
	l.Global("os")
	for _, fn := range []string{"execute", "exit", "getenv", "remove", "rename", "setlocale", "tmpname"} {
		l.PushNil()
		l.SetField(-2, fn)
	}
	l.Pop(1)

	for _, fn := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		l.PushNil()
		l.SetGlobal(fn)
	}

	l.Register("json_encode", jsonEncode)
	l.Register("json_decode", jsonDecode)
	l.Register("str_trim", strTrim)
	l.Register("str_contains", strContains)
}

// registerBot exposes the bot to the script. Input functions return true,
// or false and an error message.
func registerBot(ctx context.Context, l *lua.State, bot *operation.Context) {
	result := func(l *lua.State, err error) int {
		if err != nil {
			l.PushBoolean(false)
			l.PushString(err.Error())
			return 2
		}
		l.PushBoolean(true)
		return 1
	}
	noInput := fmt.Errorf("no input attached")

	l.Register("click", func(l *lua.State) int {
		x, y := lua.CheckInteger(l, 1), lua.CheckInteger(l, 2)
		if bot.Input == nil {
			return result(l, noInput)
		}
		return result(l, bot.Input.Click(ctx, x, y))
	})
	l.Register("press", func(l *lua.State) int {
		key := lua.CheckString(l, 1)
		if bot.Input == nil {
			return result(l, noInput)
		}
		return result(l, bot.Input.Press(ctx, key))
	})
	l.Register("swipe", func(l *lua.State) int {
		fx, fy := lua.CheckInteger(l, 1), lua.CheckInteger(l, 2)
		tx, ty := lua.CheckInteger(l, 3), lua.CheckInteger(l, 4)
		ms := lua.CheckInteger(l, 5)
		if bot.Input == nil {
			return result(l, noInput)
		}
		return result(l, bot.Input.Swipe(ctx, fx, fy, tx, ty, time.Duration(ms)*time.Millisecond))
	})
	l.Register("screenshot", func(l *lua.State) int {
		f, err := bot.Screenshot(ctx)
		if err != nil {
			l.PushNil()
			l.PushString(err.Error())
			return 2
		}
		pushValue(l, f.Labels)
		return 1
	})
	l.Register("label", func(l *lua.State) int {
		v, ok := bot.LastFrame().Label(lua.CheckString(l, 1))
		if !ok {
			l.PushNil()
			return 1
		}
		pushValue(l, v)
		return 1
	})
	l.Register("get", func(l *lua.State) int {
		v, ok := bot.State.Get(ctx, lua.CheckString(l, 1))
		if !ok {
			l.PushNil()
			return 1
		}
		pushValue(l, v)
		return 1
	})
	l.Register("set", func(l *lua.State) int {
		key := lua.CheckString(l, 1)
		return result(l, bot.State.Set(ctx, key, pullValue(l, 2)))
	})
	l.Register("log", func(l *lua.State) int {
		bot.Logger.Info(ctx, lua.CheckString(l, 1), "source", "lua")
		return 0
	})
}

// pushValue converts a Go value to Lua.
func pushValue(l *lua.State, v any) {
	switch val := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(val)
	case int:
		l.PushInteger(val)
	case int64:
		l.PushInteger(int(val))
	case uint64:
		l.PushInteger(int(val))
	case float64:
		l.PushNumber(val)
	case string:
		l.PushString(val)
	case operation.Status:
		l.PushString(string(val))
	case time.Duration:
		l.PushInteger(int(val.Milliseconds()))
	case []any:
		l.NewTable()
		for i, item := range val {
			l.PushInteger(i + 1)
			pushValue(l, item)
			l.SetTable(-3)
		}
	case map[string]any:
		l.NewTable()
		for k, item := range val {
			l.PushString(k)
			pushValue(l, item)
			l.SetTable(-3)
		}
	default:
		// round-trip through JSON so structs and typed slices become tables
		data, err := json.Marshal(val)
		if err != nil {
			l.PushNil()
			return
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			l.PushNil()
			return
		}
		pushValue(l, generic)
	}
}

// pullValue converts a Lua value to Go.
func pullValue(l *lua.State, idx int) any {
	switch l.TypeOf(idx) {
	case lua.TypeBoolean:
		return l.ToBoolean(idx)
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		return n
	case lua.TypeString:
		s, _ := l.ToString(idx)
		return s
	case lua.TypeTable:
		l.PushValue(idx)

		isArray := true
		maxIndex := 0
		l.PushNil()
		for l.Next(-2) {
			if l.TypeOf(-2) != lua.TypeNumber {
				isArray = false
				l.Pop(2)
				break
			}
			n, _ := l.ToNumber(-2)
			if i := int(n); i > maxIndex {
				maxIndex = i
			}
			l.Pop(1)
		}

		if isArray && maxIndex > 0 {
			arr := make([]any, maxIndex)
			for i := 1; i <= maxIndex; i++ {
				l.PushInteger(i)
				l.Table(-2)
				arr[i-1] = pullValue(l, -1)
				l.Pop(1)
			}
			l.Pop(1)
			return arr
		}

		obj := make(map[string]any)
		l.PushNil()
		for l.Next(-2) {
			key, _ := l.ToString(-2)
			obj[key] = pullValue(l, -1)
			l.Pop(1)
		}
		l.Pop(1)
		return obj
	default:
		return nil
	}
}

func jsonEncode(l *lua.State) int {
	data, err := json.Marshal(pullValue(l, 1))
	if err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2
	}
	l.PushString(string(data))
	return 1
}

func jsonDecode(l *lua.State) int {
	var value any
	if err := json.Unmarshal([]byte(lua.CheckString(l, 1)), &value); err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2
	}
	pushValue(l, value)
	return 1
}

func strTrim(l *lua.State) int {
	l.PushString(strings.TrimSpace(lua.CheckString(l, 1)))
	return 1
}

func strContains(l *lua.State) int {
	l.PushBoolean(strings.Contains(lua.CheckString(l, 1), lua.CheckString(l, 2)))
	return 1
}
