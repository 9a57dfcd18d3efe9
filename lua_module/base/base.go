package base

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"
)

func Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), exports)

	L.Push(mod)

	return 1
}

var exports = map[string]lua.LGFunction{
	"match":       match,
	"replace":     replace,
	"replace_all": replaceAll,
	"has_suffix":  hasSuffix,
	"log_info":    logInfo,
	"log_warn":    logWarn,
}

// compile compiles pattern at given argument position, raises Lua error on
// failure.
func compile(L *lua.LState, n int) *regexp.Regexp {
	pattern := L.CheckString(n)

	re, err := regexp.Compile(pattern)
	if err != nil {
		L.RaiseError("invalid pattern %q: %s", pattern, err)
		return nil
	}

	return re
}

// match(s, pattern) returns list of submatches, or nil when nothing matches.
func match(L *lua.LState) int {
	s := L.CheckString(1)
	re := compile(L, 2)

	groups := re.FindStringSubmatch(s)
	if groups == nil {
		L.Push(lua.LNil)
		return 1
	}

	tbl := L.NewTable()
	for _, group := range groups {
		tbl.Append(lua.LString(group))
	}
	L.Push(tbl)

	return 1
}

// replace(s, pattern, new) replaces first match only.
func replace(L *lua.LState) int {
	s := L.CheckString(1)
	re := compile(L, 2)
	repl := L.CheckString(3)

	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		L.Push(lua.LString(s))
		return 1
	}

	expanded := re.ExpandString(nil, repl, s, loc)
	L.Push(lua.LString(s[:loc[0]] + string(expanded) + s[loc[1]:]))

	return 1
}

func replaceAll(L *lua.LState) int {
	s := L.CheckString(1)
	re := compile(L, 2)
	repl := L.CheckString(3)

	L.Push(lua.LString(re.ReplaceAllString(s, repl)))

	return 1
}

func hasSuffix(L *lua.LState) int {
	s := strings.ToLower(L.CheckString(1))

	cnt := L.GetTop()
	for i := 2; i <= cnt; i++ {
		if strings.HasSuffix(s, strings.ToLower(L.CheckString(i))) {
			L.Push(lua.LTrue)
			return 1
		}
	}

	L.Push(lua.LFalse)

	return 1
}

func logInfo(L *lua.LState) int {
	log.Info(L.CheckString(1))
	return 0
}

func logWarn(L *lua.LState) int {
	log.Warn(L.CheckString(1))
	return 0
}
