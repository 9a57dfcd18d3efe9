package uri

import (
	"net/url"
	"path"

	lua "github.com/yuin/gopher-lua"
)

func Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), exports)

	L.Push(mod)

	return 1
}

var exports = map[string]lua.LGFunction{
	"parse":   parse,
	"resolve": resolve,

	"join":      join,
	"split":     split,
	"split_ext": splitExt,
	"dirname":   dirname,
	"basename":  basename,
	"ext":       ext,
}

// parse returns table with fields scheme, host, path, query, fragment. On
// failure nil and error message are returned.
func parse(L *lua.LState) int {
	raw := L.CheckString(1)

	u, err := url.Parse(raw)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	tbl := L.NewTable()
	tbl.RawSetString("scheme", lua.LString(u.Scheme))
	tbl.RawSetString("host", lua.LString(u.Host))
	tbl.RawSetString("path", lua.LString(u.Path))
	tbl.RawSetString("query", lua.LString(u.RawQuery))
	tbl.RawSetString("fragment", lua.LString(u.Fragment))

	L.Push(tbl)

	return 1
}

// resolve resolves reference URI against base URI.
func resolve(L *lua.LState) int {
	base := L.CheckString(1)
	ref := L.CheckString(2)

	baseURL, err := url.Parse(base)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LString(baseURL.ResolveReference(refURL).String()))

	return 1
}

func join(L *lua.LState) int {
	cnt := L.GetTop()
	parts := []string{}

	for i := 1; i <= cnt; i++ {
		parts = append(parts, L.CheckString(i))
	}

	L.Push(lua.LString(path.Join(parts...)))

	return 1
}

func split(L *lua.LState) int {
	dir, file := path.Split(L.CheckString(1))
	L.Push(lua.LString(dir))
	L.Push(lua.LString(file))
	return 2
}

func splitExt(L *lua.LState) int {
	target := L.CheckString(1)
	extension := path.Ext(target)
	L.Push(lua.LString(target[:len(target)-len(extension)]))
	L.Push(lua.LString(extension))
	return 2
}

func dirname(L *lua.LState) int {
	L.Push(lua.LString(path.Dir(L.CheckString(1))))
	return 1
}

func basename(L *lua.LState) int {
	L.Push(lua.LString(path.Base(L.CheckString(1))))
	return 1
}

func ext(L *lua.LState) int {
	L.Push(lua.LString(path.Ext(L.CheckString(1))))
	return 1
}
