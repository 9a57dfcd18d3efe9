package luamodule

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/SirZenith/gimme/gallery"
	lua_base "github.com/SirZenith/gimme/lua_module/base"
	lua_uri "github.com/SirZenith/gimme/lua_module/uri"
	lua "github.com/yuin/gopher-lua"
)

// RuleScriptResult is what a rule script hands back.
type RuleScriptResult struct {
	Map     gallery.GalleryMap
	Options gallery.DigOptions
}

// RunRuleScript runs a site rule script on gallery map of a page.
//
// Script sees global variables `page_uri`, `gallery_map` (thumbnail URI to
// target URI) and `options` (table with boolean fields scrape and dig). It may
// return a new gallery map table and optionally a new options table, when it
// returns nothing, the possibly modified globals are used instead.
func RunRuleScript(scriptPath string, pageURI string, m gallery.GalleryMap, options gallery.DigOptions) (RuleScriptResult, error) {
	result := RuleScriptResult{Map: m, Options: options}

	if _, err := os.Stat(scriptPath); err != nil {
		return result, fmt.Errorf("failed to access script %s: %s", scriptPath, err)
	}

	L := lua.NewState()
	defer L.Close()

	// setup modules
	updateScriptImportPath(L, scriptPath)

	L.PreloadModule("gimme", lua_base.Loader)
	L.PreloadModule("uri", lua_uri.Loader)

	// setup global variables
	L.SetGlobal("page_uri", lua.LString(pageURI))
	L.SetGlobal("gallery_map", galleryMapToTable(L, m))
	L.SetGlobal("options", digOptionsToTable(L, options))
	L.SetGlobal("fnil", L.NewFunction(func(_ *lua.LState) int { return 0 }))

	top := L.GetTop()

	// executation
	if err := L.DoFile(scriptPath); err != nil {
		return result, fmt.Errorf("rule script executation error:\n%s", err)
	}

	// return value handling
	var mapValue, optionsValue lua.LValue = lua.LNil, lua.LNil
	if L.GetTop() > top {
		mapValue = L.Get(top + 1)
	}
	if L.GetTop() > top+1 {
		optionsValue = L.Get(top + 2)
	}

	if mapValue == lua.LNil {
		mapValue = L.GetGlobal("gallery_map")
	}
	if optionsValue == lua.LNil {
		optionsValue = L.GetGlobal("options")
	}

	mapTbl, ok := mapValue.(*lua.LTable)
	if !ok {
		return result, fmt.Errorf("rule script returns %s, expecting gallery map table", mapValue.Type())
	}

	newMap, err := tableToGalleryMap(mapTbl)
	if err != nil {
		return result, err
	}
	result.Map = newMap

	if optionsTbl, ok := optionsValue.(*lua.LTable); ok {
		result.Options = tableToDigOptions(optionsTbl, options)
	}

	return result, nil
}

func galleryMapToTable(L *lua.LState, m gallery.GalleryMap) *lua.LTable {
	tbl := L.NewTable()
	for thumb, target := range m {
		tbl.RawSetString(thumb, lua.LString(target))
	}
	return tbl
}

func tableToGalleryMap(tbl *lua.LTable) (gallery.GalleryMap, error) {
	m := gallery.GalleryMap{}

	var err error
	tbl.ForEach(func(key, value lua.LValue) {
		if err != nil {
			return
		}

		thumb, ok := key.(lua.LString)
		if !ok {
			err = fmt.Errorf("invalid gallery map key type %s", key.Type())
			return
		}

		target, ok := value.(lua.LString)
		if !ok {
			err = fmt.Errorf("invalid gallery map value type %s for key %q", value.Type(), string(thumb))
			return
		}

		m[string(thumb)] = string(target)
	})

	return m, err
}

func digOptionsToTable(L *lua.LState, options gallery.DigOptions) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("scrape", lua.LBool(options.Scrape))
	tbl.RawSetString("dig", lua.LBool(options.Dig))
	return tbl
}

func tableToDigOptions(tbl *lua.LTable, fallback gallery.DigOptions) gallery.DigOptions {
	options := fallback

	if value, ok := tbl.RawGetString("scrape").(lua.LBool); ok {
		options.Scrape = bool(value)
	}
	if value, ok := tbl.RawGetString("dig").(lua.LBool); ok {
		options.Dig = bool(value)
	}

	return options
}

func updateScriptImportPath(L *lua.LState, scriptPath string) error {
	pack, ok := L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return fmt.Errorf("failed to retrive global variable `package`")
	}

	pathVal, ok := L.GetField(pack, "path").(lua.LString)
	if !ok {
		return fmt.Errorf("`path` field of `package` table is not a string")
	}

	path := string(pathVal)
	scriptDir := filepath.Dir(scriptPath)

	path += fmt.Sprintf(";%s/?.lua;%s/?/init.lua", scriptDir, scriptDir)
	L.SetField(pack, "path", lua.LString(path))

	return nil
}
