package luamodule

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/SirZenith/gimme/gallery"
)

func runScript(t *testing.T, script string, m gallery.GalleryMap) (RuleScriptResult, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rule.lua")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatalf("failed to write script: %s", err)
	}

	return RunRuleScript(path, "http://example.org/gallery/7", m, gallery.DefaultDigOptions())
}

func TestRuleScriptModifiesGlobals(t *testing.T) {
	result, err := runScript(t, `
local uri = require "uri"

local parsed = uri.parse(page_uri)
for thumb, target in pairs(gallery_map) do
	gallery_map[thumb] = uri.resolve("http://" .. parsed.host .. "/", target)
end
options.dig = false
`, gallery.GalleryMap{"t": "/img/a.jpg"})
	if err != nil {
		t.Fatalf("script failed: %s", err)
	}

	want := gallery.GalleryMap{"t": "http://example.org/img/a.jpg"}
	if !reflect.DeepEqual(result.Map, want) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", result.Map, want)
	}

	if result.Options != (gallery.DigOptions{Scrape: true, Dig: false}) {
		t.Errorf("unexpected options %+v", result.Options)
	}
}

func TestRuleScriptFiltersEntries(t *testing.T) {
	result, err := runScript(t, `
local gimme = require "gimme"

local result = {}
for thumb, target in pairs(gallery_map) do
	if gimme.has_suffix(target, ".jpg", ".jpeg") then
		result[thumb] = target
	end
end
return result
`, gallery.GalleryMap{"a": "http://x.com/a.JPG", "b": "http://x.com/b.gif"})
	if err != nil {
		t.Fatalf("script failed: %s", err)
	}

	want := gallery.GalleryMap{"a": "http://x.com/a.JPG"}
	if !reflect.DeepEqual(result.Map, want) {
		t.Errorf("output:\n\t%v\nwant:\n\t%v", result.Map, want)
	}
}

func TestRuleScriptBadReturn(t *testing.T) {
	if _, err := runScript(t, `return 42`, gallery.GalleryMap{}); err == nil {
		t.Errorf("expected error for non-table return value")
	}

	if _, err := runScript(t, `error("boom")`, gallery.GalleryMap{}); err == nil {
		t.Errorf("expected error for failing script")
	}
}
