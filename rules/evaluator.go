package rules

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/SirZenith/gimme/common"
	"github.com/SirZenith/gimme/gallery"
	"github.com/SirZenith/gimme/harvest"
	luamodule "github.com/SirZenith/gimme/lua_module"
	"github.com/charmbracelet/log"
)

type compiledAction struct {
	Action
	pattern *Pattern
}

type compiledProcessing struct {
	Processing
	match   *Pattern
	actions []compiledAction
}

type compiledMessage struct {
	Message
	match *Pattern
}

type compiledBlessing struct {
	Blessing
	match *Pattern
}

// Evaluator applies a rule spec to pages.
type Evaluator struct {
	config   Config
	knownBad *Pattern

	messages    []compiledMessage
	processings []compiledProcessing
	blessings   []compiledBlessing

	scriptDir string
}

// NewEvaluator compiles all patterns in spec. Relative script paths are
// resolved against `baseDir`.
func NewEvaluator(spec Spec, baseDir string) (*Evaluator, error) {
	spec.fillDefaults()

	e := &Evaluator{
		config:    spec.Config,
		scriptDir: baseDir,
	}

	var err error
	if e.knownBad, err = ParsePattern(spec.Config.KnownBadImgRegex); err != nil {
		return nil, fmt.Errorf("invalid known bad image regex: %s", err)
	}

	for i, msg := range spec.Messages {
		match, err := ParsePattern(msg.Match)
		if err != nil {
			return nil, fmt.Errorf("message #%d: %s", i+1, err)
		}
		e.messages = append(e.messages, compiledMessage{msg, match})
	}

	for i, proc := range spec.Processings {
		match, err := ParsePattern(proc.Match)
		if err != nil {
			return nil, fmt.Errorf("processing #%d: %s", i+1, err)
		}

		compiled := compiledProcessing{Processing: proc, match: match}
		for j, action := range proc.Actions {
			if err := checkAction(action); err != nil {
				return nil, fmt.Errorf("processing #%d action #%d: %s", i+1, j+1, err)
			}

			pattern, err := ParsePattern(action.Match)
			if err != nil {
				return nil, fmt.Errorf("processing #%d action #%d: %s", i+1, j+1, err)
			}
			compiled.actions = append(compiled.actions, compiledAction{action, pattern})
		}

		e.processings = append(e.processings, compiled)
	}

	for i, blessing := range spec.Blessings {
		match, err := ParsePattern(blessing.Match)
		if err != nil {
			return nil, fmt.Errorf("blessing #%d: %s", i+1, err)
		}
		e.blessings = append(e.blessings, compiledBlessing{blessing, match})
	}

	return e, nil
}

// LoadEvaluator reads rule file and builds evaluator from it. Empty path gives
// evaluator of default spec.
func LoadEvaluator(path string) (*Evaluator, error) {
	if path == "" {
		return NewEvaluator(DefaultSpec(), "")
	}

	spec, err := ReadSpecFile(path)
	if err != nil {
		return nil, err
	}

	return NewEvaluator(spec, filepath.Dir(path))
}

func checkAction(action Action) error {
	switch action.Noun {
	case "src", "href":
	default:
		return fmt.Errorf("unknown action noun %q", action.Noun)
	}

	switch action.Verb {
	case "replace":
	default:
		return fmt.Errorf("unknown action verb %q", action.Verb)
	}

	return nil
}

func (e *Evaluator) Config() Config {
	return e.config
}

// Evaluate refines raw gallery map with the first processing matching page URI.
// Pages without matching processing get raw map back with default options.
func (e *Evaluator) Evaluate(rawMap gallery.GalleryMap, pageURI string) harvest.Evaluation {
	proc := e.findProcessing(pageURI)
	if proc == nil {
		return harvest.Evaluation{Map: rawMap.Clone(), Options: gallery.DefaultDigOptions()}
	}

	log.Debugf("processing %q matches %s", proc.Match, pageURI)

	refined := gallery.GalleryMap{}
	for thumb, target := range rawMap {
		for _, action := range proc.actions {
			switch action.Noun {
			case "src":
				thumb = action.pattern.Replace(thumb, action.New)
			case "href":
				target = action.pattern.Replace(target, action.New)
			}
		}
		refined[thumb] = target
	}

	options := gallery.DigOptions{Scrape: proc.Scrape, Dig: proc.Dig}

	if proc.Script != "" {
		scriptPath := common.ResolveRelativePath(proc.Script, e.scriptDir)

		result, err := luamodule.RunRuleScript(scriptPath, pageURI, refined.Clone(), options)
		if err != nil {
			log.Warnf("rule script %s failed, keeping action result: %s", scriptPath, err)
		} else {
			refined, options = result.Map, result.Options
		}
	}

	return harvest.Evaluation{Map: refined, Options: options}
}

func (e *Evaluator) findProcessing(pageURI string) *compiledProcessing {
	for i := range e.processings {
		if e.processings[i].match.MatchString(pageURI) {
			return &e.processings[i]
		}
	}
	return nil
}

// Describe returns probe descriptor of the first message matching page URI.
func (e *Evaluator) Describe(pageURI string) gallery.ProbeDescriptor {
	for _, msg := range e.messages {
		if !msg.match.MatchString(pageURI) {
			continue
		}

		return gallery.ProbeDescriptor{
			LinkSelector:  msg.Link,
			LinkAttr:      AttrFromProperty(msg.Href),
			ThumbSelector: msg.Thumb,
			ThumbAttr:     AttrFromProperty(msg.Src),
		}
	}

	return gallery.ProbeDescriptor{}
}

// Blessing returns zoom rule of detail page with given URI.
func (e *Evaluator) Blessing(pageURI string) (Blessing, bool) {
	for _, blessing := range e.blessings {
		if blessing.match.MatchString(pageURI) {
			blessing.Blessing.Src = AttrFromProperty(blessing.Src)
			return blessing.Blessing, true
		}
	}
	return Blessing{}, false
}

// KnownBad reports whether URI matches known bad image regex.
func (e *Evaluator) KnownBad(uri string) bool {
	return e.knownBad.MatchString(uri)
}

// AttrFromProperty converts DOM property path used in rule files into HTML
// attribute name, e.g. `dataset.fullSrc` becomes `data-full-src`.
func AttrFromProperty(property string) string {
	property = strings.TrimSpace(property)

	switch property {
	case "":
		return ""
	case "currentSrc":
		return "src"
	case "className":
		return "class"
	}

	name, ok := strings.CutPrefix(property, "dataset.")
	if !ok {
		return strings.ToLower(property)
	}

	var b strings.Builder
	b.WriteString("data-")
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}

	return b.String()
}
