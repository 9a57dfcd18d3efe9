package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a compiled rule regex. Rule files write regexes either as plain
// pattern text or in `/pattern/flags` form.
type Pattern struct {
	Source string
	Global bool

	re *regexp.Regexp
}

// ParsePattern compiles a rule regex. Supported flags are i, m, s and g, where
// g makes replacement apply to every match instead of only the first one.
func ParsePattern(raw string) (*Pattern, error) {
	body, flags := raw, ""
	if len(raw) >= 2 && raw[0] == '/' {
		if end := strings.LastIndex(raw, "/"); end > 0 {
			body, flags = raw[1:end], raw[end+1:]
		}
	}

	pattern := &Pattern{Source: raw}

	inline := ""
	for _, flag := range flags {
		switch flag {
		case 'i', 'm', 's':
			if !strings.ContainsRune(inline, flag) {
				inline += string(flag)
			}
		case 'g':
			pattern.Global = true
		case 'u', 'y':
			// no equivalent in Go regex, ignored
		default:
			return nil, fmt.Errorf("unsupported regex flag %q in %q", flag, raw)
		}
	}

	if inline != "" {
		body = "(?" + inline + ")" + body
	}

	re, err := regexp.Compile(body)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %s", raw, err)
	}
	pattern.re = re

	return pattern, nil
}

func MustParsePattern(raw string) *Pattern {
	pattern, err := ParsePattern(raw)
	if err != nil {
		panic(err)
	}
	return pattern
}

func (p *Pattern) MatchString(s string) bool {
	return p.re.MatchString(s)
}

// Replace substitutes matched text with `repl`. Without g flag only the first
// match is replaced. `$1` style group references are expanded.
func (p *Pattern) Replace(s, repl string) string {
	if p.Global {
		return p.re.ReplaceAllString(s, repl)
	}

	loc := p.re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}

	expanded := p.re.ExpandString(nil, repl, s, loc)

	return s[:loc[0]] + string(expanded) + s[loc[1]:]
}

func (p *Pattern) String() string {
	return p.Source
}
