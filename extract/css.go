package extract

import (
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// cssURLs returns all url() values found in a style sheet or, when
// `isInline` is true, in content of a style attribute.
func cssURLs(cssText string, isInline bool) []string {
	reader := strings.NewReader(cssText)
	input := parse.NewInput(reader)
	parser := css.NewParser(input, isInline)

	result := []string{}
outter:
	for {
		gt, _, _ := parser.Next()

		switch gt {
		case css.ErrorGrammar:
			break outter
		case css.DeclarationGrammar, css.CustomPropertyGrammar, css.AtRuleGrammar, css.BeginAtRuleGrammar:
			for _, val := range parser.Values() {
				if val.TokenType != css.URLToken {
					continue
				}

				if uri := unwrapCSSURL(string(val.Data)); uri != "" {
					result = append(result, uri)
				}
			}
		}
	}

	return result
}

// unwrapCSSURL turns `url("x.png")` into `x.png`.
func unwrapCSSURL(token string) string {
	open := strings.Index(token, "(")
	if open < 0 {
		return ""
	}

	value := strings.TrimSuffix(token[open+1:], ")")
	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"'`)

	return strings.TrimSpace(value)
}
