package state

import (
	"github.com/charmbracelet/log"
	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortLocalized sorts strings with collation of given IETF BCP 47 language
// tag. System locale is used when tag is empty.
func sortLocalized(list []string, lang string) {
	collate.New(sortLanguage(lang)).SortStrings(list)
}

func sortLanguage(lang string) language.Tag {
	langTag := language.AmericanEnglish

	if lang != "" {
		if parsedTag, err := language.Parse(lang); err == nil {
			langTag = parsedTag
		} else {
			log.Warnf("invalid locale, fallback to %s: %s", langTag, err)
		}
	} else if lang, err := locale.GetLocale(); err == nil {
		if parsedTag, err := language.Parse(lang); err == nil {
			langTag = parsedTag
			log.Debugf("detected sort locale: %s", langTag)
		}
	}

	return langTag
}
