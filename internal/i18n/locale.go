package i18n

import (
	"net/http"
	"strings"
)

const DefaultLocale = "en"

var supportedLocales = map[string]struct{}{
	"en": {},
	"de": {},
}

func LocaleFromRequest(r *http.Request) string {
	if r == nil {
		return DefaultLocale
	}
	return NormalizeLocale(r.Header.Get("Accept-Language"))
}

// NormalizeLocale picks the first supported language from an Accept-Language
// header, ignoring quality weights and region subtags.
func NormalizeLocale(header string) string {
	for _, part := range strings.Split(header, ",") {
		lang := part
		if before, _, found := strings.Cut(lang, ";"); found {
			lang = before
		}
		if before, _, found := strings.Cut(lang, "-"); found {
			lang = before
		}
		lang = strings.ToLower(strings.TrimSpace(lang))
		if _, ok := supportedLocales[lang]; ok {
			return lang
		}
	}
	return DefaultLocale
}
