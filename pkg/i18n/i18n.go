// Package i18n holds the UI and API message tables.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// Default is the language used when none is requested.
const Default = "ar"

//go:embed locales/*.json
var localeFS embed.FS

var (
	loadOnce sync.Once
	tables   map[string]map[string]string
	matcher  language.Matcher
	tags     []string
)

func load() {
	tables = make(map[string]map[string]string)
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		panic(fmt.Sprintf("i18n: read locales: %v", err))
	}
	for _, e := range entries {
		data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("i18n: read %s: %v", e.Name(), err))
		}
		var table map[string]string
		if err := json.Unmarshal(data, &table); err != nil {
			panic(fmt.Sprintf("i18n: parse %s: %v", e.Name(), err))
		}
		tables[strings.TrimSuffix(e.Name(), ".json")] = table
	}

	// Default first so the matcher falls back to it.
	tags = []string{Default}
	for lang := range tables {
		if lang != Default {
			tags = append(tags, lang)
		}
	}
	sort.Strings(tags[1:])
	supported := make([]language.Tag, 0, len(tags))
	for _, t := range tags {
		supported = append(supported, language.Make(t))
	}
	matcher = language.NewMatcher(supported)
}

// T returns the message for key in lang, falling back to English and then
// to the key itself.
func T(lang, key string) string {
	loadOnce.Do(load)
	if msg, ok := tables[normalize(lang)][key]; ok {
		return msg
	}
	if msg, ok := tables["en"][key]; ok {
		return msg
	}
	return key
}

// All returns a copy of the table for lang. Unknown languages yield an
// empty map.
func All(lang string) map[string]string {
	loadOnce.Do(load)
	src := tables[normalize(lang)]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Languages lists the supported language codes, default first.
func Languages() []string {
	loadOnce.Do(load)
	return append([]string(nil), tags...)
}

// Supported reports whether lang has a message table.
func Supported(lang string) bool {
	loadOnce.Do(load)
	_, ok := tables[normalize(lang)]
	return ok
}

// Direction returns "rtl" for right-to-left scripts and "ltr" otherwise.
func Direction(lang string) string {
	switch normalize(lang) {
	case "ar", "he", "fa", "ur":
		return "rtl"
	}
	return "ltr"
}

// Match picks the best supported language for an Accept-Language header.
func Match(acceptLanguage string) string {
	loadOnce.Do(load)
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(prefs...)
	if conf == language.No {
		return Default
	}
	return tags[idx]
}

func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if base, _, ok := strings.Cut(lang, "-"); ok {
		return base
	}
	return lang
}
