// Package localization holds the user-visible strings of the terminal client.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
)

//go:embed locales/*.json
var bundled embed.FS

const DefaultLanguage = "en"

// Localizer maps language -> key -> text.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// New loads every <lang>.json file found at the root of fsys.
func New(fsys fs.FS) (*Localizer, error) {
	l := &Localizer{translations: make(map[string]map[string]string)}

	files, err := fs.Glob(fsys, "*.json")
	if err != nil {
		return nil, fmt.Errorf("list locale files: %w", err)
	}
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", name, err)
		}
		var strs map[string]string
		if err := json.Unmarshal(data, &strs); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", name, err)
		}
		l.translations[strings.TrimSuffix(path.Base(name), ".json")] = strs
	}
	return l, nil
}

// Bundled returns a Localizer over the locales compiled into the binary.
func Bundled() *Localizer {
	sub, err := fs.Sub(bundled, "locales")
	if err != nil {
		panic(err)
	}
	l, err := New(sub)
	if err != nil {
		panic(err)
	}
	return l
}

// Languages lists the loaded language codes.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.translations))
	for lang := range l.translations {
		out = append(out, lang)
	}
	return out
}

// GetString returns the text for key, falling back to English and then to the
// key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if v, ok := l.translations[lang][key]; ok {
		return v
	}
	if v, ok := l.translations[DefaultLanguage][key]; ok {
		return v
	}
	return key
}

// Format is GetString followed by fmt.Sprintf.
func (l *Localizer) Format(lang, key string, args ...any) string {
	return fmt.Sprintf(l.GetString(lang, key), args...)
}
