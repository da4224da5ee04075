package template

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"sync"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Set resolves templates by name across a list of filesystems; the first
// filesystem holding the name wins. Parsed templates are cached.
type Set struct {
	sources []fs.FS
	funcs   texttemplate.FuncMap
	mu      sync.RWMutex
	parsed  map[string]*texttemplate.Template
}

func NewSet(customFuncs texttemplate.FuncMap, sources ...fs.FS) *Set {
	funcs := DefaultFuncs()
	if customFuncs != nil {
		maps.Copy(funcs, customFuncs)
	}

	nonNil := make([]fs.FS, 0, len(sources))
	for _, src := range sources {
		if src != nil {
			nonNil = append(nonNil, src)
		}
	}

	return &Set{
		sources: nonNil,
		funcs:   funcs,
		parsed:  make(map[string]*texttemplate.Template),
	}
}

func (s *Set) Lookup(name string) (*texttemplate.Template, error) {
	s.mu.RLock()
	tmpl, ok := s.parsed[name]
	s.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	for _, src := range s.sources {
		data, err := fs.ReadFile(src, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read template file %s: %w", name, err)
		}

		tmpl, err := texttemplate.New(name).Funcs(s.funcs).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template file %s: %w", name, err)
		}

		s.mu.Lock()
		s.parsed[name] = tmpl
		s.mu.Unlock()
		return tmpl, nil
	}

	return nil, fmt.Errorf("template %s: %w", name, fs.ErrNotExist)
}

func (s *Set) Render(name string, data any) ([]byte, error) {
	tmpl, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

var strictPolicy = bluemonday.StrictPolicy()

func DefaultFuncs() texttemplate.FuncMap {
	return texttemplate.FuncMap{
		"json":      toJSON,
		"xmlescape": xmlEscape,
		"sanitize":  strictPolicy.Sanitize,
		"lower":     Lower,
	}
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return ""
	}
	return buf.String()
}

// Lower folds s to lower case. Casers keep state, so one is built per call.
func Lower(s string) string {
	return cases.Lower(language.Und).String(s)
}
