// Package translation resolves report labels from XML dictionaries, one per language.
package translation

import (
	"embed"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/giygas/tdm-reports/logging"
)

// Undefined is returned for keys missing from every dictionary
const Undefined = "undefined translation"

//go:embed dictionaries/*.xml
var embedded embed.FS

// Translator resolves a label key in one language
type Translator interface {
	Translate(key string) string
}

// Provider picks a translator for a requested language
type Provider interface {
	For(lang string) Translator
}

type xmlDictionary struct {
	XMLName  xml.Name   `xml:"dictionary"`
	Language string     `xml:"language,attr"`
	Entries  []xmlEntry `xml:"entry"`
}

type xmlEntry struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// Dictionary is the set of labels of one language
type Dictionary struct {
	tag     language.Tag
	entries map[string]string
}

// ParseDictionary reads one dictionary document
func ParseDictionary(r io.Reader) (*Dictionary, error) {
	var doc xmlDictionary
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode dictionary: %w", err)
	}
	tag, err := language.Parse(doc.Language)
	if err != nil {
		return nil, fmt.Errorf("invalid dictionary language %q: %w", doc.Language, err)
	}
	d := &Dictionary{tag: tag, entries: make(map[string]string, len(doc.Entries))}
	for _, e := range doc.Entries {
		if e.Key == "" {
			continue
		}
		d.entries[e.Key] = strings.TrimSpace(e.Value)
	}
	return d, nil
}

// Language returns the base language code, e.g. "fr"
func (d *Dictionary) Language() string {
	base, _ := d.tag.Base()
	return base.String()
}

// Lookup returns the label and whether the key exists
func (d *Dictionary) Lookup(key string) (string, bool) {
	v, ok := d.entries[key]
	return v, ok
}

func (d *Dictionary) Translate(key string) string {
	if v, ok := d.entries[key]; ok {
		return v
	}
	return Undefined
}

// Registry holds all loaded dictionaries and picks the best match for a
// requested language.
type Registry struct {
	mu       sync.RWMutex
	dicts    map[string]*Dictionary
	fallback string
	tags     []language.Tag
	matcher  language.Matcher
}

// NewRegistry loads the embedded dictionaries. defaultLang must be one of them.
func NewRegistry(defaultLang string) (*Registry, error) {
	r := &Registry{dicts: map[string]*Dictionary{}, fallback: defaultLang}

	entries, err := embedded.ReadDir("dictionaries")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded dictionaries: %w", err)
	}
	for _, e := range entries {
		f, err := embedded.Open("dictionaries/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", e.Name(), err)
		}
		d, err := ParseDictionary(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("embedded dictionary %s: %w", e.Name(), err)
		}
		r.add(d)
	}

	if _, ok := r.dicts[defaultLang]; !ok {
		return nil, fmt.Errorf("no dictionary for default language %q", defaultLang)
	}
	r.rebuildMatcher()
	return r, nil
}

// LoadDir merges every *.xml dictionary of dir over the loaded ones
func (r *Registry) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return fmt.Errorf("failed to list dictionaries in %s: %w", dir, err)
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open dictionary %s: %w", p, err)
		}
		d, err := ParseDictionary(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("dictionary %s: %w", p, err)
		}
		r.mu.Lock()
		r.add(d)
		r.mu.Unlock()
		logging.Info("Loaded dictionary", "path", p, "language", d.Language(), "entries", len(d.entries))
	}
	r.mu.Lock()
	r.rebuildMatcher()
	r.mu.Unlock()
	return nil
}

// add merges d into an existing dictionary of the same language. Caller holds mu.
func (r *Registry) add(d *Dictionary) {
	lang := d.Language()
	existing, ok := r.dicts[lang]
	if !ok {
		r.dicts[lang] = d
		return
	}
	for k, v := range d.entries {
		existing.entries[k] = v
	}
}

// rebuildMatcher puts the fallback language first so it wins on no match. Caller holds mu.
func (r *Registry) rebuildMatcher() {
	langs := make([]string, 0, len(r.dicts))
	for lang := range r.dicts {
		if lang != r.fallback {
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	langs = append([]string{r.fallback}, langs...)

	r.tags = r.tags[:0]
	for _, lang := range langs {
		r.tags = append(r.tags, r.dicts[lang].tag)
	}
	r.matcher = language.NewMatcher(r.tags)
}

// Languages lists the available languages, the default first
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tags))
	for _, t := range r.tags {
		base, _ := t.Base()
		out = append(out, base.String())
	}
	return out
}

// For returns a translator for the requested language. Keys missing from it
// fall back to the default language.
func (r *Registry) For(lang string) Translator {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary := r.dicts[r.fallback]
	if tag, err := language.Parse(lang); err == nil {
		_, idx, conf := r.matcher.Match(tag)
		if conf != language.No {
			primary = r.dicts[r.languageAt(idx)]
		}
	}
	return &chain{primary: primary, fallback: r.dicts[r.fallback]}
}

func (r *Registry) languageAt(idx int) string {
	base, _ := r.tags[idx].Base()
	return base.String()
}

type chain struct {
	primary  *Dictionary
	fallback *Dictionary
}

func (c *chain) Translate(key string) string {
	if v, ok := c.primary.Lookup(key); ok {
		return v
	}
	if v, ok := c.fallback.Lookup(key); ok {
		return v
	}
	return Undefined
}

// Language returns the resolved language of the translator
func (c *chain) Language() string {
	return c.primary.Language()
}

// LanguageOf returns the language a translator resolved to, or "" when unknown
func LanguageOf(t Translator) string {
	if l, ok := t.(interface{ Language() string }); ok {
		return l.Language()
	}
	return ""
}

// Map is a fixed in-memory translator
type Map map[string]string

func (m Map) Translate(key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return Undefined
}
