package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

//go:embed cities.json
var embeddedCities []byte

var (
	ErrEmptyCatalog = errors.New("catalog contains no names")

	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// excludedLetters can end a city name but never begin one, so they are
// skipped when deriving the continuation letter for the next move.
var excludedLetters = map[rune]bool{
	'ь': true,
	'ъ': true,
	'ы': true,
}

// Catalog is an immutable set of valid city names. Membership checks are
// case-insensitive; Names preserves the original casing and order.
type Catalog struct {
	names   []string
	members map[string]struct{}
}

// New builds a catalog from the given names, dropping case-insensitive
// duplicates while keeping first-seen casing and order.
func New(names []string) (*Catalog, error) {
	c := &Catalog{
		members: make(map[string]struct{}, len(names)),
	}

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, seen := c.members[key]; seen {
			continue
		}
		c.members[key] = struct{}{}
		c.names = append(c.names, strings.TrimSpace(name))
	}

	if len(c.names) == 0 {
		return nil, ErrEmptyCatalog
	}
	return c, nil
}

// Default returns the catalog built from the embedded city dataset.
func Default() *Catalog {
	defaultOnce.Do(func() {
		var names []string
		if err := json.Unmarshal(embeddedCities, &names); err != nil {
			panic(fmt.Sprintf("embedded city dataset is corrupt: %v", err))
		}
		c, err := New(names)
		if err != nil {
			panic(fmt.Sprintf("embedded city dataset is unusable: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads a custom city list from a JSON file of strings.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read city list: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse city list %s: %w", path, err)
	}

	c, err := New(names)
	if err != nil {
		return nil, fmt.Errorf("city list %s: %w", path, err)
	}
	return c, nil
}

// Exists reports whether name belongs to the catalog, ignoring case.
func (c *Catalog) Exists(name string) bool {
	_, ok := c.members[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ContinuationLetter scans name from its end and returns the first letter
// outside the excluded set, lower-cased. If every letter is excluded, the
// final letter is returned unconditionally. Empty input yields "".
// Surrounding whitespace is ignored, as in Exists and FirstLetter, so a
// padded submission can never wedge a room on an unmatchable letter.
func (c *Catalog) ContinuationLetter(name string) string {
	runes := []rune(strings.ToLower(strings.TrimSpace(name)))
	if len(runes) == 0 {
		return ""
	}

	for i := len(runes) - 1; i >= 0; i-- {
		if !excludedLetters[runes[i]] {
			return string(runes[i])
		}
	}
	return string(runes[len(runes)-1])
}

// Len returns the number of distinct names in the catalog.
func (c *Catalog) Len() int {
	return len(c.names)
}

// Names returns a copy of the catalog's names in load order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// FirstLetter returns the lower-cased first letter of name, or "" for an
// empty name. Submissions must open with the room's continuation letter.
func FirstLetter(name string) string {
	runes := []rune(strings.ToLower(strings.TrimSpace(name)))
	if len(runes) == 0 {
		return ""
	}
	return string(runes[0])
}
