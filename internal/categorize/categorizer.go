// Package categorize classifies error messages into categories by regex patterns.
package categorize

import (
	"regexp"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/mnemonic/pkg/models"
)

// Categorizer matches messages against per-category pattern lists.
// Categories are scanned in sorted name order so classification is
// deterministic even when several categories could match.
type Categorizer struct {
	mu       sync.RWMutex
	patterns map[string][]*regexp.Regexp
	names    []string // sorted category names
}

// New creates an empty categorizer. Every message categorizes to
// models.Uncategorised until Load is called.
func New() *Categorizer {
	return &Categorizer{patterns: make(map[string][]*regexp.Regexp)}
}

// Load compiles the given category patterns case-insensitively and replaces
// any previously loaded state atomically. Patterns that fail to compile are
// skipped; a category whose patterns all fail is dropped entirely.
func (c *Categorizer) Load(categories map[string][]string) {
	compiled := make(map[string][]*regexp.Regexp, len(categories))
	names := make([]string, 0, len(categories))

	for category, patterns := range categories {
		var list []*regexp.Regexp
		for _, pattern := range patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				log.Debug().Str("category", category).Str("pattern", pattern).
					Err(err).Msg("Skipping invalid category pattern")
				continue
			}
			list = append(list, re)
		}
		if len(list) > 0 {
			compiled[category] = list
			names = append(names, category)
		}
	}
	sort.Strings(names)

	c.mu.Lock()
	c.patterns = compiled
	c.names = names
	c.mu.Unlock()
}

// Categorize returns the first category (in sorted name order) with a pattern
// matching anywhere in the message, or models.Uncategorised.
func (c *Categorizer) Categorize(message string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, name := range c.names {
		for _, re := range c.patterns[name] {
			if re.MatchString(message) {
				return name
			}
		}
	}
	return models.Uncategorised
}

// Categories returns the loaded category names, sorted.
func (c *Categorizer) Categories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.names))
	copy(names, c.names)
	return names
}
