// Package entropy supplies random seed words that perturb the subconscious pass.
package entropy

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mindloop/internal/logging"

	"github.com/samber/lo"
)

// FallbackWords is used when the pool is empty or missing.
var FallbackWords = []string{"entropy", "spark", "mirror"}

// StarterWords seeds a fresh word file on init.
var StarterWords = []string{
	"lantern", "tide", "lattice", "ember", "compass", "orchard", "static",
	"glacier", "thread", "echo", "harbor", "prism", "fern", "circuit", "dune",
}

// Pool is a de-duplicated, order-preserving list of seed words.
type Pool struct {
	words []string
}

// NewPool builds a pool from words, dropping blanks and duplicates.
func NewPool(words []string) *Pool {
	cleaned := lo.FilterMap(words, func(w string, _ int) (string, bool) {
		w = strings.TrimSpace(w)
		return w, w != ""
	})
	return &Pool{words: lo.Uniq(cleaned)}
}

// LoadPool reads a word file. Lines may hold one word or a comma-separated
// list; blank lines and lines starting with # are skipped. A missing file
// yields an empty pool.
func LoadPool(path string) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.SubconsciousDebug("word pool %s not found, using fallback words", path)
			return NewPool(nil), nil
		}
		return nil, fmt.Errorf("failed to open word pool: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.Split(line, ",")...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word pool: %w", err)
	}

	p := NewPool(words)
	logging.Subconscious("loaded %d seed words from %s", p.Len(), path)
	return p, nil
}

// WritePool writes words to path one per line under a comment header.
func WritePool(path string, words []string) error {
	var sb strings.Builder
	sb.WriteString("# Seed words for the subconscious. One per line or comma-separated.\n")
	for _, w := range words {
		sb.WriteString(w)
		sb.WriteByte('\n')
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create word pool directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write word pool: %w", err)
	}
	return nil
}

// Len returns the number of distinct words.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.words)
}

// Words returns a copy of the pool contents in file order.
func (p *Pool) Words() []string {
	if p == nil {
		return []string{}
	}
	return append([]string{}, p.words...)
}

// Sample returns n distinct random words. Asking for at least as many words as
// the pool holds returns the whole pool shuffled. An empty pool yields
// FallbackWords.
func (p *Pool) Sample(n int) []string {
	if p.Len() == 0 {
		return append([]string{}, FallbackWords...)
	}
	if n <= 0 {
		return []string{}
	}
	if n >= len(p.words) {
		return lo.Shuffle(p.Words())
	}
	return lo.Samples(p.words, n)
}
