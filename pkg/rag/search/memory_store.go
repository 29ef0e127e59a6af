package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryStore is a lexical stand-in for the vector index. Every query returns the k
// best-scoring blobs, zero-score blobs included, in a stable order.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []document
}

type document struct {
	raw    string
	tokens map[string]int
}

func NewMemoryStore(blobs ...string) *MemoryStore {
	s := &MemoryStore{}
	s.Add(blobs...)
	return s
}

// LoadDir indexes every *.txt file in dir. Blobs are separated by blank lines.
func LoadDir(dir string) (*MemoryStore, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	s := NewMemoryStore()
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		s.Add(SplitBlobs(string(content))...)
	}
	return s, nil
}

// SplitBlobs cuts a listing file into blobs on blank lines.
func SplitBlobs(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var blobs []string
	for _, block := range strings.Split(content, "\n\n") {
		if b := strings.TrimSpace(block); b != "" {
			blobs = append(blobs, b)
		}
	}
	return blobs
}

func (s *MemoryStore) Add(blobs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range blobs {
		s.docs = append(s.docs, document{raw: b, tokens: counts(tokenize(b))})
	}
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Blobs returns every indexed blob in insertion order.
func (s *MemoryStore) Blobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.raw
	}
	return out
}

func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearch, err)
	}
	if k <= 0 {
		return nil, nil
	}

	terms := tokenize(query)

	s.mu.RLock()
	type scored struct {
		idx   int
		score int
	}
	ranked := make([]scored, len(s.docs))
	for i, d := range s.docs {
		score := 0
		for _, t := range terms {
			score += d.tokens[t]
		}
		ranked[i] = scored{idx: i, score: score}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = s.docs[ranked[i].idx].raw
	}
	s.mu.RUnlock()

	return out, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"are": true, "you": true, "something": true, "some": true, "want": true, "like": true,
}

func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func counts(tokens []string) map[string]int {
	m := make(map[string]int, len(tokens))
	for _, t := range tokens {
		m[t]++
	}
	return m
}
