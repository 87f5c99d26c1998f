// Package results persists one JSON artifact per processing attempt and
// serves listings and lookups over the results directory.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"examocr/models"
)

// ErrNotFound is returned when no artifact exists under the requested name.
var ErrNotFound = errors.New("result not found")

const artifactExt = ".json"

// forbidden filename characters, stripped from derived names.
var unsafeNameRE = regexp.MustCompile(`[<>:"/\\|?*]`)

// Payload is the on-disk projection of a completed or failed attempt.
type Payload struct {
	DocID        string                  `json:"doc_id"`
	Timestamp    string                  `json:"timestamp"`
	Filename     string                  `json:"filename,omitempty"`
	DocType      string                  `json:"doc_type,omitempty"`
	OCREngine    string                  `json:"ocr_engine,omitempty"`
	Status       string                  `json:"status"`
	ParsedResult []models.QuestionRecord `json:"parsed_result,omitempty"`
	RawTextPages []string                `json:"raw_text_pages,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

// Entry is the display metadata for one listed artifact.
type Entry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Status    string `json:"status"`
	DocType   string `json:"doc_type"`
	Timestamp string `json:"timestamp"`
}

// Store is the artifact sink. Writes are best-effort: a failed write is
// logged, never raised, since the status sink is updated independently.
// A name index (kept fresh by Watch) resolves derived names instead of
// re-deriving them on reads.
type Store struct {
	dir string
	log *zap.Logger
	now func() time.Time

	mu    sync.RWMutex
	names map[string]struct{}
}

// NewStore creates the results directory if needed and indexes whatever
// artifacts it already holds.
func NewStore(dir string, log *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	s := &Store{
		dir:   dir,
		log:   log,
		now:   time.Now,
		names: make(map[string]struct{}),
	}
	if err := s.Rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save writes the artifact for one attempt and returns its derived name.
// The name is a cosmetic alias; the doc id inside the payload is the true
// key.
func (s *Store) Save(p Payload) string {
	now := s.now()
	if p.Timestamp == "" {
		p.Timestamp = now.Format(time.RFC3339)
	}
	name := deriveName(p, now)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		s.log.Warn("failed to encode result artifact", zap.String("doc_id", p.DocID), zap.Error(err))
		return name
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		s.log.Warn("failed to persist result artifact", zap.String("doc_id", p.DocID), zap.Error(err))
		return name
	}
	s.addName(name)
	return name
}

// List returns display entries for all indexed artifacts, newest-looking
// first (reverse lexicographic by filename, a proxy for recency). Corrupt
// artifacts are skipped per item.
func (s *Store) List() []Entry {
	s.mu.RLock()
	names := make([]string, 0, len(s.names))
	for n := range s.names {
		names = append(names, n)
	}
	s.mu.RUnlock()
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.log.Warn("skipping unreadable result artifact", zap.String("name", name), zap.Error(err))
			continue
		}
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			s.log.Warn("skipping corrupt result artifact", zap.String("name", name), zap.Error(err))
			continue
		}
		entries = append(entries, Entry{
			ID:        name,
			Name:      strings.TrimSuffix(name, artifactExt),
			URL:       "/api/saved-results/" + name,
			Status:    p.Status,
			DocType:   p.DocType,
			Timestamp: p.Timestamp,
		})
	}
	return entries
}

// Get returns the raw JSON content of one artifact. The extension is
// appended when the caller omits it. A missing artifact is ErrNotFound; a
// present but unparseable one is a distinct read error.
func (s *Store) Get(name string) ([]byte, error) {
	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "..") {
		return nil, ErrNotFound
	}
	if !strings.HasSuffix(name, artifactExt) {
		name += artifactExt
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read result artifact: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("corrupt result artifact %s", name)
	}
	return data, nil
}

// Rescan rebuilds the name index from the directory contents.
func (s *Store) Rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan results dir: %w", err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), artifactExt) {
			names[e.Name()] = struct{}{}
		}
	}
	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
	return nil
}

func (s *Store) addName(name string) {
	s.mu.Lock()
	s.names[name] = struct{}{}
	s.mu.Unlock()
}

func (s *Store) removeName(name string) {
	s.mu.Lock()
	delete(s.names, name)
	s.mu.Unlock()
}

// deriveName builds the artifact filename: first 30 chars of the first
// parsed question's text, else the truncated original filename, each
// stamped with the creation time; else the doc id alone. The derivation is
// best-effort and collision-prone by construction, which is why reads go
// through the index rather than re-derivation.
func deriveName(p Payload, now time.Time) string {
	stamp := now.Format("20060102_150405")
	if len(p.ParsedResult) > 0 {
		if base := sanitizeName(truncate(p.ParsedResult[0].Text, 30)); base != "" {
			return base + "_" + stamp + artifactExt
		}
	}
	if p.Filename != "" {
		base := strings.TrimSuffix(p.Filename, filepath.Ext(p.Filename))
		if base = sanitizeName(truncate(base, 30)); base != "" {
			return base + "_" + stamp + artifactExt
		}
	}
	return p.DocID + artifactExt
}

func sanitizeName(s string) string {
	return strings.TrimSpace(unsafeNameRE.ReplaceAllString(s, ""))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
