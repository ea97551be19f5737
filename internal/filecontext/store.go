// Package filecontext keeps the repository files attached to chat requests.
package filecontext

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/ashureev/devchat/internal/domain"
)

// ErrNoFiles is the validation message for an empty file set.
const ErrNoFiles = "No files provided for context"

// ValidationResult lists every defect found in a set of files.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Store maps (branch, path) to file content.
type Store struct {
	mu    sync.RWMutex
	files map[string]domain.FileContext
}

// NewStore creates an empty file context store.
func NewStore() *Store {
	return &Store{files: make(map[string]domain.FileContext)}
}

// Update inserts or overwrites the file keyed by branch:path.
func (s *Store) Update(file domain.FileContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.Key()] = file
}

// Remove deletes the file; it is a no-op when absent.
func (s *Store) Remove(path, branch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, domain.FileKey(path, branch))
}

// Get returns the file for path on branch.
func (s *Store) Get(path, branch string) (domain.FileContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[domain.FileKey(path, branch)]
	return f, ok
}

// List returns the files on branch sorted by path. An empty branch lists all.
func (s *Store) List(branch string) []domain.FileContext {
	s.mu.RLock()
	out := make([]domain.FileContext, 0, len(s.files))
	for _, f := range s.files {
		if branch == "" || f.Branch == branch {
			out = append(out, f)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Branch != out[j].Branch {
			return out[i].Branch < out[j].Branch
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Len returns the number of stored files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Validate checks files against the store's transmission rules.
func (s *Store) Validate(files []domain.FileContext) ValidationResult {
	return Validate(files)
}

// Validate collects every rule violation in files; it never short-circuits.
func Validate(files []domain.FileContext) ValidationResult {
	if len(files) == 0 {
		return ValidationResult{Valid: false, Errors: []string{ErrNoFiles}}
	}

	var errs []string
	for i, f := range files {
		name := f.Path
		if name == "" {
			name = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Sprintf("File path is required for file %s", name))
		}
		if f.Content == "" {
			errs = append(errs, fmt.Sprintf("File content is required for %s", name))
		}
		if f.Branch == "" {
			errs = append(errs, fmt.Sprintf("Branch is required for %s", name))
		}
		if n := utf8.RuneCountInString(f.Content); n > domain.MaxFileContentChars {
			errs = append(errs, fmt.Sprintf("File %s is too large (%d characters, max %d)", name, n, domain.MaxFileContentChars))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// HashContent returns the hex sha256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
