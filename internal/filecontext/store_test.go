package filecontext

import (
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/devchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFile() domain.FileContext {
	return domain.FileContext{
		Path:        "src/main.go",
		Content:     "package main",
		Branch:      "main",
		ContentHash: HashContent("package main"),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore()
	f := sampleFile()

	s.Update(f)
	got, ok := s.Get(f.Path, f.Branch)
	require.True(t, ok)
	assert.Equal(t, f, got)

	s.Remove(f.Path, f.Branch)
	_, ok = s.Get(f.Path, f.Branch)
	assert.False(t, ok)
}

func TestStoreKeysByBranch(t *testing.T) {
	s := NewStore()
	mainFile := sampleFile()
	devFile := mainFile
	devFile.Branch = "dev"
	devFile.Content = "package dev"

	s.Update(mainFile)
	s.Update(devFile)

	assert.Equal(t, 2, s.Len())
	got, ok := s.Get(mainFile.Path, "dev")
	require.True(t, ok)
	assert.Equal(t, "package dev", got.Content)
	assert.Len(t, s.List("main"), 1)
	assert.Len(t, s.List(""), 2)
}

func TestStoreRemoveMissingIsNoop(t *testing.T) {
	s := NewStore()
	s.Remove("nope.go", "main")
	assert.Equal(t, 0, s.Len())
}

func TestValidateEmpty(t *testing.T) {
	res := Validate(nil)
	assert.Equal(t, ValidationResult{Valid: false, Errors: []string{"No files provided for context"}}, res)

	res = Validate([]domain.FileContext{})
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"No files provided for context"}, res.Errors)
}

func TestValidateTooLarge(t *testing.T) {
	f := sampleFile()
	f.Content = strings.Repeat("a", domain.MaxFileContentChars+1)

	res := Validate([]domain.FileContext{f})
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "too large")
}

func TestValidateAtLimit(t *testing.T) {
	f := sampleFile()
	f.Content = strings.Repeat("a", domain.MaxFileContentChars)

	res := Validate([]domain.FileContext{f})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	files := []domain.FileContext{
		{Path: "", Content: "", Branch: ""},
		{Path: "ok.go", Content: "x", Branch: "main"},
		{Path: "b.go", Content: "x", Branch: ""},
	}

	res := Validate(files)
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 4)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := sampleFile()
			f.Path = strings.Repeat("x", i+1)
			for j := 0; j < 100; j++ {
				s.Update(f)
				s.Get(f.Path, f.Branch)
				s.List("")
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, s.Len())
}
