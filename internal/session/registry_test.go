package session

import (
	"testing"
	"time"

	"github.com/ashureev/devchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateThenTouch(t *testing.T) {
	r := NewRegistry()
	fileA := domain.FileContext{Path: "a.go", Content: "a", Branch: "main"}

	created := r.Create("s1", "title", nil)
	assert.Equal(t, 0, created.MessageCount)

	r.TouchOnSend("s1", []domain.FileContext{fileA})

	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 1, got.MessageCount)
	assert.Equal(t, []domain.FileContext{fileA}, got.Files)
	assert.Equal(t, "title", got.Title)
}

func TestRegistryTouchReplacesFiles(t *testing.T) {
	r := NewRegistry()
	fileA := domain.FileContext{Path: "a.go", Content: "a", Branch: "main"}
	fileB := domain.FileContext{Path: "b.go", Content: "b", Branch: "main"}

	r.Create("s1", "t", []domain.FileContext{fileA})
	r.TouchOnSend("s1", []domain.FileContext{fileB})

	got, _ := r.Get("s1")
	assert.Equal(t, []domain.FileContext{fileB}, got.Files)
}

func TestRegistryTouchBumpsActivity(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	r.Create("s1", "t", nil)

	r.now = func() time.Time { return base.Add(time.Minute) }
	r.TouchOnSend("s1", nil)

	got, _ := r.Get("s1")
	assert.Equal(t, base.Add(time.Minute), got.LastActivity)
}

func TestRegistryTouchCreatesUnknown(t *testing.T) {
	r := NewRegistry()
	r.TouchOnSend("new", nil)

	got, ok := r.Get("new")
	require.True(t, ok)
	assert.Equal(t, 1, got.MessageCount)
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Create("s1", "t", []domain.FileContext{{Path: "a.go", Content: "a", Branch: "main"}})

	got, _ := r.Get("s1")
	got.Files[0].Path = "mutated"
	got.MessageCount = 99

	again, _ := r.Get("s1")
	assert.Equal(t, "a.go", again.Files[0].Path)
	assert.Equal(t, 0, again.MessageCount)
}

func TestRegistryCreateOverwrites(t *testing.T) {
	r := NewRegistry()
	r.Create("s1", "old", nil)
	r.TouchOnSend("s1", nil)
	r.Create("s1", "new", nil)

	got, _ := r.Get("s1")
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, 0, got.MessageCount)
}

func TestRegistryRestoreAndList(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Restore([]*domain.ChatSession{
		{ID: "old", LastActivity: now.Add(-time.Hour)},
		{ID: "new", LastActivity: now},
		nil,
	})

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}

func TestUnknownSession(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}
