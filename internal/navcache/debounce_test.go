package navcache

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerReplacesPendingTask(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var first, second atomic.Int32
	d.Schedule(func() { first.Add(1) })
	d.Schedule(func() { second.Add(1) })
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(1), second.Load())
	assert.False(t, d.Pending())
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Stop()

	var ran atomic.Bool
	d.Schedule(func() { ran.Store(true) })
	assert.True(t, d.Cancel())
	assert.False(t, d.Cancel())

	time.Sleep(30 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestDebouncerFlushRunsNow(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Stop()

	ran := false
	d.Schedule(func() { ran = true })
	assert.True(t, d.Flush())
	assert.True(t, ran)
	assert.False(t, d.Flush())
}

func TestDebouncerStopRefusesNewTasks(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	d.Stop()

	var ran atomic.Bool
	d.Schedule(func() { ran.Store(true) })
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.False(t, d.Pending())
}
