package worker_test

import (
	"sync"
	"testing"

	"github.com/hoppxi/nightdisplay/internal/worker"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := worker.New(nil)
	defer q.Close()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		q.Submit("append", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	q.Flush()

	assert.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.Zero(t, q.Pending())
}

func TestSubmitDoesNotBlock(t *testing.T) {
	q := worker.New(nil)
	defer q.Close()

	release := make(chan struct{})
	q.Submit("blocker", func() { <-release })

	// The worker is busy; further submissions still return at once.
	for i := 0; i < 10; i++ {
		assert.True(t, q.Submit("noop", func() {}))
	}
	assert.Equal(t, 11, q.Pending())

	close(release)
	q.Flush()
	assert.Zero(t, q.Pending())
}

func TestPanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	q := worker.New(zap.New(core))
	defer q.Close()

	ran := false
	q.Submit("boom", func() { panic("boom") })
	q.Submit("after", func() { ran = true })
	q.Flush()

	assert.True(t, ran)
	assert.Equal(t, 1, logs.FilterMessage("Task panicked").Len())
}

func TestCloseDrainsAndRejects(t *testing.T) {
	q := worker.New(nil)

	ran := 0
	for i := 0; i < 5; i++ {
		q.Submit("count", func() { ran++ })
	}
	q.Close()

	assert.Equal(t, 5, ran)
	assert.False(t, q.Submit("late", func() {}))
}
