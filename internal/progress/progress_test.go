package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStreamDeliversInOrder(t *testing.T) {
	var got []int
	s := NewStream(func(u Update) {
		got = append(got, u.Progress)
	})
	for i := 0; i < 100; i++ {
		s.Report(Update{Progress: i})
	}
	s.Close()

	assert.Len(t, got, 100)
	for i, p := range got {
		assert.Equal(t, i, p)
	}
}

func TestStreamReportDoesNotBlockOnSlowHandler(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	count := 0
	s := NewStream(func(Update) {
		<-release
		mu.Lock()
		count++
		mu.Unlock()
	})

	start := time.Now()
	for i := 0; i < 1000; i++ {
		s.Report(Update{Message: "tick"})
	}
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	s.Close()
	assert.Equal(t, 1000, count)
}

func TestStreamDropsAfterClose(t *testing.T) {
	n := 0
	s := NewStream(func(Update) { n++ })
	s.Close()
	s.Report(Update{})
	s.Close()
	assert.Equal(t, 0, n)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(1, 0, 95))
	assert.Equal(t, 30, Percent(3, 10, 95))
	assert.Equal(t, 95, Percent(10, 10, 95))
	assert.Equal(t, 100, Percent(10, 10, 100))
}

func TestOrDiscard(t *testing.T) {
	assert.Equal(t, Discard, OrDiscard(nil))
	s := NewStream(func(Update) {})
	defer s.Close()
	assert.Equal(t, Sink(s), OrDiscard(s))
}
