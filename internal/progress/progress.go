// Package progress carries fire-and-forget progress updates from the
// crawlers and the executor to whoever is watching.
package progress

import "sync"

// Update is one progress event. Zero-valued counters are omitted.
type Update struct {
	Progress       int    `json:"progress"` // 0-100
	Message        string `json:"message"`
	PagesFound     int    `json:"pagesFound,omitempty"`
	LinksFound     int    `json:"linksFound,omitempty"`
	EndpointsFound int    `json:"endpointsFound,omitempty"`
	Total          int    `json:"total,omitempty"`
	Completed      int    `json:"completed,omitempty"`
	Passed         int    `json:"passed,omitempty"`
	Failed         int    `json:"failed,omitempty"`
	Healed         int    `json:"healed,omitempty"`
	CurrentTest    string `json:"currentTest,omitempty"`
}

// Sink receives updates. Report must not block the caller.
type Sink interface {
	Report(Update)
}

type discard struct{}

func (discard) Report(Update) {}

// Discard drops every update
var Discard Sink = discard{}

// OrDiscard returns s, or Discard when s is nil
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Stream is an unbounded queue drained by a single goroutine, so a slow
// handler never stalls the reporter.
type Stream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Update
	closed  bool
	done    chan struct{}
	handler func(Update)
}

// NewStream starts draining updates into handler
func NewStream(handler func(Update)) *Stream {
	s := &Stream{
		done:    make(chan struct{}),
		handler: handler,
	}
	s.cond = sync.NewCond(&s.mu)
	go s.drain()
	return s
}

// Report enqueues u. Updates after Close are dropped.
func (s *Stream) Report(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, u)
	s.cond.Signal()
}

// Close stops accepting updates and waits until the queue is flushed
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
}

func (s *Stream) drain() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, u := range batch {
			s.handler(u)
		}
	}
}

// Percent returns done/total as a percentage capped at limit
func Percent(done, total, limit int) int {
	if total <= 0 {
		return 0
	}
	p := done * 100 / total
	if p > limit {
		return limit
	}
	return p
}
