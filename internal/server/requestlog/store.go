// Package requestlog keeps a bounded in-memory log of handled HTTP
// requests for the operations view of the dashboard.
package requestlog

import (
	"strings"
	"sync"
	"time"
)

const (
	defaultCapacity = 1000
	defaultLimit    = 100
	maxLimit        = 1000
)

// Entry is one handled request.
type Entry struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Query      string        `json:"query,omitempty"`
	Status     int           `json:"status"`
	Duration   time.Duration `json:"duration"`
	DurationMS float64       `json:"duration_ms"`
	BytesIn    int64         `json:"bytes_in"`
	BytesOut   int64         `json:"bytes_out"`
	ClientIP   string        `json:"client_ip"`
	UserAgent  string        `json:"user_agent,omitempty"`
	UserID     string        `json:"user_id,omitempty"`
}

// Store is a fixed-capacity ring buffer; the oldest entry is overwritten
// once the buffer fills.
type Store struct {
	mu   sync.RWMutex
	ring []Entry
	next int
	size int
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Store{ring: make([]Entry, capacity)}
}

func (s *Store) Add(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring[s.next] = entry
	s.next = (s.next + 1) % len(s.ring)
	if s.size < len(s.ring) {
		s.size++
	}
}

// FilterOptions narrows a List call. Zero values mean "no filter".
type FilterOptions struct {
	Method            string
	Path              string
	ExcludePathPrefix string
	Status            int
	MinStatus         int
	MaxStatus         int
	UserID            string
	Since             time.Time
	Until             time.Time
	Limit             int
	Offset            int
}

func (o *FilterOptions) match(e *Entry) bool {
	switch {
	case o.Method != "" && e.Method != o.Method:
		return false
	case o.Path != "" && e.Path != o.Path:
		return false
	case o.ExcludePathPrefix != "" && strings.HasPrefix(e.Path, o.ExcludePathPrefix):
		return false
	case o.UserID != "" && e.UserID != o.UserID:
		return false
	case o.Status != 0 && e.Status != o.Status:
		return false
	case o.MinStatus != 0 && e.Status < o.MinStatus:
		return false
	case o.MaxStatus != 0 && e.Status > o.MaxStatus:
		return false
	case !o.Since.IsZero() && e.Timestamp.Before(o.Since):
		return false
	case !o.Until.IsZero() && e.Timestamp.After(o.Until):
		return false
	}
	return true
}

// ListResult is a page of matching entries plus the unpaginated total.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// List returns matching entries newest-first.
func (s *Store) List(opts FilterOptions) ListResult {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}

	s.mu.RLock()
	matched := make([]Entry, 0, s.size)
	for i := 1; i <= s.size; i++ {
		e := &s.ring[(s.next-i+len(s.ring))%len(s.ring)]
		if opts.match(e) {
			matched = append(matched, *e)
		}
	}
	s.mu.RUnlock()

	total := len(matched)
	start := min(opts.Offset, total)
	end := min(start+opts.Limit, total)

	return ListResult{
		Entries: matched[start:end],
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.ring)
	s.next = 0
	s.size = 0
}

// Stats summarizes buffer occupancy.
type Stats struct {
	Capacity int `json:"capacity"`
	Count    int `json:"count"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Capacity: len(s.ring), Count: s.size}
}
