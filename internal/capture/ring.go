package capture

import (
	"sync"
	"time"
)

// Exchange is one recorded provider round-trip.
type Exchange struct {
	Time     time.Time `json:"time"`
	Strategy Strategy  `json:"strategy"`
	Kind     string    `json:"kind"` // answers, choices, field
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Filled   int       `json:"filled"`
}

// ExchangeLog is a bounded ring of recent provider exchanges, owned by the
// orchestrator. Entries are evicted by count and by age.
type ExchangeLog struct {
	mu      sync.Mutex
	entries []Exchange
	maxLen  int
	maxAge  time.Duration
	now     func() time.Time
}

// NewExchangeLog creates a log capped at maxLen entries, dropping anything
// older than maxAge. Non-positive bounds fall back to defaults.
func NewExchangeLog(maxLen int, maxAge time.Duration) *ExchangeLog {
	if maxLen <= 0 {
		maxLen = 50
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &ExchangeLog{maxLen: maxLen, maxAge: maxAge, now: time.Now}
}

// Append records an exchange and prunes.
func (l *ExchangeLog) Append(e Exchange) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = l.now()
	}
	l.entries = append(l.entries, e)
	l.prune()
}

// Recent returns a copy of the retained exchanges, oldest first.
func (l *ExchangeLog) Recent() []Exchange {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune()
	out := make([]Exchange, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *ExchangeLog) prune() {
	cutoff := l.now().Add(-l.maxAge)
	i := 0
	for i < len(l.entries) && l.entries[i].Time.Before(cutoff) {
		i++
	}
	l.entries = l.entries[i:]
	if len(l.entries) > l.maxLen {
		l.entries = l.entries[len(l.entries)-l.maxLen:]
	}
}
