package ledger

import (
	"sync"
	"time"
)

// DefaultDuplicateWindow is how long a byte-identical resubmission is
// suppressed.
const DefaultDuplicateWindow = 15 * time.Second

// DuplicateGuard suppresses identical submissions arriving within the
// window, per tenant. It remembers only the single most recent text
// per tenant, in memory: a process restart clears it, and a duplicate
// separated by a different message is not caught.
//
// Each tenant gets its own lock so one tenant's burst never stalls
// another's.
type DuplicateGuard struct {
	window time.Duration

	mu      sync.Mutex // protects the tenants map itself
	tenants map[string]*lastSubmission
}

type lastSubmission struct {
	mu   sync.Mutex
	text string
	at   time.Time
}

func NewDuplicateGuard(window time.Duration) *DuplicateGuard {
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	return &DuplicateGuard{
		window:  window,
		tenants: make(map[string]*lastSubmission),
	}
}

func (g *DuplicateGuard) tenant(tenantID string) *lastSubmission {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.tenants[tenantID]
	if !ok {
		s = &lastSubmission{}
		g.tenants[tenantID] = s
	}
	return s
}

// IsDuplicate reports whether text repeats the tenant's previous
// submission within the window. On a duplicate the stored state is
// left untouched; otherwise (text, now) becomes the new most recent
// submission.
func (g *DuplicateGuard) IsDuplicate(tenantID, text string, now time.Time) bool {
	s := g.tenant(tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.text == text && !s.at.IsZero() && now.Sub(s.at) <= g.window {
		return true
	}
	s.text = text
	s.at = now
	return false
}
