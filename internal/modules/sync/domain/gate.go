package domain

import "sync"

// RevisionGate admits each (revision, origin) pair at most once and only
// when it is newer than everything seen before. Equal revisions from
// different origins are ordered by origin so every surface picks the same
// winner.
type RevisionGate struct {
	mu       sync.Mutex
	revision int64
	origin   string
	seen     bool
}

func newer(revision int64, origin string, thanRevision int64, thanOrigin string) bool {
	if revision != thanRevision {
		return revision > thanRevision
	}
	return origin > thanOrigin
}

// Admit records the pair and reports true when it supersedes the last one.
func (g *RevisionGate) Admit(revision int64, origin string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen && !newer(revision, origin, g.revision, g.origin) {
		return false
	}
	g.revision, g.origin, g.seen = revision, origin, true
	return true
}

// Observe records a locally published revision.
func (g *RevisionGate) Observe(revision int64, origin string) {
	g.Admit(revision, origin)
}

func (g *RevisionGate) Last() (int64, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.revision, g.origin
}
