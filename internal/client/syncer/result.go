package syncer

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/client/models"
)

type EntryKind string

const (
	KindAdd    EntryKind = "add"
	KindUpdate EntryKind = "update"
	KindDelete EntryKind = "delete"
)

// EntryError reports one queue entry that could not be pushed.
type EntryError struct {
	Kind EntryKind
	ID   models.Identifier
	Err  error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e EntryError) Unwrap() error { return e.Err }

// Result summarizes one or more reconciliation passes.
type Result struct {
	Added   int
	Updated int
	Deleted int
	// Deferred counts entries left queued because the remote was unreachable.
	Deferred int
	// Offline is set when any remote call failed for connectivity reasons.
	Offline bool

	// Errors holds entries rejected or failed locally during the pass.
	Errors []EntryError
	// Blocked holds entries skipped because an earlier pass saw them rejected.
	Blocked []EntryError

	Pulled  bool
	PullErr error

	Passes     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pushed is the number of entries confirmed by the remote.
func (r Result) Pushed() int {
	return r.Added + r.Updated + r.Deleted
}

func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// merge folds a later pass into r. Counters accumulate; state that only the
// latest pass can know (deferred, blocked, pull outcome) is taken from next.
func (r *Result) merge(next Result) {
	r.Added += next.Added
	r.Updated += next.Updated
	r.Deleted += next.Deleted
	r.Deferred = next.Deferred
	r.Offline = next.Offline
	r.Errors = append(r.Errors, next.Errors...)

	seen := make(map[models.Identifier]bool, len(r.Errors))
	for _, e := range r.Errors {
		seen[e.ID] = true
	}
	r.Blocked = nil
	for _, b := range next.Blocked {
		if !seen[b.ID] {
			r.Blocked = append(r.Blocked, b)
		}
	}

	r.Pulled = next.Pulled
	r.PullErr = next.PullErr
	r.Passes += next.Passes
	r.FinishedAt = next.FinishedAt
}
