package repository

import (
	"fmt"
	"time"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/domain"
)

// DefaultCommitClaimTTL is how long a commit claim holds a session before it
// counts as abandoned.
const DefaultCommitClaimTTL = 15 * time.Minute

// SessionOption configures a session repository.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	claimTTL time.Duration
	now      func() time.Time
}

// WithCommitClaimTTL sets how long a commit claim stays valid. A claim older
// than ttl no longer blocks abort, mapping, preview or a new claim.
func WithCommitClaimTTL(ttl time.Duration) SessionOption {
	return func(o *sessionOptions) {
		if ttl > 0 {
			o.claimTTL = ttl
		}
	}
}

// WithClock replaces time.Now when deciding whether a claim has expired.
func WithClock(now func() time.Time) SessionOption {
	return func(o *sessionOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func newSessionOptions(opts []SessionOption) sessionOptions {
	o := sessionOptions{claimTTL: DefaultCommitClaimTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// claimHeld reports whether session carries a commit claim that has not
// expired yet.
func (o sessionOptions) claimHeld(session domain.ImportSession) bool {
	if session.CommitClaimedAt == nil {
		return false
	}
	return o.now().Sub(*session.CommitClaimedAt) < o.claimTTL
}

// visible hides an expired claim from callers.
func (o sessionOptions) visible(session domain.ImportSession) domain.ImportSession {
	if session.CommitClaimedAt != nil && !o.claimHeld(session) {
		session.CommitClaimedAt = nil
	}
	return session
}

// claimFree is the SQL predicate for "no live commit claim"; param is the
// placeholder number carrying the TTL in seconds.
func claimFree(param int) string {
	return fmt.Sprintf("(commit_claimed_at IS NULL OR commit_claimed_at <= now() - make_interval(secs => $%d))", param)
}
