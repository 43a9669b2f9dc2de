// Package sshpool keeps a keyed table of long-lived SSH sessions (direct or
// tunneled through a jump host), serializes command execution per session,
// probes liveness and reconnects on failure, and reaps idle sessions.
package sshpool

import (
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// SessionKey uniquely identifies a pooled session. JumpName is empty for a
// device with no jump host; for a jump host's own session IsJump is true
// and JumpName is that jump host's name (so get_or_create(jump.public_host,
// true, jump.name, ...) and the reaper's per-jump lookup use the same key
// shape, per spec §3/§4.3).
type SessionKey struct {
	Host     string
	IsJump   bool
	JumpName string
}

// SessionEntry holds one pooled SSH session. Only the goroutine holding mu
// may read or replace client, lastActivity, or the keepalive bookkeeping;
// the pool's map-level lock guards only insertion/removal of entries in
// the keyed table, never these fields (spec §3 Invariants).
type SessionEntry struct {
	mu sync.Mutex

	client       *ssh.Client
	lastActivity time.Time

	isJump   bool
	jumpName string
	jumpKey  SessionKey // parent jump's SessionKey; zero value if no jump

	stopKeepalive chan struct{}
}

// LastActivity returns the entry's last-activity timestamp. The reaper and
// the package's tests read the field directly while holding the entry's
// lock; callers of this accessor must hold (or have just released) that
// lock to get a consistent read in the presence of concurrent access.
func (e *SessionEntry) LastActivity() time.Time {
	return e.lastActivity
}
