package sshpool

import (
	"context"
	"time"

	"github.com/ale/aos-ssh-gateway/pkg/gwlog"
)

// DefaultIdleTimeout is the default non-jump session idle threshold (spec
// §4.5).
const DefaultIdleTimeout = 300 * time.Second

// DefaultReapInterval is the default reaper wake-up cadence (spec §4.5).
const DefaultReapInterval = 30 * time.Second

// Reaper periodically closes idle non-jump sessions, then closes jump
// sessions left with no remaining children, per spec §4.5.
type Reaper struct {
	pool        *Pool
	interval    time.Duration
	idleTimeout time.Duration
}

// NewReaper builds a Reaper over pool with the given wake-up interval and
// idle threshold. Zero values fall back to the spec defaults.
func NewReaper(pool *Pool, interval, idleTimeout time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Reaper{pool: pool, interval: interval, idleTimeout: idleTimeout}
}

// Run wakes up every r.interval and reaps idle sessions until ctx is
// canceled. A panic from any single pass is recovered and logged so the
// reaper never brings down the process (spec §7: "runtime errors never
// bring down the reaper; it logs and continues").
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runPassSafely()
		}
	}
}

func (r *Reaper) runPassSafely() {
	defer func() {
		if rec := recover(); rec != nil {
			gwlog.Logger.Errorf("reaper pass panicked: %v", rec)
		}
	}()
	r.runPass()
}

// runPass implements spec §4.5's six steps: count non-jump children per
// jump name, close idle non-jump sessions, then close any configured jump
// host whose child count (counted in this same pass) is zero.
func (r *Reaper) runPass() {
	keys := r.pool.snapshotKeys()

	childrenPerJump := make(map[string]int)
	var idleNonJump []SessionKey

	now := time.Now()
	for _, key := range keys {
		// A key present in the table is a live child of its jump regardless
		// of whether its entry is busy right now — the key shape alone
		// carries JumpName, so counting it doesn't require the entry lock.
		// This keeps a busy child counted even when its TryLock below fails,
		// so the jump it depends on is never reaped out from under an
		// in-flight command (spec §3: "a reaper never closes a jump session
		// that has at least one living non-jump child in the map").
		if !key.IsJump && key.JumpName != "" {
			childrenPerJump[key.JumpName]++
		}

		entry, ok := r.pool.entry(key)
		if !ok {
			continue
		}

		// Non-blocking acquire: a busy entry is, by definition, not idle,
		// so it's simply skipped for idle-marking on this pass (spec §4.5
		// step 3).
		if !entry.mu.TryLock() {
			continue
		}

		if !key.IsJump && entry.client != nil && now.Sub(entry.lastActivity) > r.idleTimeout {
			idleNonJump = append(idleNonJump, key)
		}

		entry.mu.Unlock()
	}

	for _, key := range idleNonJump {
		gwlog.WithSessionKey(key.Host, key.IsJump, key.JumpName).Infof("reaping idle session (idle > %s)", r.idleTimeout)
		r.pool.Close(key)
	}

	for _, jumpName := range r.pool.inv.JumpNames() {
		if childrenPerJump[jumpName] > 0 {
			continue
		}
		jump, err := r.pool.inv.FindJump(jumpName)
		if err != nil {
			continue
		}
		jumpKey := SessionKey{Host: jump.PublicHost, IsJump: true, JumpName: jump.Name}
		if _, ok := r.pool.entry(jumpKey); !ok {
			continue
		}
		gwlog.WithSessionKey(jumpKey.Host, true, jumpKey.JumpName).Info("reaping orphaned jump session (zero children this pass)")
		r.pool.Close(jumpKey)
	}
}
