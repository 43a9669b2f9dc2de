package sshpool

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ale/aos-ssh-gateway/pkg/gwerr"
	"github.com/ale/aos-ssh-gateway/pkg/gwlog"
	"github.com/ale/aos-ssh-gateway/pkg/inventory"
	"golang.org/x/crypto/ssh"
)

// Pool is the keyed table of live SSH sessions. It resolves jump-host
// credentials itself from inv, so callers never need to pass creator
// functions in — they only ever call GetSession/Execute/Close/CloseAll
// (spec §4.3's public contract).
type Pool struct {
	inv *inventory.Inventory

	mapMu   sync.Mutex
	entries map[SessionKey]*SessionEntry
}

// New creates an empty Pool backed by inv for device/jump-host lookups.
func New(inv *inventory.Inventory) *Pool {
	return &Pool{
		inv:     inv,
		entries: make(map[SessionKey]*SessionEntry),
	}
}

// GetSession resolves (creating if necessary) the SSH session for dev,
// first establishing the parent jump session if dev.JumpSSHName is set,
// per spec §4.3's get_session steps 1-3.
func (p *Pool) GetSession(dev inventory.Device) (*ssh.Client, error) {
	if dev.JumpSSHName == "" {
		key := SessionKey{Host: dev.Host, IsJump: false, JumpName: ""}
		return p.getOrCreate(key, func() (*ssh.Client, error) {
			return dialDirect(dev.Host, dev.EffectivePort(), dev.User, dev.Password, dev.KeyPath, directKeepalive)
		})
	}

	jump, err := p.inv.FindJump(dev.JumpSSHName)
	if err != nil {
		return nil, gwerr.NotFound(dev.JumpSSHName, fmt.Sprintf("jump host %q referenced by device %q not found", dev.JumpSSHName, dev.Host))
	}

	jumpKey := SessionKey{Host: jump.PublicHost, IsJump: true, JumpName: jump.Name}
	jumpClient, err := p.getOrCreate(jumpKey, func() (*ssh.Client, error) {
		return dialDirect(jump.PublicHost, jump.EffectivePublicPort(), jump.User, jump.Password, "", jumpKeepalive)
	})
	if err != nil {
		return nil, err
	}

	deviceKey := SessionKey{Host: dev.Host, IsJump: false, JumpName: jump.Name}
	return p.getOrCreate(deviceKey, func() (*ssh.Client, error) {
		return dialTunneled(jumpClient, jump, dev)
	}, withParent(jump.Name, jumpKey))
}

// entryOpt customizes the bookkeeping stamped on a freshly created entry.
type entryOpt func(*SessionEntry)

func withParent(jumpName string, jumpKey SessionKey) entryOpt {
	return func(e *SessionEntry) {
		e.jumpName = jumpName
		e.jumpKey = jumpKey
	}
}

// getOrCreate implements spec §4.3's get_or_create: insert-if-absent under
// the map lock, then serialize on the entry's own lock while probing an
// existing client or dialing a new one.
func (p *Pool) getOrCreate(key SessionKey, dial func() (*ssh.Client, error), opts ...entryOpt) (*ssh.Client, error) {
	p.mapMu.Lock()
	entry, ok := p.entries[key]
	if !ok {
		entry = &SessionEntry{isJump: key.IsJump, jumpName: key.JumpName}
		p.entries[key] = entry
	}
	p.mapMu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.client != nil {
		if probeLiveness(entry.client) {
			entry.lastActivity = time.Now()
			return entry.client, nil
		}
		gwlog.WithSessionKey(key.Host, key.IsJump, key.JumpName).Warn("session failed liveness probe, reconnecting")
		entry.stopKeepaliveLocked()
		entry.client.Close()
		entry.client = nil
	}

	client, err := dial()
	if err != nil {
		gwlog.WithSessionKey(key.Host, key.IsJump, key.JumpName).Errorf("session create failed: %v", err)
		return nil, err
	}

	entry.client = client
	entry.lastActivity = time.Now()
	for _, opt := range opts {
		opt(entry)
	}
	keepalive := directKeepalive
	if key.IsJump {
		keepalive = jumpKeepalive
	}
	entry.startKeepaliveLocked(keepalive)

	gwlog.WithSessionKey(key.Host, key.IsJump, key.JumpName).Info("session established")
	return client, nil
}

// probeLiveness sends a zero-payload keepalive request and reports whether
// it round-tripped successfully — the golang.org/x/crypto/ssh equivalent of
// paramiko's transport.send_ignore() liveness check (spec §9).
func probeLiveness(client *ssh.Client) bool {
	if client == nil {
		return false
	}
	_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// startKeepaliveLocked starts a background goroutine that sends a
// zero-payload keepalive on the given cadence until stopKeepaliveLocked is
// called or the client itself errors out. The caller must hold entry.mu.
func (e *SessionEntry) startKeepaliveLocked(interval time.Duration) {
	stop := make(chan struct{})
	e.stopKeepalive = stop
	client := e.client

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
					return
				}
			}
		}
	}()
}

// stopKeepaliveLocked stops the entry's keepalive goroutine, if any. The
// caller must hold entry.mu.
func (e *SessionEntry) stopKeepaliveLocked() {
	if e.stopKeepalive != nil {
		close(e.stopKeepalive)
		e.stopKeepalive = nil
	}
}

// Execute runs command on the pooled session for (host, jumpName),
// serializing against any other Execute/getOrCreate on the same session
// (spec §4.3's execute). It never establishes a session itself — GetSession
// must have been called first in the same request.
func (p *Pool) Execute(host, command, jumpName string) (stdout, stderr string, err error) {
	key := SessionKey{Host: host, IsJump: false, JumpName: jumpName}

	p.mapMu.Lock()
	entry, ok := p.entries[key]
	p.mapMu.Unlock()
	if !ok {
		return "", "", gwerr.SessionMissing(host)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.client == nil {
		return "", "", gwerr.SessionMissing(host)
	}

	session, err := entry.client.NewSession()
	if err != nil {
		return "", "", gwerr.SSHProtocol(host, "exec", err.Error())
	}
	defer session.Close()

	var outBuf, errBuf strings.Builder
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	if runErr := session.Run(command); runErr != nil {
		if _, isExit := runErr.(*ssh.ExitError); !isExit {
			// A non-ExitError means the session itself failed (pipe/transport
			// error), not just a nonzero exit status; don't tear the session
			// down here — that's the next getOrCreate probe's job (spec §4.3
			// step 6).
			return "", "", gwerr.SSHProtocol(host, "exec", runErr.Error())
		}
		// A non-zero exit status still carries real stdout/stderr; the
		// original Python implementation returns output regardless of exit
		// code, so we do too rather than treating it as a transport failure.
	}

	entry.lastActivity = time.Now()
	return strings.TrimRight(outBuf.String(), " \t\r\n"), strings.TrimRight(errBuf.String(), " \t\r\n"), nil
}

// Close closes the session for key, if present, and removes it from the
// table (spec §4.3's close).
func (p *Pool) Close(key SessionKey) {
	p.mapMu.Lock()
	entry, ok := p.entries[key]
	p.mapMu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	if entry.client != nil {
		entry.stopKeepaliveLocked()
		entry.client.Close()
		entry.client = nil
	}
	entry.mu.Unlock()

	p.mapMu.Lock()
	delete(p.entries, key)
	p.mapMu.Unlock()

	gwlog.WithSessionKey(key.Host, key.IsJump, key.JumpName).Info("session closed")
}

// CloseAll closes every pooled session. Used on graceful shutdown.
func (p *Pool) CloseAll() {
	for _, key := range p.snapshotKeys() {
		p.Close(key)
	}
}

// snapshotKeys returns the current set of keys under the map lock.
func (p *Pool) snapshotKeys() []SessionKey {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()

	keys := make([]SessionKey, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	return keys
}

// entry returns the entry for key, if present, without locking it.
func (p *Pool) entry(key SessionKey) (*SessionEntry, bool) {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()
	e, ok := p.entries[key]
	return e, ok
}
