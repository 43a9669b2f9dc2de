// Package dispatch wires the inventory, command gate, and session pool
// together into the single per-request flow: resolve device, authorize
// command, acquire session, execute (spec §4.6).
package dispatch

import (
	"time"

	"github.com/ale/aos-ssh-gateway/pkg/gate"
	"github.com/ale/aos-ssh-gateway/pkg/gwerr"
	"github.com/ale/aos-ssh-gateway/pkg/gwlog"
	"github.com/ale/aos-ssh-gateway/pkg/inventory"
	"github.com/ale/aos-ssh-gateway/pkg/sshpool"
)

// Dispatcher runs one command against one device per request.
type Dispatcher struct {
	Inventory *inventory.Inventory
	Pool      *sshpool.Pool
	Gate      *gate.Gate
}

// New builds a Dispatcher over the given components.
func New(inv *inventory.Inventory, pool *sshpool.Pool, g *gate.Gate) *Dispatcher {
	return &Dispatcher{Inventory: inv, Pool: pool, Gate: g}
}

// Run resolves hostOrTag, authorizes command against the allow-list, then
// acquires (or reuses) the device's SSH session and executes it. Authorizing
// before touching the session means a denied command never causes the
// device to be contacted (spec §8 scenario 2: "device not contacted (mock
// records zero connections)"), matching the original's
// ale_aos_ssh/server.py sequencing of check_command before get_session
// (see DESIGN.md).
func (d *Dispatcher) Run(hostOrTag, command string) (stdout, stderr string, err error) {
	start := time.Now()

	dev, err := d.Inventory.Resolve(hostOrTag)
	if err != nil {
		return "", "", err
	}

	if !d.Gate.Allow(command) {
		return "", "", gwerr.Forbidden(command)
	}

	if _, err := d.Pool.GetSession(dev); err != nil {
		return "", "", err
	}

	jumpName := dev.JumpSSHName
	stdout, stderr, err = d.Pool.Execute(dev.Host, command, jumpName)

	logEntry := gwlog.WithFields(map[string]interface{}{
		"host":        dev.Host,
		"requested":   hostOrTag,
		"command":     command,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		logEntry.Warnf("command failed: %v", err)
		return "", "", err
	}
	logEntry.Debugf("command executed\n[stdout]\n%s\n[stderr]\n%s", stdout, stderr)
	return stdout, stderr, nil
}
