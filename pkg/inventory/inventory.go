// Package inventory holds the registry of devices and jump hosts the
// gateway is authorized to reach, loaded at startup and mutated only
// through the management API.
package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ale/aos-ssh-gateway/pkg/gwerr"
)

// Device is a single SSH-reachable switch.
type Device struct {
	Host        string   `json:"host"`
	User        string   `json:"user"`
	Password    string   `json:"password,omitempty"`
	KeyPath     string   `json:"key_path,omitempty"`
	Port        int      `json:"port,omitempty"`
	JumpSSHName string   `json:"jump_ssh_name,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// EffectivePort returns the device's SSH port, defaulting to 22.
func (d Device) EffectivePort() int {
	if d.Port == 0 {
		return 22
	}
	return d.Port
}

// JumpHost is an intermediate SSH server the gateway tunnels device
// sessions through.
type JumpHost struct {
	Name        string `json:"name"`
	PublicHost  string `json:"public_host"`
	PublicPort  int    `json:"public_port,omitempty"`
	PrivateHost string `json:"private_host"`
	PrivatePort int    `json:"private_port,omitempty"`
	User        string `json:"user"`
	Password    string `json:"password,omitempty"`
}

func (j JumpHost) EffectivePublicPort() int {
	if j.PublicPort == 0 {
		return 22
	}
	return j.PublicPort
}

func (j JumpHost) EffectivePrivatePort() int {
	if j.PrivatePort == 0 {
		return 22
	}
	return j.PrivatePort
}

// fileFormat mirrors the two-array JSON schema documented in spec §6: a
// "jump_ssh_hosts" array and a "hosts" array. Both load and save use this
// shape, so the round-trip in Upsert/Delete never drops the jump hosts the
// way the original Python implementation's flat dataclasses.asdict list
// did (spec §9).
type fileFormat struct {
	JumpSSHHosts []JumpHost `json:"jump_ssh_hosts"`
	Hosts        []Device   `json:"hosts"`
}

// DeviceSummary is the public shape returned by GET /devices.
type DeviceSummary struct {
	Host string   `json:"host"`
	Tags []string `json:"tags"`
}

// Inventory is the read-mostly registry of devices and jump hosts. It is an
// explicit state object (constructed at startup, passed into handlers) per
// spec §9, not a package global.
type Inventory struct {
	mu      sync.RWMutex
	path    string
	devices []Device
	jumps   []JumpHost
}

// Load reads the inventory file at path and returns a populated Inventory.
// A missing file is not an error: an empty Inventory backed by that path is
// returned, matching the teacher's settings.LoadFrom behavior of tolerating
// an absent file on first run.
func Load(path string) (*Inventory, error) {
	inv := &Inventory{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return inv, nil
		}
		return nil, gwerr.Config(fmt.Sprintf("reading inventory file %s: %v", path, err))
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, gwerr.Config(fmt.Sprintf("parsing inventory file %s: %v", path, err))
	}

	for i := range ff.Hosts {
		if _, err := ff.findJump(ff.Hosts[i].JumpSSHName); ff.Hosts[i].JumpSSHName != "" && err != nil {
			return nil, gwerr.Config(fmt.Sprintf("device %s references unknown jump host %q", ff.Hosts[i].Host, ff.Hosts[i].JumpSSHName))
		}
	}

	inv.devices = ff.Hosts
	inv.jumps = ff.JumpSSHHosts
	return inv, nil
}

func (ff fileFormat) findJump(name string) (JumpHost, error) {
	for _, j := range ff.JumpSSHHosts {
		if j.Name == name {
			return j, nil
		}
	}
	return JumpHost{}, gwerr.NotFound(name, "jump host not found")
}

// Resolve looks up a device by exact host match first, then by the first
// device whose Tags contains hostOrTag. Hosts win over tags on collision.
func (inv *Inventory) Resolve(hostOrTag string) (Device, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	for _, d := range inv.devices {
		if d.Host == hostOrTag {
			return d, nil
		}
	}
	for _, d := range inv.devices {
		for _, tag := range d.Tags {
			if tag == hostOrTag {
				return d, nil
			}
		}
	}
	return Device{}, gwerr.NotFound(hostOrTag, "device not found")
}

// JumpNames returns the names of every configured jump host, regardless of
// whether it currently has a live pooled session. Used by the reaper to
// find jump hosts with zero active children (spec §4.5 step 6).
func (inv *Inventory) JumpNames() []string {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	names := make([]string, 0, len(inv.jumps))
	for _, j := range inv.jumps {
		names = append(names, j.Name)
	}
	return names
}

// FindJump looks up a jump host by name.
func (inv *Inventory) FindJump(name string) (JumpHost, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	for _, j := range inv.jumps {
		if j.Name == name {
			return j, nil
		}
	}
	return JumpHost{}, gwerr.NotFound(name, "jump host not found")
}

// List returns a summary of every device whose Tags intersect tags. A nil or
// empty tags filter returns every device.
func (inv *Inventory) List(tags []string) []DeviceSummary {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]DeviceSummary, 0, len(inv.devices))
	for _, d := range inv.devices {
		if len(tags) > 0 && !tagsIntersect(d.Tags, tags) {
			continue
		}
		out = append(out, DeviceSummary{Host: d.Host, Tags: d.Tags})
	}
	return out
}

func tagsIntersect(deviceTags, filter []string) bool {
	for _, want := range filter {
		for _, have := range deviceTags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Upsert creates or replaces a device entry by Host, then atomically
// rewrites the backing file.
func (inv *Inventory) Upsert(d Device) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	replaced := false
	for i := range inv.devices {
		if inv.devices[i].Host == d.Host {
			inv.devices[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		inv.devices = append(inv.devices, d)
	}

	return inv.rewriteLocked()
}

// Delete removes a device entry by exact host match or first tag match
// (hosts win over tags on collision, same as Resolve), then atomically
// rewrites the backing file. Existing SSH sessions for the deleted device
// are left running; the reaper closes them once idle (spec §3 Lifecycle).
func (inv *Inventory) Delete(hostOrTag string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	idx := -1
	for i, d := range inv.devices {
		if d.Host == hostOrTag {
			idx = i
			break
		}
	}
	if idx == -1 {
		for i, d := range inv.devices {
			for _, tag := range d.Tags {
				if tag == hostOrTag {
					idx = i
					break
				}
			}
			if idx != -1 {
				break
			}
		}
	}
	if idx == -1 {
		return gwerr.NotFound(hostOrTag, "device not found")
	}

	inv.devices = append(inv.devices[:idx], inv.devices[idx+1:]...)

	return inv.rewriteLocked()
}

// rewriteLocked atomically rewrites the inventory file with the current
// devices/jumps, using the same two-array schema Load reads (spec §9: the
// original's flat-list rewrite loses jump_ssh_hosts on every save). The
// caller must hold inv.mu for writing.
func (inv *Inventory) rewriteLocked() error {
	if inv.path == "" {
		return nil
	}

	ff := fileFormat{JumpSSHHosts: inv.jumps, Hosts: inv.devices}
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling inventory: %w", err)
	}

	dir := filepath.Dir(inv.path)
	tmp, err := os.CreateTemp(dir, ".aos-ssh-host-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp inventory file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp inventory file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp inventory file: %w", err)
	}

	if err := os.Rename(tmpPath, inv.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp inventory file into place: %w", err)
	}
	return nil
}
