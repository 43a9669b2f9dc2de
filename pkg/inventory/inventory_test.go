package inventory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeInventoryFile(t *testing.T, path string, ff fileFormat) {
	t.Helper()
	data, err := json.Marshal(ff)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	inv, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load() on missing file returned error: %v", err)
	}
	if len(inv.devices) != 0 || len(inv.jumps) != 0 {
		t.Error("Load() on missing file should return an empty Inventory")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() with invalid JSON should error")
	}
}

func TestLoad_UnknownJumpReferenceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.json")
	writeInventoryFile(t, path, fileFormat{
		Hosts: []Device{{Host: "10.0.0.1", User: "u", Password: "p", JumpSSHName: "missing"}},
	})
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail when a device references an unknown jump host")
	}
}

func TestResolve_HostThenTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.json")
	writeInventoryFile(t, path, fileFormat{
		Hosts: []Device{
			{Host: "10.0.0.1", User: "u", Password: "p", Tags: []string{"edge-1"}},
			{Host: "edge-1", User: "u", Password: "p"},
		},
	})
	inv, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	dev, err := inv.Resolve("edge-1")
	if err != nil {
		t.Fatalf("Resolve(edge-1) failed: %v", err)
	}
	if dev.Host != "edge-1" {
		t.Errorf("Resolve(edge-1) host match should win over tag match, got host %q", dev.Host)
	}

	dev, err = inv.Resolve("10.0.0.1")
	if err != nil {
		t.Fatalf("Resolve(10.0.0.1) failed: %v", err)
	}
	if dev.Host != "10.0.0.1" {
		t.Errorf("Resolve(10.0.0.1) = %q", dev.Host)
	}

	if _, err := inv.Resolve("nope"); err == nil {
		t.Error("Resolve() of an unknown host/tag should error")
	}
}

func TestUpsertAndDelete_RoundTripsBothArrays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.json")
	writeInventoryFile(t, path, fileFormat{
		JumpSSHHosts: []JumpHost{{Name: "jump1", PublicHost: "203.0.113.1", PrivateHost: "10.0.0.254", User: "j"}},
		Hosts:        []Device{{Host: "10.0.0.1", User: "u", Password: "p"}},
	})
	inv, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if err := inv.Upsert(Device{Host: "10.0.0.2", User: "u", Password: "p"}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload after Upsert failed: %v", err)
	}
	if len(reloaded.jumps) != 1 {
		t.Errorf("Upsert() must not drop jump_ssh_hosts on rewrite, got %d jumps", len(reloaded.jumps))
	}
	if len(reloaded.devices) != 2 {
		t.Errorf("expected 2 devices after Upsert, got %d", len(reloaded.devices))
	}

	if err := inv.Delete("10.0.0.1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	reloaded, err = Load(path)
	if err != nil {
		t.Fatalf("reload after Delete failed: %v", err)
	}
	if len(reloaded.devices) != 1 {
		t.Errorf("expected 1 device after Delete, got %d", len(reloaded.devices))
	}
	if len(reloaded.jumps) != 1 {
		t.Errorf("Delete() must not drop jump_ssh_hosts on rewrite, got %d jumps", len(reloaded.jumps))
	}

	if err := inv.Delete("nope"); err == nil {
		t.Error("Delete() of an unknown host/tag should error")
	}
}

func TestList_FiltersByTagIntersection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.json")
	writeInventoryFile(t, path, fileFormat{
		Hosts: []Device{
			{Host: "10.0.0.1", Tags: []string{"edge", "ny"}},
			{Host: "10.0.0.2", Tags: []string{"core"}},
		},
	})
	inv, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	all := inv.List(nil)
	if len(all) != 2 {
		t.Errorf("List(nil) should return all devices, got %d", len(all))
	}

	edge := inv.List([]string{"edge"})
	if len(edge) != 1 || edge[0].Host != "10.0.0.1" {
		t.Errorf("List([edge]) = %+v", edge)
	}
}

func TestFindJumpAndJumpNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.json")
	writeInventoryFile(t, path, fileFormat{
		JumpSSHHosts: []JumpHost{
			{Name: "jump1", PublicHost: "203.0.113.1", PrivateHost: "10.0.0.254", User: "j"},
			{Name: "jump2", PublicHost: "203.0.113.2", PrivateHost: "10.0.1.254", User: "j"},
		},
	})
	inv, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	names := inv.JumpNames()
	if len(names) != 2 {
		t.Errorf("JumpNames() = %v, want 2 entries", names)
	}

	if _, err := inv.FindJump("jump1"); err != nil {
		t.Errorf("FindJump(jump1) failed: %v", err)
	}
	if _, err := inv.FindJump("nope"); err == nil {
		t.Error("FindJump() of an unknown name should error")
	}
}

func TestEffectivePorts(t *testing.T) {
	d := Device{}
	if d.EffectivePort() != 22 {
		t.Errorf("Device.EffectivePort() default = %d, want 22", d.EffectivePort())
	}
	d.Port = 2222
	if d.EffectivePort() != 2222 {
		t.Errorf("Device.EffectivePort() = %d, want 2222", d.EffectivePort())
	}

	j := JumpHost{}
	if j.EffectivePublicPort() != 22 || j.EffectivePrivatePort() != 22 {
		t.Error("JumpHost effective ports should default to 22")
	}
}
