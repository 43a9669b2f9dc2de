package sshpool

import (
	"errors"
	"testing"

	"github.com/ale/aos-ssh-gateway/pkg/gwerr"
)

func TestAuthMethods_NoCredentialsErrors(t *testing.T) {
	_, err := authMethods("10.0.0.1:22", "", "")
	if err == nil {
		t.Fatal("authMethods() with neither password nor key path should error")
	}
	var gerr *gwerr.GatewayError
	if !errors.As(err, &gerr) || gerr.Stage != gwerr.StageNoCredentials {
		t.Errorf("authMethods() error = %v, want a no-credentials GatewayError", err)
	}
}

func TestAuthMethods_PrefersPassword(t *testing.T) {
	methods, err := authMethods("10.0.0.1:22", "secret", "/does/not/matter")
	if err != nil {
		t.Fatalf("authMethods() failed: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("authMethods() returned %d methods, want 1", len(methods))
	}
}

func TestAuthMethods_KeyFileMissingErrors(t *testing.T) {
	_, err := authMethods("10.0.0.1:22", "", "/nonexistent/key")
	if err == nil {
		t.Fatal("authMethods() with an unreadable key path should error")
	}
}

func TestDialDirect_ConnectionRefused(t *testing.T) {
	_, err := dialDirect("127.0.0.1", 1, "u", "p", "", directKeepalive)
	if err == nil {
		t.Fatal("dialDirect() to a closed port should error")
	}
	var gerr *gwerr.GatewayError
	if !errors.As(err, &gerr) {
		t.Fatalf("dialDirect() error = %v, want a *gwerr.GatewayError", err)
	}
}

func TestDialDirect_AuthFailureClassifiedAsAuth(t *testing.T) {
	fake := newFakeSSHServer(t, "u", "p", nil)
	host, port := fake.host()

	_, err := dialDirect(host, port, "u", "wrong-password", "", directKeepalive)
	if err == nil {
		t.Fatal("dialDirect() with a wrong password should error")
	}
	var gerr *gwerr.GatewayError
	if !errors.As(err, &gerr) || !errors.Is(gerr.Kind, gwerr.ErrAuth) {
		t.Errorf("dialDirect() wrong-password error = %v, want ErrAuth", err)
	}
}
