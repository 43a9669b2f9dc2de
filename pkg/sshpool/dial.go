package sshpool

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ale/aos-ssh-gateway/pkg/gwerr"
	"github.com/ale/aos-ssh-gateway/pkg/inventory"
	"golang.org/x/crypto/ssh"
)

// handshakeTimeout bounds a direct dial's TCP connect and, separately, its
// SSH handshake, per spec §4.4. A tunneled dial's handshake runs over an SSH
// channel, which has no deadlines, so it is not bounded by this timeout.
const handshakeTimeout = 10 * time.Second

// channelTimeout bounds opening a direct-tcpip channel through a jump host.
const channelTimeout = 60 * time.Second

// directKeepalive and jumpKeepalive are the transport keepalive cadences
// spec §4.4 assigns to device and jump sessions respectively. paramiko's
// Transport.set_keepalive arms this automatically at the protocol layer;
// golang.org/x/crypto/ssh has no equivalent timer, so the pool starts one
// explicitly per session (see startKeepaliveLocked in pool.go).
const (
	directKeepalive = 60 * time.Second
	jumpKeepalive   = 15 * time.Second
)

// authMethods builds the ssh.AuthMethod list for a device or jump host,
// preferring password auth (matching the original's `if password:` branch)
// and falling back to a private key file when keyPath is set. Returns a
// no-credentials GatewayError if neither is configured (spec §4.4's
// "no-credentials" error class, supplementing the original's
// `create_ssh_session` "No password or key_filename provided" path).
func authMethods(endpoint, password, keyPath string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	if keyPath != "" {
		keyData, err := os.ReadFile(keyPath)
		if err != nil {
			// Drop the *os.PathError wrapper so the key path never reaches
			// the error message.
			if pe, ok := err.(*os.PathError); ok {
				err = pe.Err
			}
			return nil, gwerr.SSHProtocol(endpoint, gwerr.StageNoCredentials, fmt.Sprintf("reading private key: %v", err))
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, gwerr.SSHProtocol(endpoint, gwerr.StageNoCredentials, fmt.Sprintf("parsing private key: %v", err))
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, gwerr.NoCredentials(endpoint)
}

// dialDirect opens a plain SSH connection to host:port with the given
// credentials. Host keys are auto-accepted (documented default, not a
// security recommendation — spec §9).
func dialDirect(host string, port int, user, password, keyPath string, keepalive time.Duration) (*ssh.Client, error) {
	endpoint := fmt.Sprintf("%s:%d", host, port)

	auth, err := authMethods(endpoint, password, keyPath)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         handshakeTimeout,
	}

	// ssh.Dial applies cfg.Timeout to the TCP connect only, so the handshake
	// is bounded here with a connection deadline, cleared once it completes.
	conn, err := net.DialTimeout("tcp", endpoint, handshakeTimeout)
	if err != nil {
		return nil, classifyDialErr(err, endpoint, gwerr.StageDeviceHandshk)
	}
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, endpoint, cfg)
	if err != nil {
		conn.Close()
		return nil, classifyDialErr(err, endpoint, gwerr.StageDeviceHandshk)
	}
	conn.SetDeadline(time.Time{})
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// directTCPIPMsg is the RFC 4254 §7.2 payload for opening a "direct-tcpip"
// channel: the destination the jump host should connect to, and the
// originator address the gateway reports itself as. The originator is
// the jump host's own private_host/private_port per spec §4.4 step 1 —
// ssh.Client.Dial does not expose control over this field, so the channel
// is opened directly with ssh.Client.OpenChannel instead.
type directTCPIPMsg struct {
	Raddr string
	Rport uint32
	Laddr string
	Lport uint32
}

// dialTunneled opens a direct-tcpip channel on jumpClient's transport to
// dev.Host:dev.Port (originating from jump's private address) and hands
// that channel to a fresh SSH client handshaking with dev's credentials,
// per spec §4.4's tunneled-SSH sequence.
func dialTunneled(jumpClient *ssh.Client, jump inventory.JumpHost, dev inventory.Device) (*ssh.Client, error) {
	endpoint := fmt.Sprintf("%s:%d", dev.Host, dev.EffectivePort())

	payload := ssh.Marshal(&directTCPIPMsg{
		Raddr: dev.Host,
		Rport: uint32(dev.EffectivePort()),
		Laddr: jump.PrivateHost,
		Lport: uint32(jump.EffectivePrivatePort()),
	})

	type openResult struct {
		channel ssh.Channel
		reqs    <-chan *ssh.Request
		err     error
	}
	resultCh := make(chan openResult, 1)
	go func() {
		channel, reqs, err := jumpClient.OpenChannel("direct-tcpip", payload)
		resultCh <- openResult{channel, reqs, err}
	}()

	var res openResult
	select {
	case res = <-resultCh:
	case <-time.After(channelTimeout):
		return nil, gwerr.SSHProtocol(endpoint, gwerr.StageJumpChannel, "timed out opening direct-tcpip channel")
	}
	if res.err != nil {
		return nil, gwerr.SSHProtocol(endpoint, gwerr.StageJumpChannel, res.err.Error())
	}
	go ssh.DiscardRequests(res.reqs)

	conn := &channelConn{Channel: res.channel, laddr: tcpAddr(jump.PrivateHost, jump.EffectivePrivatePort()), raddr: tcpAddr(dev.Host, dev.EffectivePort())}

	auth, err := authMethods(endpoint, dev.Password, dev.KeyPath)
	if err != nil {
		conn.Close()
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            dev.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         handshakeTimeout,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, endpoint, cfg)
	if err != nil {
		conn.Close()
		return nil, classifyDialErr(err, endpoint, gwerr.StageDeviceHandshk)
	}

	return ssh.NewClient(sshConn, chans, reqs), nil
}

// tcpAddr builds a *net.TCPAddr best-effort, falling back to an unresolved
// placeholder — these addresses are cosmetic (used only by net.Conn's
// LocalAddr/RemoteAddr), never by the SSH protocol logic itself.
func tcpAddr(host string, port int) net.Addr {
	if ip := net.ParseIP(host); ip != nil {
		return &net.TCPAddr{IP: ip, Port: port}
	}
	return &net.TCPAddr{Port: port}
}

// classifyDialErr maps an ssh.Dial/ssh.NewClientConn failure into the
// gateway's error taxonomy (spec §4.4's auth/ssh/network/channel classes),
// inspecting the underlying error shape rather than string-matching where
// possible.
func classifyDialErr(err error, endpoint, handshakeStage string) *gwerr.GatewayError {
	if _, ok := err.(*net.OpError); ok {
		return gwerr.Network(endpoint, err.Error())
	}
	if _, ok := err.(*ssh.ExitError); ok {
		return gwerr.SSHProtocol(endpoint, handshakeStage, err.Error())
	}
	// ssh.Dial/NewClientConn wraps authentication failures in a generic
	// error whose message contains "unable to authenticate"; there is no
	// exported *ssh.AuthError type to type-assert on.
	msg := err.Error()
	for _, marker := range []string{"unable to authenticate", "authentication failed", "no supported methods remain"} {
		if strings.Contains(msg, marker) {
			return gwerr.Auth(endpoint, msg)
		}
	}
	return gwerr.SSHProtocol(endpoint, handshakeStage, msg)
}
