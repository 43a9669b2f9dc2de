package sshpool

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// fakeSSHServer is a minimal in-process SSH server used to exercise the pool
// and dialer without a real network switch, mirroring the teacher's own
// practice of building small in-repo fakes (internal/testutil) over mocking
// interfaces.
type fakeSSHServer struct {
	addr      string
	listener  net.Listener
	config    *ssh.ServerConfig
	responses map[string]string
	execDelay time.Duration

	connCount int32

	// when proxyTo is set, incoming direct-tcpip channel requests are
	// serviced by dialing proxyTo and piping bytes, turning this server
	// into a jump host for another fakeSSHServer.
	proxyTo string
}

func newFakeSSHServer(t *testing.T, user, password string, responses map[string]string) *fakeSSHServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if conn.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, &authError{}
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	srv := &fakeSSHServer{
		addr:      ln.Addr().String(),
		listener:  ln,
		config:    cfg,
		responses: responses,
	}

	t.Cleanup(func() { ln.Close() })

	go srv.serve(t)
	return srv
}

type authError struct{}

func (*authError) Error() string { return "invalid credentials" }

func (s *fakeSSHServer) serve(t *testing.T) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(t, conn)
	}
}

func (s *fakeSSHServer) handleConn(t *testing.T, conn net.Conn) {
	atomic.AddInt32(&s.connCount, 1)

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		conn.Close()
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		switch newChannel.ChannelType() {
		case "session":
			go s.handleSession(newChannel)
		case "direct-tcpip":
			go s.handleDirectTCPIP(newChannel)
		default:
			newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
		}
	}
}

func (s *fakeSSHServer) handleSession(newChannel ssh.NewChannel) {
	channel, requests, err := newChannel.Accept()
	if err != nil {
		return
	}
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			ssh.Unmarshal(req.Payload, &payload)
			req.Reply(true, nil)

			if s.execDelay > 0 {
				time.Sleep(s.execDelay)
			}

			out, ok := s.responses[payload.Command]
			if !ok {
				out = ""
			}
			channel.Write([]byte(out))

			status := make([]byte, 4)
			binary.BigEndian.PutUint32(status, 0)
			channel.SendRequest("exit-status", false, status)
			return
		case "keepalive@openssh.com":
			req.Reply(true, nil)
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func (s *fakeSSHServer) handleDirectTCPIP(newChannel ssh.NewChannel) {
	if s.proxyTo == "" {
		newChannel.Reject(ssh.Prohibited, "not a jump host")
		return
	}

	channel, requests, err := newChannel.Accept()
	if err != nil {
		return
	}
	go ssh.DiscardRequests(requests)

	target, err := net.Dial("tcp", s.proxyTo)
	if err != nil {
		channel.Close()
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); io.Copy(target, channel) }()
	go func() { defer wg.Done(); io.Copy(channel, target) }()
	wg.Wait()
	target.Close()
	channel.Close()
}

func (s *fakeSSHServer) host() (string, int) {
	tcp := s.listener.Addr().(*net.TCPAddr)
	return tcp.IP.String(), tcp.Port
}

func (s *fakeSSHServer) connections() int {
	return int(atomic.LoadInt32(&s.connCount))
}
