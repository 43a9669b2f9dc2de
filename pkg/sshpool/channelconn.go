package sshpool

import (
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// channelConn adapts an ssh.Channel (a direct-tcpip channel opened on a
// jump host's transport) to the net.Conn interface so it can be handed to
// ssh.NewClientConn as the device SSH session's transport socket, per spec
// §4.4 step 2. ssh.Channel already implements Read/Write/Close; only the
// addressing and deadline methods need filling in, and none of them affect
// protocol behavior — they exist purely to satisfy the interface.
type channelConn struct {
	ssh.Channel
	laddr, raddr net.Addr
}

func (c *channelConn) LocalAddr() net.Addr  { return c.laddr }
func (c *channelConn) RemoteAddr() net.Addr { return c.raddr }

// Deadlines are not supported on an SSH channel and these are no-ops.
// ssh.NewClientConn does not use ssh.ClientConfig.Timeout, so the device
// handshake in dialTunneled has no timeout.
func (c *channelConn) SetDeadline(t time.Time) error      { return nil }
func (c *channelConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *channelConn) SetWriteDeadline(t time.Time) error { return nil }
