package cli

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"
)

// NewListener binds a TCP listener whose connections count into the
// open-connections gauge and carry an idle deadline on every read and
// write.
func NewListener(addr string, timeout time.Duration) (net.Listener, error) {
	inner, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &timeoutListener{Listener: inner, timeout: timeout}, nil
}

// NewUnixListener binds to a UNIX socket. A stale socket file left behind
// by a previous run is removed first; any other file at the path is an
// error.
func NewUnixListener(path string, timeout time.Duration) (net.Listener, error) {
	if stat, err := os.Stat(path); err == nil {
		if stat.Mode()&os.ModeSocket == 0 {
			return nil, errors.New("path exists and is not a socket")
		}
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	inner, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	return &timeoutListener{Listener: inner, timeout: timeout}, nil
}

type timeoutListener struct {
	net.Listener
	timeout time.Duration
}

func (l *timeoutListener) Accept() (net.Conn, error) {
	inner, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	MetricsOpenConnections.Inc()

	conn := &timeoutConn{Conn: inner, timeout: l.timeout}
	if err := conn.extendDeadline(); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

// timeoutConn pushes its deadline forward after every successful read and
// write, so only connections that stop making progress run into the
// timeout. Uploads larger than any fixed server timeout stay alive as long
// as bytes keep flowing.
type timeoutConn struct {
	net.Conn
	timeout time.Duration

	// closeOnce guards the gauge decrement; net/http may close a hijacked
	// connection more than once.
	closeOnce sync.Once
}

func (c *timeoutConn) extendDeadline() error {
	if c.timeout <= 0 {
		return c.Conn.SetDeadline(time.Time{})
	}
	return c.Conn.SetDeadline(time.Now().Add(c.timeout))
}

func (c *timeoutConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if err == nil {
		err = c.extendDeadline()
	}
	return n, err
}

func (c *timeoutConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if err == nil {
		err = c.extendDeadline()
	}
	return n, err
}

func (c *timeoutConn) Close() error {
	c.closeOnce.Do(MetricsOpenConnections.Dec)
	return c.Conn.Close()
}
