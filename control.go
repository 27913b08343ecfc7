package main

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"time"
)

const (
	// Control frame layout: u32 little-endian payload size, then the payload.
	controlSizeHeaderLen = 4

	// Upper bound on an announced payload size; recognized commands use at
	// most 9 bytes. Bigger frames are malformed and the connection is
	// abandoned without draining them.
	maxControlPayload = 64

	controlReadTimeout = 5 * time.Second

	resetCommand = "reset"

	opAdd    = 'a'
	opRemove = 'r'
)

// ControlServer accepts admit/revoke/reset commands from the local
// controller over TCP and applies them to the admission table. One command
// per connection. It never terminates the process: malformed commands are
// dropped and accept errors are logged and retried.
type ControlServer struct {
	listener  net.Listener
	admission *AdmissionTable
	metrics   *Metrics
}

// NewControlServer creates a control server on an already-bound listener.
func NewControlServer(listener net.Listener, admission *AdmissionTable, metrics *Metrics) *ControlServer {
	return &ControlServer{
		listener:  listener,
		admission: admission,
		metrics:   metrics,
	}
}

// Run accepts connections until the listener is closed.
func (c *ControlServer) Run() error {
	logger.Infof("control server listening on %s", c.listener.Addr())

	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Warnf("control accept error: %v", err)
			continue
		}

		go c.handleConn(conn)
	}
}

// Close shuts the listener down, unblocking Run.
func (c *ControlServer) Close() error {
	return c.listener.Close()
}

// handleConn reads exactly one length-prefixed command frame and applies it.
// Short reads abandon the connection; nothing is applied partially.
func (c *ControlServer) handleConn(conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("control connection close: %v", err)
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(controlReadTimeout)); err != nil {
		logger.Warnf("control connection: failed to set read deadline: %v", err)
	}

	var header [controlSizeHeaderLen]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		logger.Infof("control connection from %s: short header read: %v", conn.RemoteAddr(), err)
		return
	}

	size := binary.LittleEndian.Uint32(header[:])
	if size == 0 || size > maxControlPayload {
		logger.Infof("control connection from %s: implausible payload size %d", conn.RemoteAddr(), size)
		return
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		logger.Infof("control connection from %s: short payload read: %v", conn.RemoteAddr(), err)
		return
	}

	c.apply(payload)
}

// apply dispatches a fully-received payload. Unrecognized payloads are
// silently discarded.
func (c *ControlServer) apply(payload []byte) {
	switch len(payload) {
	case len(resetCommand):
		if string(payload) != resetCommand {
			return
		}
		c.admission.Reset()
		c.metrics.ControlCommands.WithLabelValues("reset").Inc()
		logger.Infof("admission table reset")

	case 9:
		op := payload[0]
		playerID := binary.LittleEndian.Uint32(payload[1:5])
		var ip ClientIP
		copy(ip[:], payload[5:9])

		switch op {
		case opAdd:
			c.admission.Add(playerID, ip)
			c.metrics.ControlCommands.WithLabelValues("add").Inc()
			logger.Infof("admitted player %d at %s", playerID, ip)
		case opRemove:
			c.admission.Remove(playerID, ip)
			c.metrics.ControlCommands.WithLabelValues("remove").Inc()
			logger.Infof("revoked player %d", playerID)
		default:
			logger.Debugf("control: unknown op %q, dropping", op)
		}

	default:
		logger.Debugf("control: unrecognized payload of %d bytes, dropping", len(payload))
	}
}
