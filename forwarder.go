package main

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

const defaultFlowTimeout = time.Minute

// Forwarder owns the downstream UDP socket and the flow table. It is the
// only goroutine that touches the table; upstream readers are handed copies
// of what they need and are signaled exclusively through their socket.
type Forwarder struct {
	downstream     *net.UDPConn
	gameServerAddr *net.UDPAddr
	admission      *AdmissionTable
	guard          *Guard
	geo            *GeoFilter
	metrics        *Metrics

	flowTimeout    time.Duration
	recvBufferSize int
	sendBufferSize int

	flows    map[FlowKey]*flowState
	lastReap time.Time

	flowsSnapshot atomic.Value // []FlowInfo, read by the ops API
	stopCh        chan struct{}
}

// NewForwarder creates a forwarder relaying between downstream and the game
// server address. guard and geo may be nil.
func NewForwarder(downstream *net.UDPConn, gameServerAddr *net.UDPAddr, admission *AdmissionTable, guard *Guard, geo *GeoFilter, metrics *Metrics, cfg Config) *Forwarder {
	flowTimeout := time.Duration(cfg.FlowTimeout) * time.Second
	if flowTimeout == 0 {
		flowTimeout = defaultFlowTimeout
	}

	f := &Forwarder{
		downstream:     downstream,
		gameServerAddr: gameServerAddr,
		admission:      admission,
		guard:          guard,
		geo:            geo,
		metrics:        metrics,
		flowTimeout:    flowTimeout,
		recvBufferSize: cfg.RecvBufferSize,
		sendBufferSize: cfg.SendBufferSize,
		flows:          make(map[FlowKey]*flowState),
		lastReap:       time.Now(),
		stopCh:         make(chan struct{}),
	}
	f.flowsSnapshot.Store([]FlowInfo{})
	return f
}

// Run reads the downstream socket until it is closed or fails fatally. The
// inactivity reap runs inline: a short read deadline bounds how long a silent
// network can defer it.
func (f *Forwarder) Run() error {
	logger.Infof("forwarding %s <-> %s", f.downstream.LocalAddr(), f.gameServerAddr)

	// The flow table is owned by this goroutine, so teardown happens here
	// once the loop exits, not in Stop.
	defer f.closeAllFlows()

	buf := make([]byte, maxDatagramSize)
	shortDeadline := min(5*time.Second, f.flowTimeout/2)

	for {
		select {
		case <-f.stopCh:
			return nil
		default:
		}

		f.maybeReap(time.Now())

		if err := f.downstream.SetReadDeadline(time.Now().Add(shortDeadline)); err != nil {
			logger.Warnf("error setting read deadline: %v", err)
		}

		n, src, err := f.downstream.ReadFromUDP(buf)

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			continue
		}
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			// A failing downstream receive is fatal for the whole proxy
			return fmt.Errorf("downstream receive failed: %w", err)
		}

		f.handleDatagram(buf[:n], src)
	}
}

// Stop signals Run to exit by closing the downstream socket. Flow teardown
// happens inside Run, which owns the table.
func (f *Forwarder) Stop() {
	close(f.stopCh)
	if err := f.downstream.Close(); err != nil {
		logger.Warnf("error closing downstream socket: %v", err)
	}
}

// closeAllFlows closes every live flow; the readers observe their sockets
// closing and exit.
func (f *Forwarder) closeAllFlows() {
	for key, state := range f.flows {
		state.close()
		delete(f.flows, key)
	}
	f.metrics.ActiveFlows.Set(0)
	f.publishFlows()
}

// Flows returns the last published snapshot of live flows.
func (f *Forwarder) Flows() []FlowInfo {
	return f.flowsSnapshot.Load().([]FlowInfo)
}

// handleDatagram runs the per-packet pipeline: guard, country restriction,
// admission probe, then relay or teardown.
func (f *Forwarder) handleDatagram(payload []byte, src *net.UDPAddr) {
	key, ok := flowKeyFromUDPAddr(src)
	if !ok {
		// IPv6 sources are outside the relay contract
		logger.Debugf("ignoring non-IPv4 source %s", src)
		return
	}

	if f.guard != nil && f.guard.ShouldDrop(key, len(payload)) {
		f.metrics.GuardDropped.Inc()
		return
	}

	private := isPrivateAddress(key.IP)

	if !private && f.geo != nil && !f.geo.Allowed(src.IP) {
		f.metrics.GeoRejected.Inc()
		f.closeFlow(key)
		return
	}

	// The probe may bind a reservation's port, so it runs only after the
	// cheaper checks have passed.
	admitted := f.admission.CheckAllowedAndBindPort(key.IP, key.Port)

	if !admitted && !private {
		f.metrics.AdmissionRejected.Inc()
		f.closeFlow(key)
		return
	}

	state, exists := f.flows[key]
	if !exists {
		var err error
		state, err = f.createFlow(key, src)
		if err != nil {
			logger.Warnf("failed to create flow for %s: %v", src, err)
			return
		}
	}
	state.lastSeen = time.Now()

	if _, err := state.upstream.Write(payload); err != nil {
		// Packet lost; the flow survives per UDP semantics
		logger.Infof("upstream send for %s failed: %v", src, err)
		return
	}

	f.metrics.DatagramsForwarded.WithLabelValues("upstream").Inc()
	f.metrics.BytesForwarded.WithLabelValues("upstream").Add(float64(len(payload)))
}

// createFlow dials a dedicated upstream socket connected to the game server
// and spawns the reader that relays its traffic back to the client.
func (f *Forwarder) createFlow(key FlowKey, src *net.UDPAddr) (*flowState, error) {
	upstream, err := net.DialUDP("udp4", nil, f.gameServerAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial game server: %w", err)
	}

	if f.sendBufferSize > 0 {
		if err := upstream.SetWriteBuffer(f.sendBufferSize); err != nil {
			logger.Warnf("failed to set upstream write buffer to %d: %v", f.sendBufferSize, err)
		}
	}
	if f.recvBufferSize > 0 {
		if err := upstream.SetReadBuffer(f.recvBufferSize); err != nil {
			logger.Warnf("failed to set upstream read buffer to %d: %v", f.recvBufferSize, err)
		}
	}

	// The reader gets its own copy of the client address, never a pointer
	// into the flow table.
	clientAddr := &net.UDPAddr{IP: append(net.IP(nil), src.IP...), Port: src.Port}

	state := &flowState{
		clientAddr: clientAddr,
		upstream:   upstream,
		lastSeen:   time.Now(),
	}
	f.flows[key] = state

	go upstreamReader(f.downstream, upstream, clientAddr, f.metrics)

	f.metrics.FlowsCreated.Inc()
	f.metrics.ActiveFlows.Set(float64(len(f.flows)))
	f.publishFlows()

	logger.Infof("new flow for %s via %s", src, upstream.LocalAddr())
	return state, nil
}

// closeFlow tears down the flow for key, if one exists. Used on the
// disallow path: a source that is no longer admitted loses its relay.
func (f *Forwarder) closeFlow(key FlowKey) {
	state, exists := f.flows[key]
	if !exists {
		return
	}

	logger.Infof("closing flow for %s:%d, source no longer allowed", key.IP, key.Port)
	state.close()
	delete(f.flows, key)

	f.metrics.ActiveFlows.Set(float64(len(f.flows)))
	f.publishFlows()
}

// maybeReap evicts flows whose client stayed silent for a whole reap epoch.
// Entries last seen at or before the previous reap tick are closed.
func (f *Forwarder) maybeReap(now time.Time) {
	if now.Sub(f.lastReap) < f.flowTimeout {
		return
	}

	reaped := 0
	for key, state := range f.flows {
		if !state.lastSeen.After(f.lastReap) {
			logger.Infof("reaping idle flow for %s:%d", key.IP, key.Port)
			state.close()
			delete(f.flows, key)
			reaped++
		}
	}
	f.lastReap = now

	if reaped > 0 {
		f.metrics.FlowsReaped.Add(float64(reaped))
		f.metrics.ActiveFlows.Set(float64(len(f.flows)))
		f.publishFlows()
	}
}

// publishFlows stores a fresh snapshot for the ops API, which must never
// touch the live table.
func (f *Forwarder) publishFlows() {
	snapshot := make([]FlowInfo, 0, len(f.flows))
	for _, state := range f.flows {
		localPort := 0
		if addr, ok := state.upstream.LocalAddr().(*net.UDPAddr); ok {
			localPort = addr.Port
		}
		snapshot = append(snapshot, FlowInfo{
			Client:    state.clientAddr.String(),
			LocalPort: localPort,
			LastSeen:  state.lastSeen,
		})
	}
	f.flowsSnapshot.Store(snapshot)
}
