package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	defaultSampleInterval = time.Second
	defaultWindowSize     = 10
)

// trafficSample is one interval's worth of ingress traffic.
type trafficSample struct {
	bytes   uint64
	packets uint64
}

// trafficStats keeps a sliding window of ingress traffic for rate-based
// guard rules. record is called from the forwarder; the sampler goroutine
// rotates the window, so the accumulators are atomics.
type trafficStats struct {
	samples        []trafficSample
	currentIndex   uint32
	currentBytes   uint64
	currentPackets uint64
}

func newTrafficStats(windowSize int) *trafficStats {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &trafficStats{samples: make([]trafficSample, windowSize)}
}

func (s *trafficStats) record(size int) {
	atomic.AddUint64(&s.currentBytes, uint64(size))
	atomic.AddUint64(&s.currentPackets, 1)
}

// rotate moves the current accumulators into the ring buffer.
func (s *trafficStats) rotate() {
	bytes := atomic.SwapUint64(&s.currentBytes, 0)
	packets := atomic.SwapUint64(&s.currentPackets, 0)

	index := atomic.AddUint32(&s.currentIndex, 1) % uint32(len(s.samples))
	s.samples[index] = trafficSample{bytes: bytes, packets: packets}
}

// rates returns packets/s and bytes/s averaged over the window.
func (s *trafficStats) rates(sampleInterval time.Duration) (pps, bps uint64) {
	var totalBytes, totalPackets uint64
	for _, sample := range s.samples {
		totalBytes += sample.bytes
		totalPackets += sample.packets
	}

	windowSeconds := uint64(time.Duration(len(s.samples)) * sampleInterval / time.Second)
	if windowSeconds == 0 {
		windowSeconds = 1
	}
	return totalPackets / windowSeconds, totalBytes / windowSeconds
}

// Guard drops datagrams matching any of an ordered list of pre-compiled
// expression rules, evaluated over per-datagram metadata only. Payload bytes
// are never exposed to the rules.
type Guard struct {
	rules          []*vm.Program
	ruleSources    []string
	stats          *trafficStats
	sampleInterval time.Duration
	stopCh         chan struct{}
}

// guardEnv is the variable set a rule may reference.
func guardEnv(ip string, port int, size int, pps, bps uint64) map[string]any {
	return map[string]any{
		"ip":   ip,
		"port": port,
		"size": size,
		"pps":  pps,
		"bps":  bps,
	}
}

// NewGuard compiles the configured rules. Returns nil when no rules are
// configured.
func NewGuard(cfg GuardConfig) (*Guard, error) {
	if len(cfg.DropRules) == 0 {
		return nil, nil
	}

	sampleInterval := defaultSampleInterval
	if cfg.SampleInterval != "" {
		d, err := time.ParseDuration(cfg.SampleInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid guard sample_interval %q: %w", cfg.SampleInterval, err)
		}
		sampleInterval = d
	}

	g := &Guard{
		stats:          newTrafficStats(cfg.WindowSize),
		sampleInterval: sampleInterval,
		stopCh:         make(chan struct{}),
	}

	for i, rule := range cfg.DropRules {
		program, err := expr.Compile(rule.Rule, expr.Env(guardEnv("", 0, 0, 0, 0)), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("failed to compile guard rule %d (%s): %w", i, rule.Rule, err)
		}
		g.rules = append(g.rules, program)
		g.ruleSources = append(g.ruleSources, rule.Rule)
	}

	return g, nil
}

// Start launches the traffic sampler.
func (g *Guard) Start() {
	go g.sampler()
}

// Stop terminates the traffic sampler.
func (g *Guard) Stop() {
	close(g.stopCh)
}

func (g *Guard) sampler() {
	ticker := time.NewTicker(g.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.stats.rotate()
		}
	}
}

// ShouldDrop records the datagram in the traffic window and evaluates the
// rules in order; the first rule returning true drops it.
func (g *Guard) ShouldDrop(key FlowKey, size int) bool {
	g.stats.record(size)

	pps, bps := g.stats.rates(g.sampleInterval)
	env := guardEnv(key.IP.String(), int(key.Port), size, pps, bps)

	for i, program := range g.rules {
		result, err := expr.Run(program, env)
		if err != nil {
			logger.Warnf("guard rule %d (%s) failed: %v", i, g.ruleSources[i], err)
			continue
		}
		if drop, ok := result.(bool); ok && drop {
			logger.Debugf("guard rule %q dropped datagram from %s:%d", g.ruleSources[i], key.IP, key.Port)
			return true
		}
	}
	return false
}
