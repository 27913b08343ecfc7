package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
)

const (
	minPort = 2000
	maxPort = 9000

	// The game server and the controller are reached on fixed offsets from
	// the client-facing port.
	gameServerPortOffset = 100
	controlPortOffset    = 200
)

func main() {
	defaultLogger, _ := zap.NewProduction()
	logger = defaultLogger.Sugar()

	configPath := flag.String("c", "", "Path to configuration file (JSON or YAML)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-c config] <port>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Environment knobs: UDPGATE_CONFIG applies only when -c is absent;
	// .env is optional.
	if err := godotenv.Load(); err == nil {
		logger.Debugf("loaded environment from .env")
	}
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		logger.Fatalf("Failed to parse environment: %v", err)
	}
	if *configPath == "" && overrides.ConfigPath != "" {
		*configPath = overrides.ConfigPath
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil || port < minPort || port > maxPort {
		logger.Fatalf("Invalid port %q: must be a number between %d and %d", flag.Arg(0), minPort, maxPort)
	}

	config, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config %s: %v", *configPath, err)
	}
	if overrides.LogLevel != "" {
		config.Logging.Level = overrides.LogLevel
	}

	initLogger(config.Logging)
	logger.Infof("udpgate version %s starting on port %d", version, port)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := NewMetrics(registry)

	admission := NewAdmissionTable()

	guard, err := NewGuard(config.Guard)
	if err != nil {
		logger.Fatalf("Failed to set up ingress guard: %v", err)
	}

	geo, err := NewGeoFilter(config.Geo)
	if err != nil {
		logger.Fatalf("Failed to set up country restriction: %v", err)
	}

	downstream, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		logger.Fatalf("Failed to bind client port %d: %v", port, err)
	}
	if err := tolerateUnreachable(downstream); err != nil {
		logger.Fatalf("Failed to configure client socket: %v", err)
	}
	if config.RecvBufferSize > 0 {
		if err := downstream.SetReadBuffer(config.RecvBufferSize); err != nil {
			logger.Warnf("Failed to set read buffer size to %d: %v", config.RecvBufferSize, err)
		}
	}
	if config.SendBufferSize > 0 {
		if err := downstream.SetWriteBuffer(config.SendBufferSize); err != nil {
			logger.Warnf("Failed to set write buffer size to %d: %v", config.SendBufferSize, err)
		}
	}

	controlListener, err := net.Listen("tcp4", fmt.Sprintf("127.0.0.1:%d", port+controlPortOffset))
	if err != nil {
		logger.Fatalf("Failed to bind control port %d: %v", port+controlPortOffset, err)
	}

	gameServerAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port + gameServerPortOffset}

	forwarder := NewForwarder(downstream, gameServerAddr, admission, guard, geo, metrics, config)
	control := NewControlServer(controlListener, admission, metrics)
	api := NewAPIServer(config.API, forwarder, admission, registry)

	if guard != nil {
		guard.Start()
	}
	if err := api.Start(); err != nil {
		logger.Fatalf("Failed to start ops API server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(forwarder.Run)
	g.Go(control.Run)
	g.Go(func() error {
		<-ctx.Done()
		forwarder.Stop()
		if err := control.Close(); err != nil {
			logger.Warnf("error closing control listener: %v", err)
		}
		if err := api.Stop(); err != nil {
			logger.Warnf("error stopping ops API server: %v", err)
		}
		if guard != nil {
			guard.Stop()
		}
		if geo != nil {
			geo.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("Proxy failed: %v", err)
	}
	logger.Info("udpgate stopped")
}
