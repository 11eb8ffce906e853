// Command doip-ecu runs a standalone DoIP gateway entity over real UDP/TCP
// sockets, answering vehicle discovery and diagnostic sessions against a
// fixed VIN until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/doipgw/doip"
	"github.com/doipgw/doip/internal/logging"
	"github.com/doipgw/doip/internal/netops"
)

func main() {
	var (
		vin            = flag.String("vin", "WVWZZZ1KZ1A234567", "17-character vehicle identification number")
		logicalAddrStr = flag.String("logical-address", "0x0001", "entity logical address, e.g. 0x0001")
		udpPort        = flag.Int("udp-port", doip.DefaultUDPPort, "UDP discovery port")
		tcpPort        = flag.Int("tcp-port", doip.DefaultTCPPort, "TCP diagnostic data port")
		verbose        = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logicalAddr, err := strconv.ParseUint(*logicalAddrStr, 0, 16)
	if err != nil {
		log.Fatalf("invalid logical address %q: %v", *logicalAddrStr, err)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	config := doip.DefaultConfig(*vin)
	config.LogicalAddress = uint16(logicalAddr)
	config.UDPPort = *udpPort
	config.TCPPort = *tcpPort

	entity := doip.NewEntity(netops.NewBSD(), config, &doip.Options{Logger: logger})

	if err := entity.Start(); err != nil {
		logger.Error("failed to start entity", "error", err)
		os.Exit(1)
	}

	logger.Info("doip entity started", "vin", *vin, "logical_address", *logicalAddrStr,
		"udp_port", *udpPort, "tcp_port", *tcpPort)
	fmt.Printf("DoIP entity listening on UDP/TCP port %d (VIN %s)\n", *udpPort, *vin)
	fmt.Printf("Press Ctrl+C to stop...\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	if err := entity.Run(ctx); err != nil {
		logger.Error("entity run error", "error", err)
		os.Exit(1)
	}

	snap := entity.MetricsSnapshot()
	logger.Info("entity stopped", "vehicle_id_requests", snap.VehicleIDRequests,
		"routing_activations_ok", snap.RoutingActivationsOK,
		"diagnostic_messages_rx", snap.DiagnosticMessagesRx)
}
