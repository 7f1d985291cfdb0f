package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/shaban/audiohost/catalog"
	"github.com/shaban/audiohost/config"
	"github.com/shaban/audiohost/engine"
	"github.com/shaban/audiohost/recents"
	"github.com/shaban/audiohost/worker"
)

// fixedHandshaker stands in for the real session handshake (spec §1's
// "TCP handshake and session setup" external collaborator): it assumes a
// stereo-in/stereo-out, no-sidechain, single-precision session for every
// connection. A real deployment replaces this with one that reads the
// client's declared parameters off the wire.
type fixedHandshaker struct{}

func (fixedHandshaker) Handshake(conn net.Conn) (worker.HandshakeParams, error) {
	return worker.HandshakeParams{
		ChannelsIn:      2,
		ChannelsOut:     2,
		ChannelsSC:      0,
		Active:          catalog.NewActiveChannelMask(2, 2),
		SampleRate:      48000,
		BlockSize:       512,
		HostWantsDouble: false,
	}, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("AUDIOHOSTD_CONFIG"), nil, os.Args[1:])
	if err != nil {
		log.Fatal("loading configuration", "err", err)
	}

	engine.ParallelPluginLoad = cfg.ParallelPluginLoad

	cat := catalog.NewFakeCatalog()
	reg := recents.New(cfg.NumRecents)

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatal("listening", "addr", cfg.ListenAddr, "err", err)
	}
	log.Info("audiohostd listening", "addr", cfg.ListenAddr, "parallelPluginLoad", cfg.ParallelPluginLoad)

	manager := worker.NewSessionManager(listener, fixedHandshaker{}, cat, reg, worker.NopMetrics{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		if err := manager.Stop(); err != nil {
			log.Warn("stopping manager", "err", err)
		}
	}()

	if err := manager.Serve(); err != nil {
		log.Info("server stopped", "err", err)
	}
}
