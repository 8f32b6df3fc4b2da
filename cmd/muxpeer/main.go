// Muxpeer — CLI entry point.
//
// This tool multiplexes many virtual peers over one physical WebRTC
// transport. The host is the dominant node: it runs the WebSocket signaling
// server, grants virtual identities and echoes every packet back. Clients
// request virtual peers and send stdin lines through each of them.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-config, -role, -peers, -maxSubpeers, -wsListen, -wsUrl).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/muxpeer/internal/adapter"
	"github.com/1ureka/muxpeer/internal/config"
	"github.com/1ureka/muxpeer/internal/mux"
	"github.com/1ureka/muxpeer/internal/signaling"
	"github.com/1ureka/muxpeer/internal/transport"
	"github.com/1ureka/muxpeer/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	configPath := flag.String("config", "", "Path to a YAML config file")
	role := flag.String("role", "", "Role: host, client or local")
	peers := flag.Int("peers", 0, "Virtual peers to request (client, local)")
	maxSubpeers := flag.Int("maxSubpeers", -1, "Virtual peers each node may register, 0 = unlimited (host, local)")
	wsListen := flag.String("wsListen", "", "WebSocket signaling listen address (host only)")
	wsURL := flag.String("wsUrl", "", "WebSocket URL to connect to (client only)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	// Flags override file values.
	if *role != "" {
		cfg.Role = config.Role(*role)
	}
	if *peers > 0 {
		cfg.Peers = *peers
	}
	if *maxSubpeers >= 0 {
		cfg.MaxSubpeers = uint32(*maxSubpeers)
	}
	if *wsListen != "" {
		cfg.Signaling.Listen = *wsListen
	}
	if *wsURL != "" {
		normalized, err := normalizeWSURL(*wsURL)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg.Signaling.URL = normalized
	}
	if *debugMode {
		cfg.Debug = true
	}

	if cfg.Debug {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Muxpeer — v%s", version))
	pterm.Println()

	if cfg.Role == "" {
		// No role → interactive mode.
		askRole(cfg)
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("invalid configuration: %v", err)
		os.Exit(1)
	}

	util.StartStatsReporter(ctx, util.DefaultStatsInterval)

	switch cfg.Role {
	case config.RoleHost:
		err = runHost(ctx, cfg)
	case config.RoleClient:
		err = runClient(ctx, cfg)
	case config.RoleLocal:
		err = runLocal(ctx, cfg)
	}
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	util.LogInfo("successfully closed all virtual peers")
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

func hubOptions(cfg *config.Config) transport.HubOptions {
	return transport.HubOptions{
		STUNServers: cfg.WebRTC.STUNServers,
		Channels:    cfg.WebRTC.Channels,
	}
}

// runHost starts the signaling server and serves the hosting peer until ctx
// is cancelled. New nodes keep joining while the host runs.
func runHost(ctx context.Context, cfg *config.Config) error {
	pin := cfg.Signaling.PIN
	if pin == "" {
		pin = signaling.GeneratePIN(config.DefaultPINLength)
	}

	hub := transport.NewHub(ctx, mux.DominantID, hubOptions(cfg))
	srv := signaling.NewServer(ctx, hub, pin)
	wsPort, err := srv.Start(cfg.Signaling.Listen)
	if err != nil {
		return err
	}
	defer srv.Close()

	pterm.DefaultBox.WithTitle("WebSocket Signaling Server").Println(
		fmt.Sprintf("Port : %d\nPIN  : %s\nURL  : ws://<host>:%d/ws?pin=%s", wsPort, pin, wsPort, pin),
	)
	pterm.Println()
	util.LogInfo("waiting for clients...")

	net := mux.NewNetwork(hub)
	if err := adapter.RunAsHost(ctx, net, cfg.MaxSubpeers, cfg.PollInterval); err != nil {
		return fmt.Errorf("host stopped: %w", err)
	}
	return nil
}

// runClient joins a host and chats through the requested virtual peers.
func runClient(ctx context.Context, cfg *config.Config) error {
	util.LogInfo("connecting to host...")
	hub, err := signaling.Join(ctx, cfg.Signaling.URL, hubOptions(cfg))
	if err != nil {
		return fmt.Errorf("failed to join host: %w", err)
	}

	net := mux.NewNetwork(hub)
	if err := adapter.RunAsClient(ctx, net, cfg.Peers, os.Stdin, os.Stdout, cfg.PollInterval); err != nil {
		return fmt.Errorf("client stopped: %w", err)
	}
	return nil
}

// runLocal runs a host and a client in one process over a memory network.
func runLocal(ctx context.Context, cfg *config.Config) error {
	mem := transport.NewMemoryNetwork()
	dominant, err := mem.Join(mux.DominantID)
	if err != nil {
		return err
	}
	subordinate, err := mem.Join(mux.DominantID + 1)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hostErr := make(chan error, 1)
	go func() {
		hostErr <- adapter.RunAsHost(ctx, mux.NewNetwork(dominant), cfg.MaxSubpeers, cfg.PollInterval)
	}()

	util.LogInfo("local mode: type a line to send it through every virtual peer")
	clientErr := adapter.RunAsClient(ctx, mux.NewNetwork(subordinate), cfg.Peers, os.Stdin, os.Stdout, cfg.PollInterval)

	cancel()
	if err := <-hostErr; err != nil {
		return fmt.Errorf("host stopped: %w", err)
	}
	if clientErr != nil {
		return fmt.Errorf("client stopped: %w", clientErr)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// normalizeWSURL validates and normalizes a raw WebSocket URL string. The
// query (PIN) is kept.
func normalizeWSURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid WebSocket URL: %s", raw)
	}
	scheme := "wss"
	if u.Scheme == "ws" || u.Scheme == "wss" {
		scheme = u.Scheme
	}
	normalized := fmt.Sprintf("%s://%s/ws", scheme, u.Host)
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}
	return normalized, nil
}

// askRole fills the role and its required settings from interactive prompts.
func askRole(cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{
			"Host   — Grant virtual peers and echo their traffic",
			"Client — Join a host with virtual peers",
			"Local  — Run both ends in this process",
		}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	switch {
	case strings.HasPrefix(role, "Host"):
		cfg.Role = config.RoleHost
	case strings.HasPrefix(role, "Client"):
		cfg.Role = config.RoleClient
		cfg.Signaling.URL = askURL()
		cfg.Peers = askCount("Virtual peers to request (1 ~ 64)")
	default:
		cfg.Role = config.RoleLocal
		cfg.Peers = askCount("Virtual peers to request (1 ~ 64)")
	}
}

// askCount prompts the user for a peer count until a valid one is entered.
func askCount(prompt string) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			Show()

		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && n >= 1 && n <= 64 {
			pterm.Println()
			return n
		}

		util.LogWarning("invalid count: must be 1 ~ 64")
		pterm.Println()
	}
}

// askURL prompts the user for a valid WebSocket URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("WebSocket URL (e.g. wss://***.asse.devtunnels.ms/ws?pin=123456)").
			Show()

		wsURL, err := normalizeWSURL(raw)
		if err == nil {
			pterm.Println()
			return wsURL
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}
