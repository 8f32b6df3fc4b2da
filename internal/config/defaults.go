package config

import (
	"time"

	"github.com/1ureka/muxpeer/internal/mux"
)

const (
	DefaultPeers        = 1
	DefaultPollInterval = 10 * time.Millisecond
	DefaultListen       = ":0"
	DefaultChannels     = 2
	MinChannels         = mux.CommandChannel + 1 // control packets need their own channel opened
	MaxChannels         = 64
	DefaultPINLength    = 6
)

// DefaultSTUNServers mirrors the transport defaults so a written-out config
// is complete.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// ApplyDefaults fills every unset field. Role is left alone: an empty role
// means the CLI prompts for it.
func (c *Config) ApplyDefaults() {
	if c.Peers == 0 {
		c.Peers = DefaultPeers
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Signaling.Listen == "" {
		c.Signaling.Listen = DefaultListen
	}
	if len(c.WebRTC.STUNServers) == 0 {
		c.WebRTC.STUNServers = append([]string(nil), DefaultSTUNServers...)
	}
	if c.WebRTC.Channels == 0 {
		c.WebRTC.Channels = DefaultChannels
	}
}
