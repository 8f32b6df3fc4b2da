// Package config holds the CLI configuration: YAML file values with ${VAR}
// environment expansion, overridden by flags and interactive prompts.
package config

import "time"

// Role represents the user's chosen role.
type Role string

const (
	RoleHost   Role = "host"   // dominant node: signaling server + hosting peer
	RoleClient Role = "client" // subordinate node: joins a host
	RoleLocal  Role = "local"  // both ends in one process over a memory network
)

// Config is the root configuration of a muxpeer process.
type Config struct {
	Role         Role            `yaml:"role"`
	MaxSubpeers  uint32          `yaml:"max_subpeers"`  // host: per-node cap, 0 = unlimited
	Peers        int             `yaml:"peers"`         // client: virtual peers to request
	PollInterval time.Duration   `yaml:"poll_interval"` // network poll period
	Signaling    SignalingConfig `yaml:"signaling"`
	WebRTC       WebRTCConfig    `yaml:"webrtc"`
	Debug        bool            `yaml:"debug"`
}

// SignalingConfig holds the WebSocket signaling settings.
type SignalingConfig struct {
	Listen string `yaml:"listen"` // host: listen address, ":0" picks a port
	URL    string `yaml:"url"`    // client: ws:// or wss:// URL of the host
	PIN    string `yaml:"pin"`    // host: required PIN, generated when empty
}

// WebRTCConfig holds the link settings shared by both ends.
type WebRTCConfig struct {
	STUNServers []string `yaml:"stun_servers"`
	Channels    int      `yaml:"channels"`
}
