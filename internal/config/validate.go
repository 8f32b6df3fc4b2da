package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that the values are usable for the configured role.
func (c *Config) Validate() error {
	switch c.Role {
	case "", RoleHost, RoleClient, RoleLocal:
	default:
		return fmt.Errorf("role must be one of host, client, local, got %q", c.Role)
	}

	if c.Peers < 1 {
		return errors.New("peers must be >= 1")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be > 0")
	}
	if c.WebRTC.Channels < MinChannels || c.WebRTC.Channels > MaxChannels {
		return fmt.Errorf("webrtc.channels must be between %d and %d, got %d", MinChannels, MaxChannels, c.WebRTC.Channels)
	}

	if c.Role == RoleClient {
		if c.Signaling.URL == "" {
			return errors.New("signaling.url is required for role client")
		}
		if err := validateWSURL(c.Signaling.URL); err != nil {
			return err
		}
	}

	return nil
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("signaling.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("signaling.url must use ws:// or wss://, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("signaling.url has no host: %q", raw)
	}
	return nil
}
