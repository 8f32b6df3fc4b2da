// Package transport provides the physical connections a mux.Network runs on:
// an in-process MemoryNetwork and a WebRTC star Hub.
package transport

import "errors"

var (
	ErrClosed         = errors.New("transport closed")
	ErrUnknownLink    = errors.New("no link to physical peer")
	ErrUnknownChannel = errors.New("channel not configured")
	ErrChannelNotOpen = errors.New("data channel not open")
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")
	ErrCongested      = errors.New("send buffer above high water mark")
	ErrIDTaken        = errors.New("physical id already in use")
)
