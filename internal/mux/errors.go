package mux

import "errors"

// Routing errors.
var (
	ErrUnknownPeer = errors.New("no known route to peer")
	ErrNoTransport = errors.New("no transport available")
	ErrSpoofed     = errors.New("source identity not granted to sender")
)

// Registration and control-protocol errors.
var (
	ErrPeerExists         = errors.New("peer already exists")
	ErrCapacityExceeded   = errors.New("maximum subpeers exceeded")
	ErrSubjectNotLocal    = errors.New("subject peer is not local")
	ErrConnectionRejected = errors.New("connection rejected")
	ErrNotImplemented     = errors.New("not implemented")
	ErrInvalidCommand     = errors.New("invalid command for role")
	ErrNotDominant        = errors.New("network is not dominant")
)

// Virtual peer errors.
var (
	ErrUnconfigured = errors.New("peer is not in a multiplex network")
	ErrNoRoute      = errors.New("no route to target peer")
	ErrNoPackets    = errors.New("no packets available")
)
