// Package port finds free TCP ports for per-session listeners.
package port

import (
	"net"
	"strconv"
)

// Websocket port allocation constants. A session on display N first tries
// N+WebsocketOffset and steps by WebsocketStep until WebsocketUpper.
const (
	WebsocketOffset = 41360
	WebsocketUpper  = 43000
	WebsocketStep   = 100
)

// Allocate returns the first port in base, base+step, ... (not exceeding
// upper) that can be bound on all interfaces, or 0 if none can. The probe
// listener is closed before returning, so the port is only known to have
// been free at probe time.
func Allocate(base, upper, step int) int {
	if step <= 0 {
		if probe(base) {
			return base
		}
		return 0
	}
	for candidate := base; candidate <= upper; candidate += step {
		if probe(candidate) {
			return candidate
		}
	}
	return 0
}

// Websocket returns the websocket port for display, or 0.
func Websocket(display int) int {
	return Allocate(display+WebsocketOffset, WebsocketUpper, WebsocketStep)
}

func probe(p int) bool {
	if p <= 0 || p > 65535 {
		return false
	}
	l, err := net.Listen("tcp", ":"+strconv.Itoa(p))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
