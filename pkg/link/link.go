// Package link reports whether the gateway has a usable network link.
//
// The check is the host-side counterpart of a WiFi station being associated:
// an interface is up, is not loopback and has a unicast address.
package link

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Link reports current connectivity. IsConnected must not block.
type Link interface {
	IsConnected() bool
}

// Addresser is implemented by links that can report their local address.
type Addresser interface {
	Address() (net.IP, bool)
}

// Interfaces checks the host network interfaces.
type Interfaces struct {
	name  string
	list  func() ([]net.Interface, error)
	addrs func(iface net.Interface) ([]net.Addr, error)
}

// NewInterfaces creates a link check. When name is empty any interface qualifies.
func NewInterfaces(name string) *Interfaces {
	return &Interfaces{
		name:  name,
		list:  net.Interfaces,
		addrs: func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() },
	}
}

// IsConnected reports whether a qualifying interface has an address.
func (l *Interfaces) IsConnected() bool {
	_, ok := l.Address()
	return ok
}

// Address returns the first usable unicast address, preferring IPv4.
func (l *Interfaces) Address() (net.IP, bool) {
	ifaces, err := l.list()
	if err != nil {
		return nil, false
	}

	var v6 net.IP
	for _, iface := range ifaces {
		if l.name != "" && iface.Name != l.name {
			continue
		}
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := l.addrs(iface)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok || !ipnet.IP.IsGlobalUnicast() {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4, true
			}
			if v6 == nil {
				v6 = ipnet.IP
			}
		}
	}

	if v6 != nil {
		return v6, true
	}
	return nil, false
}

// Always is a Link with fixed state.
type Always bool

// IsConnected returns the fixed state.
func (a Always) IsConnected() bool {
	return bool(a)
}

// Wait blocks until l reports connected, checking every poll. There is no
// timeout; only ctx cancellation ends the wait early.
func Wait(ctx context.Context, l Link, poll time.Duration, logger *slog.Logger) error {
	if l.IsConnected() {
		logConnected(l, logger)
		return nil
	}

	logger.Info("waiting for network")

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			attempts++
			if l.IsConnected() {
				logConnected(l, logger)
				return nil
			}
			logger.Debug("network not ready", "attempts", attempts)
		}
	}
}

func logConnected(l Link, logger *slog.Logger) {
	if a, ok := l.(Addresser); ok {
		if ip, ok := a.Address(); ok {
			logger.Info("network connected", "ip", ip.String())
			return
		}
	}
	logger.Info("network connected")
}
