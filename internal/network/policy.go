package network

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Preset address groups usable in access_hosts
var Presets = map[string][]string{
	"private":   {"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
	"loopback":  {"127.0.0.0/8"},
	"linklocal": {"169.254.0.0/16"},
}

var privateRanges = mustParseCIDRs(Presets["private"])

// Access describes how a session can be reached from a client.
type Access int

const (
	// InternalOnly sessions sit on a private address that the client can
	// only reach through a tunnel via an access host.
	InternalOnly Access = iota
	// OnAccessHost sessions run on a configured access host and are
	// reachable directly.
	OnAccessHost
	// Public sessions have a non-private address.
	Public
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case OnAccessHost:
		return "access-host"
	default:
		return "internal"
	}
}

// Policy holds the access-host ranges and the helper programs used to
// answer network questions about the local host.
type Policy struct {
	AccessHosts      []*net.IPNet // Addresses treated as access hosts
	ReachableProgram string       // Prints "true" when a port is reachable externally
	PrimaryIPProgram string       // Prints the host's primary address

	once      sync.Once
	primaryIP string
}

// ParseAccessHosts converts access host specs into networks. A spec may be
// a preset name, a CIDR or a bare IP address (treated as a single host).
// Examples:
//   - ParseAccessHosts([]string{"private"}) -> 10/8, 172.16/12, 192.168/16
//   - ParseAccessHosts([]string{"10.1.0.4"}) -> 10.1.0.4/32
func ParseAccessHosts(specs []string) ([]*net.IPNet, error) {
	var expanded []string
	for _, spec := range specs {
		spec = strings.TrimSpace(strings.ToLower(spec))
		if spec == "" {
			continue
		}
		if preset, ok := Presets[spec]; ok {
			expanded = append(expanded, preset...)
		} else {
			expanded = append(expanded, spec)
		}
	}

	var nets []*net.IPNet
	seen := make(map[string]bool)
	for _, spec := range deduplicate(expanded) {
		n, err := parseNet(spec)
		if err != nil {
			return nil, err
		}
		if !seen[n.String()] {
			seen[n.String()] = true
			nets = append(nets, n)
		}
	}
	return nets, nil
}

// IsPrivate reports whether ip lies in one of the RFC 1918 ranges.
// Unparseable input is not private.
func IsPrivate(ip string) bool {
	return contains(privateRanges, ip)
}

// IsAccessHost reports whether ip falls within any configured access host.
func (p *Policy) IsAccessHost(ip string) bool {
	return contains(p.AccessHosts, ip)
}

// IsReachable asks the reachability helper whether port is reachable from
// outside. Any failure counts as unreachable.
func (p *Policy) IsReachable(ctx context.Context, port int) bool {
	if p.ReachableProgram == "" || port <= 0 {
		return false
	}
	out, err := exec.CommandContext(ctx, p.ReachableProgram, strconv.Itoa(port)).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}

// PrimaryIP returns the host's primary address. The helper program is
// consulted first; without it the first non-loopback IPv4 address is used.
// The answer is computed once per Policy.
func (p *Policy) PrimaryIP() string {
	p.once.Do(func() {
		if p.PrimaryIPProgram != "" {
			if out, err := exec.Command(p.PrimaryIPProgram).Output(); err == nil {
				if ip := strings.TrimSpace(string(out)); net.ParseIP(ip) != nil {
					p.primaryIP = ip
					return
				}
			}
		}
		if ips := AllIPs(); len(ips) > 0 {
			p.primaryIP = ips[0]
		}
	})
	return p.primaryIP
}

// SetPrimaryIP pins the primary address, bypassing discovery.
func (p *Policy) SetPrimaryIP(ip string) {
	p.once.Do(func() {})
	p.primaryIP = ip
}

// Classify decides how a session at ip listening on port is reached. A
// non-private address only counts as public when the reachability helper
// confirms the port is open from outside.
func (p *Policy) Classify(ctx context.Context, ip string, port int) Access {
	if !IsPrivate(ip) && p.IsReachable(ctx, port) {
		return Public
	}
	if p.IsAccessHost(ip) {
		return OnAccessHost
	}
	return InternalOnly
}

// AllIPs lists the host's non-loopback IPv4 addresses.
func AllIPs() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var ips []string
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			ips = append(ips, v4.String())
		}
	}
	return ips
}

func contains(nets []*net.IPNet, ip string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseNet(spec string) (*net.IPNet, error) {
	if strings.Contains(spec, "/") {
		_, n, err := net.ParseCIDR(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid access host %q: %w", spec, err)
		}
		return n, nil
	}
	ip := net.ParseIP(spec)
	if ip == nil {
		return nil, fmt.Errorf("invalid access host %q", spec)
	}
	if v4 := ip.To4(); v4 != nil {
		return &net.IPNet{IP: v4, Mask: net.CIDRMask(32, 32)}, nil
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(128, 128)}, nil
}

func mustParseCIDRs(specs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(specs))
	for _, spec := range specs {
		n, err := parseNet(spec)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// deduplicate removes duplicate entries from a slice
func deduplicate(items []string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}
