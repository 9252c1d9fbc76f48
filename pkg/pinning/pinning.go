// Package pinning compiles operator pin rules into the predicate the
// graph engine consults when it decides what is exempt from
// capacity-driven eviction.
//
// Rule syntax, one rule per string:
//
//	192.0.2.7                exact address
//	10.0.0.0/8               CIDR
//	10.0.0.1-10.0.0.99       inclusive address range
//	port:443                 any host observed on that port
//
// Address, CIDR, and range rules are static. Port rules are learned:
// the feed reports observed (address, port) pairs via ObservePort and
// the matcher remembers which addresses qualified.
package pinning

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
)

type rule struct {
	addr net.IP
	cidr *net.IPNet
	lo   net.IP
	hi   net.IP
	raw  string
}

// Matcher holds the compiled rule set. It is safe for concurrent use:
// the engine calls IsPinned from its sweep while the feed callback
// calls ObservePort.
type Matcher struct {
	rules []rule
	ports map[int]struct{}

	mu      sync.Mutex
	learned map[string]struct{}
}

// Parse compiles rules into a Matcher. An empty slice yields a matcher
// that pins nothing.
func Parse(rules []string) (*Matcher, error) {
	m := &Matcher{
		ports:   make(map[int]struct{}),
		learned: make(map[string]struct{}),
	}
	for _, raw := range rules {
		r := strings.TrimSpace(raw)
		if r == "" {
			continue
		}
		if err := m.addRule(r); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Matcher) addRule(r string) error {
	switch {
	case strings.HasPrefix(r, "port:"):
		p, err := strconv.Atoi(strings.TrimPrefix(r, "port:"))
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("pin rule %q: bad port", r)
		}
		m.ports[p] = struct{}{}
	case strings.Contains(r, "/"):
		_, ipNet, err := net.ParseCIDR(r)
		if err != nil {
			return fmt.Errorf("pin rule %q: %w", r, err)
		}
		m.rules = append(m.rules, rule{cidr: ipNet, raw: r})
	case strings.Contains(r, "-"):
		parts := strings.SplitN(r, "-", 2)
		lo := net.ParseIP(strings.TrimSpace(parts[0]))
		hi := net.ParseIP(strings.TrimSpace(parts[1]))
		if lo == nil || hi == nil {
			return fmt.Errorf("pin rule %q: bad address range", r)
		}
		lo, hi = lo.To16(), hi.To16()
		if bytes.Compare(lo, hi) > 0 {
			return fmt.Errorf("pin rule %q: range start above end", r)
		}
		m.rules = append(m.rules, rule{lo: lo, hi: hi, raw: r})
	default:
		ip := net.ParseIP(r)
		if ip == nil {
			return fmt.Errorf("pin rule %q: not an address, cidr, range, or port rule", r)
		}
		m.rules = append(m.rules, rule{addr: ip, raw: r})
	}
	return nil
}

// IsPinned reports whether the node id matches any rule. Non-address
// ids can only be pinned through a learned port rule.
func (m *Matcher) IsPinned(nodeID string) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	_, ok := m.learned[nodeID]
	m.mu.Unlock()
	if ok {
		return true
	}

	ip := net.ParseIP(nodeID)
	if ip == nil {
		return false
	}
	for _, r := range m.rules {
		switch {
		case r.addr != nil:
			if r.addr.Equal(ip) {
				return true
			}
		case r.cidr != nil:
			if r.cidr.Contains(ip) {
				return true
			}
		case r.lo != nil:
			v := ip.To16()
			if bytes.Compare(v, r.lo) >= 0 && bytes.Compare(v, r.hi) <= 0 {
				return true
			}
		}
	}
	return false
}

// ObservePort records that addr was seen using port. If a port rule
// covers it, the address stays pinned for the matcher's lifetime.
func (m *Matcher) ObservePort(addr string, port int) {
	if m == nil || port == 0 {
		return
	}
	if _, ok := m.ports[port]; !ok {
		return
	}
	m.mu.Lock()
	m.learned[addr] = struct{}{}
	m.mu.Unlock()
}

// Empty reports whether the matcher has no rules at all, so callers
// can skip installing the predicate.
func (m *Matcher) Empty() bool {
	return m == nil || (len(m.rules) == 0 && len(m.ports) == 0)
}
