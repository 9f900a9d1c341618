package dnsrelay

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Rule is one line of the override rule file: domain, query type, and a
// target that's either an address literal, a CNAME name, or the blackhole
// sentinel.
type Rule struct {
	Domain string
	Type   uint16
	Target string
}

type targetKind uint8

const (
	targetAddress targetKind = iota
	targetCNAME
	targetBlackhole
)

type target struct {
	kind  targetKind
	ip    net.IP
	cname string
}

// ruleTargets fans multiple rules for the same (domain, qtype) out into one
// ordered answer list, preserving load order.
type ruleTargets map[uint16][]target

type overrideNode struct {
	children map[string]*overrideNode
	exact    ruleTargets
	wildcard ruleTargets
}

func newOverrideNode() *overrideNode {
	return &overrideNode{children: make(map[string]*overrideNode)}
}

// OverrideTable answers queries from a statically loaded, read-only rule
// set. Matching precedence, first match wins: exact, then longest-suffix
// wildcard ("*.suffix"), then longest-suffix parent domain. It is built
// once and never mutated; a reload builds a new table and the caller swaps
// the pointer atomically (see Server.SetOverrides).
type OverrideTable struct {
	root *overrideNode
	ttl  uint32
}

// NewOverrideTable builds a table from a rule set. Rules with an invalid
// target for their type (e.g. an IPv6 literal for an A rule) are rejected.
func NewOverrideTable(rules []Rule, ttl uint32) (*OverrideTable, error) {
	t := &OverrideTable{root: newOverrideNode(), ttl: ttl}
	for _, r := range rules {
		if err := t.add(r); err != nil {
			return nil, errors.Wrapf(err, "rule %q %s %q", r.Domain, TypeName(r.Type), r.Target)
		}
	}
	return t, nil
}

func (t *OverrideTable) add(r Rule) error {
	domain := strings.ToLower(strings.TrimSuffix(r.Domain, "."))
	if domain == "" {
		return errors.New("empty domain")
	}

	wildcard := false
	path := domain
	if strings.HasPrefix(domain, "*.") {
		wildcard = true
		path = domain[2:]
		if path == "" {
			return errors.New("wildcard rule has no suffix")
		}
	}

	tgt, err := parseTarget(r.Type, r.Target)
	if err != nil {
		return err
	}

	labels := strings.Split(path, ".")
	n := t.root
	for i := len(labels) - 1; i >= 0; i-- {
		child, ok := n.children[labels[i]]
		if !ok {
			child = newOverrideNode()
			n.children[labels[i]] = child
		}
		n = child
	}

	if wildcard {
		if n.wildcard == nil {
			n.wildcard = make(ruleTargets)
		}
		n.wildcard[r.Type] = append(n.wildcard[r.Type], tgt)
	} else {
		if n.exact == nil {
			n.exact = make(ruleTargets)
		}
		n.exact[r.Type] = append(n.exact[r.Type], tgt)
	}
	return nil
}

func parseTarget(qtype uint16, raw string) (target, error) {
	if strings.EqualFold(raw, "blackhole") {
		return target{kind: targetBlackhole}, nil
	}
	switch qtype {
	case TypeCNAME:
		return target{kind: targetCNAME, cname: strings.ToLower(strings.TrimSuffix(raw, "."))}, nil
	case TypeA:
		ip := net.ParseIP(raw)
		if ip == nil || ip.To4() == nil {
			return target{}, errors.Errorf("invalid IPv4 address %q", raw)
		}
		return target{kind: targetAddress, ip: ip}, nil
	case TypeAAAA:
		ip := net.ParseIP(raw)
		if ip == nil || ip.To4() != nil {
			return target{}, errors.Errorf("invalid IPv6 address %q", raw)
		}
		return target{kind: targetAddress, ip: ip}, nil
	default:
		return target{}, errors.Errorf("unsupported record type %s", TypeName(qtype))
	}
}

// lookup walks the trie once, tracking the deepest wildcard and deepest
// parent-domain candidate seen along the way so that "longest suffix wins"
// falls out of always overwriting with the deeper match.
func (t *OverrideTable) lookup(qname string, qtype uint16) ([]target, bool) {
	labels := strings.Split(qname, ".")
	n := t.root
	var wildcard, parent []target

	for i := len(labels) - 1; i >= 0; i-- {
		child, ok := n.children[labels[i]]
		if !ok {
			n = nil
			break
		}
		n = child
		if i > 0 {
			if wc, ok := child.wildcard[qtype]; ok {
				wildcard = wc
			}
			if pc, ok := child.exact[qtype]; ok {
				parent = pc
			}
		}
	}

	if n != nil {
		if exact, ok := n.exact[qtype]; ok {
			return exact, true
		}
	}
	if wildcard != nil {
		return wildcard, true
	}
	if parent != nil {
		return parent, true
	}
	return nil, false
}

// Resolve answers a query from the override table. It returns ok=false on a
// miss. blackhole=true means the caller should synthesize the sentinel
// address (or NXDOMAIN, depending on configuration) rather than use
// answers. ttl is applied to every RR built, including any CNAME target
// that resolves to a further local address (§4.1 CNAME chains).
func (t *OverrideTable) Resolve(qname string, qtype uint16) (answers []RR, blackhole bool, ok bool) {
	qname = strings.ToLower(strings.TrimSuffix(qname, "."))
	targets, hit := t.lookup(qname, qtype)
	if !hit && qtype != TypeCNAME {
		// A name with no rule of the requested type can still be
		// answered through its CNAME rule.
		targets, hit = t.lookup(qname, TypeCNAME)
	}
	if !hit {
		return nil, false, false
	}

	for _, tg := range targets {
		switch tg.kind {
		case targetBlackhole:
			return nil, true, true
		case targetAddress:
			if rr, ok := buildAddressRR(qname, qtype, t.ttl, tg.ip); ok {
				answers = append(answers, rr)
			}
		case targetCNAME:
			answers = append(answers, NewCNAME(qname, t.ttl, tg.cname))
			if sub, subHit := t.lookup(tg.cname, qtype); subHit {
				for _, st := range sub {
					if st.kind == targetAddress {
						if rr, ok := buildAddressRR(tg.cname, qtype, t.ttl, st.ip); ok {
							answers = append(answers, rr)
						}
					}
				}
			}
		}
	}
	return answers, false, true
}

func buildAddressRR(name string, qtype uint16, ttl uint32, ip net.IP) (RR, bool) {
	switch qtype {
	case TypeA:
		ip4 := ip.To4()
		if ip4 == nil {
			return RR{}, false
		}
		var addr [4]byte
		copy(addr[:], ip4)
		return NewA(name, ttl, addr), true
	case TypeAAAA:
		if ip.To4() != nil {
			return RR{}, false
		}
		ip16 := ip.To16()
		if ip16 == nil {
			return RR{}, false
		}
		var addr [16]byte
		copy(addr[:], ip16)
		return NewAAAA(name, ttl, addr), true
	default:
		return RR{}, false
	}
}

// BlackholeAddress returns the synthesized sentinel address for a blackhole
// match: 0.0.0.0 for A, :: for AAAA.
func BlackholeAddress(name string, qtype uint16, ttl uint32) (RR, bool) {
	switch qtype {
	case TypeA:
		return NewA(name, ttl, [4]byte{0, 0, 0, 0}), true
	case TypeAAAA:
		return NewAAAA(name, ttl, [16]byte{}), true
	default:
		return RR{}, false
	}
}
