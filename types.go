package dnsrelay

import (
	"strconv"
	"strings"
)

// Resource record and query types this package recognizes by semantics.
// Everything else is preserved as opaque RDATA.
const (
	TypeA     uint16 = 1
	TypeNS    uint16 = 2
	TypeCNAME uint16 = 5
	TypeSOA   uint16 = 6
	TypePTR   uint16 = 12
	TypeMX    uint16 = 15
	TypeTXT   uint16 = 16
	TypeAAAA  uint16 = 28
)

// ClassINET is the only query class this resolver deals with.
const ClassINET uint16 = 1

// Response codes used when building replies.
const (
	RcodeSuccess        = 0
	RcodeFormatError    = 1
	RcodeServerFailure  = 2
	RcodeNameError      = 3 // NXDOMAIN
	RcodeNotImplemented = 4
	RcodeRefused        = 5
)

// TypeName returns the textual name of a query/RR type, falling back to a
// numeric rendering for anything unrecognized.
func TypeName(t uint16) string {
	switch t {
	case TypeA:
		return "A"
	case TypeNS:
		return "NS"
	case TypeCNAME:
		return "CNAME"
	case TypeSOA:
		return "SOA"
	case TypePTR:
		return "PTR"
	case TypeMX:
		return "MX"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	default:
		return "TYPE" + strconv.Itoa(int(t))
	}
}

// ParseType maps a rule-file type token to its numeric type. Only the three
// types the override table understands are accepted.
func ParseType(s string) (uint16, bool) {
	switch strings.ToUpper(s) {
	case "A":
		return TypeA, true
	case "AAAA":
		return TypeAAAA, true
	case "CNAME":
		return TypeCNAME, true
	default:
		return 0, false
	}
}
