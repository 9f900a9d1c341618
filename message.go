package dnsrelay

import "strconv"

// Header is the 12-octet DNS message header (RFC 1035 §4.1.1).
type Header struct {
	ID      uint16
	QR      bool
	Opcode  uint8
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       uint8
	Rcode   uint8
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Question is one entry of the question section.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// RR is a single resource record. RData is opaque wire bytes for any type
// this package doesn't decode semantically; A, AAAA and CNAME expose typed
// accessors below.
type RR struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	RData []byte
}

// Message is a fully parsed view of a DNS wire message.
type Message struct {
	Header    Header
	Questions []Question
	Answer    []RR
	Ns        []RR
	Extra     []RR

	// Raw holds the original octet stream, preserved for relay pass-through.
	Raw []byte
}

// Question returns the first question, or the zero value if there is none.
func (m *Message) Question() Question {
	if len(m.Questions) == 0 {
		return Question{}
	}
	return m.Questions[0]
}

// A returns the RR's RDATA decoded as an IPv4 address, and whether it was
// well-formed A record data (exactly 4 octets).
func (r RR) A() ([4]byte, bool) {
	var addr [4]byte
	if len(r.RData) != 4 {
		return addr, false
	}
	copy(addr[:], r.RData)
	return addr, true
}

// AAAA returns the RR's RDATA decoded as an IPv6 address.
func (r RR) AAAA() ([16]byte, bool) {
	var addr [16]byte
	if len(r.RData) != 16 {
		return addr, false
	}
	copy(addr[:], r.RData)
	return addr, true
}

// CNAME returns the RR's RDATA decoded as a target name. RData holds the
// name in wire format; compression pointers in RDATA copied out of a
// parsed message are not resolved against that message.
func (r RR) CNAME() (string, bool) {
	if r.Type != TypeCNAME {
		return "", false
	}
	name, _, err := decodeName(r.RData, 0)
	if err != nil {
		return "", false
	}
	return name, true
}

// NewA builds an A record.
func NewA(name string, ttl uint32, addr [4]byte) RR {
	return RR{Name: name, Type: TypeA, Class: ClassINET, TTL: ttl, RData: addr[:]}
}

// NewAAAA builds an AAAA record.
func NewAAAA(name string, ttl uint32, addr [16]byte) RR {
	return RR{Name: name, Type: TypeAAAA, Class: ClassINET, TTL: ttl, RData: addr[:]}
}

// NewCNAME builds a CNAME record pointing at target, wire-encoded
// (uncompressed) in RData. A target that cannot be encoded leaves RData
// empty.
func NewCNAME(name string, ttl uint32, target string) RR {
	rdata, err := encodeName(target)
	if err != nil {
		rdata = nil
	}
	return RR{Name: name, Type: TypeCNAME, Class: ClassINET, TTL: ttl, RData: rdata}
}

// qName returns the query name of the first question in a message, or "" if
// there is none. Mirrors the teacher's qName helper.
func qName(m *Message) string {
	return m.Question().Name
}

// qType returns the textual query type of the first question.
func qType(m *Message) string {
	return TypeName(m.Question().Type)
}

// rCodeName returns the textual response code of a message.
func rCodeName(rcode uint8) string {
	switch rcode {
	case RcodeSuccess:
		return "NOERROR"
	case RcodeFormatError:
		return "FORMERR"
	case RcodeServerFailure:
		return "SERVFAIL"
	case RcodeNameError:
		return "NXDOMAIN"
	case RcodeNotImplemented:
		return "NOTIMP"
	case RcodeRefused:
		return "REFUSED"
	default:
		return "RCODE" + strconv.Itoa(int(rcode))
	}
}
