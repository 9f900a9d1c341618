package dnsrelay

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// These tests use miekg/dns purely as an independent oracle to build and
// inspect wire-format messages, so the hand-rolled codec in wire.go can be
// checked against a well-tested reference implementation without the
// codec itself depending on that library.

func TestParseQuery(t *testing.T) {
	q := new(dns.Msg)
	q.SetQuestion("example.com.", dns.TypeA)
	q.Id = 0x1234
	q.RecursionDesired = true

	raw, err := q.Pack()
	require.NoError(t, err)

	m, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), m.Header.ID)
	require.True(t, m.Header.RD)
	require.False(t, m.Header.QR)
	require.Len(t, m.Questions, 1)
	require.Equal(t, "example.com", m.Questions[0].Name)
	require.Equal(t, TypeA, m.Questions[0].Type)
	require.Equal(t, ClassINET, m.Questions[0].Class)
}

func TestParseResponseWithAnswers(t *testing.T) {
	q := new(dns.Msg)
	q.SetQuestion("example.com.", dns.TypeA)
	resp := new(dns.Msg)
	resp.SetReply(q)
	rr, err := dns.NewRR("example.com. 300 IN A 93.184.216.34")
	require.NoError(t, err)
	resp.Answer = append(resp.Answer, rr)

	raw, err := resp.Pack()
	require.NoError(t, err)

	m, err := Parse(raw)
	require.NoError(t, err)
	require.True(t, m.Header.QR)
	require.Len(t, m.Answer, 1)
	addr, ok := m.Answer[0].A()
	require.True(t, ok)
	require.Equal(t, [4]byte{93, 184, 216, 34}, addr)
	require.Equal(t, uint32(300), m.Answer[0].TTL)
}

func TestParseCompressedOwnerNames(t *testing.T) {
	// Both answers share the owner name "www.example.com.", which the
	// oracle will compress the second occurrence of into a pointer back
	// at the question section. Decoding both correctly exercises pointer
	// following in decodeName.
	q := new(dns.Msg)
	q.SetQuestion("www.example.com.", dns.TypeA)
	resp := new(dns.Msg)
	resp.SetReply(q)
	a1, err := dns.NewRR("www.example.com. 300 IN A 1.2.3.4")
	require.NoError(t, err)
	a2, err := dns.NewRR("www.example.com. 300 IN A 5.6.7.8")
	require.NoError(t, err)
	resp.Answer = append(resp.Answer, a1, a2)
	resp.Compress = true

	raw, err := resp.Pack()
	require.NoError(t, err)

	m, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, m.Answer, 2)
	require.Equal(t, "www.example.com", m.Answer[0].Name)
	require.Equal(t, "www.example.com", m.Answer[1].Name)
}

func TestSynthesizedCNAMERoundTrips(t *testing.T) {
	rr := NewCNAME("alias.example.com", 120, "target.example.com")
	target, ok := rr.CNAME()
	require.True(t, ok)
	require.Equal(t, "target.example.com", target)
}

func TestParseRejectsShortMessage(t *testing.T) {
	_, err := Parse([]byte{0x00, 0x01})
	require.Error(t, err)
}

func TestParseRejectsPointerLoop(t *testing.T) {
	raw := make([]byte, 14)
	raw[0], raw[1] = 0, 1
	raw[5] = 1 // QDCOUNT = 1
	// Question starts at offset 12, is itself a pointer to offset 12.
	raw[12] = 0xC0
	raw[13] = 12
	_, err := Parse(raw)
	require.Error(t, err)
}

func TestBuildResponseRoundTrips(t *testing.T) {
	q := new(dns.Msg)
	q.SetQuestion("example.com.", dns.TypeA)
	q.Id = 42
	q.RecursionDesired = true
	raw, err := q.Pack()
	require.NoError(t, err)

	req, err := Parse(raw)
	require.NoError(t, err)

	answers := []RR{NewA(req.Questions[0].Name, 60, [4]byte{10, 0, 0, 1})}
	resp, err := BuildResponse(req, answers, RcodeSuccess)
	require.NoError(t, err)

	parsedByOracle := new(dns.Msg)
	require.NoError(t, parsedByOracle.Unpack(resp))
	require.Equal(t, uint16(42), parsedByOracle.Id)
	require.True(t, parsedByOracle.Response)
	require.Len(t, parsedByOracle.Answer, 1)
	require.Equal(t, "example.com.", parsedByOracle.Answer[0].Header().Name)
}

func TestRewriteIDAndMessageID(t *testing.T) {
	q := new(dns.Msg)
	q.SetQuestion("example.com.", dns.TypeA)
	q.Id = 1
	raw, err := q.Pack()
	require.NoError(t, err)

	id, ok := MessageID(raw)
	require.True(t, ok)
	require.Equal(t, uint16(1), id)

	RewriteID(raw, 9999)
	id, ok = MessageID(raw)
	require.True(t, ok)
	require.Equal(t, uint16(9999), id)
}

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	enc, err := encodeName("foo.example.com.")
	require.NoError(t, err)
	name, next, err := decodeName(enc, 0)
	require.NoError(t, err)
	require.Equal(t, "foo.example.com", name)
	require.Equal(t, len(enc), next)
}

func TestEncodeNameRejectsOverlongLabel(t *testing.T) {
	label := make([]byte, 64)
	for i := range label {
		label[i] = 'a'
	}
	_, err := encodeName(string(label) + ".com.")
	require.Error(t, err)
}
