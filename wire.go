package dnsrelay

import "encoding/binary"

// Parse decodes a DNS wire message per RFC 1035 §4.1. It rejects messages
// shorter than 12 octets, truncated sections, bad label lengths, oversized
// names, and compression pointer loops — all surfaced as *ParseError.
func Parse(data []byte) (*Message, error) {
	if len(data) < 12 {
		return nil, newParseError("message shorter than 12-octet header")
	}

	m := &Message{Raw: data}
	h := &m.Header
	h.ID = binary.BigEndian.Uint16(data[0:2])
	flags := binary.BigEndian.Uint16(data[2:4])
	h.QR = flags&0x8000 != 0
	h.Opcode = uint8(flags >> 11 & 0x0F)
	h.AA = flags&0x0400 != 0
	h.TC = flags&0x0200 != 0
	h.RD = flags&0x0100 != 0
	h.RA = flags&0x0080 != 0
	h.Z = uint8(flags >> 4 & 0x07)
	h.Rcode = uint8(flags & 0x0F)
	h.QDCount = binary.BigEndian.Uint16(data[4:6])
	h.ANCount = binary.BigEndian.Uint16(data[6:8])
	h.NSCount = binary.BigEndian.Uint16(data[8:10])
	h.ARCount = binary.BigEndian.Uint16(data[10:12])

	offset := 12

	var err error
	m.Questions, offset, err = parseQuestions(data, offset, int(h.QDCount))
	if err != nil {
		return nil, err
	}
	m.Answer, offset, err = parseRRs(data, offset, int(h.ANCount))
	if err != nil {
		return nil, err
	}
	m.Ns, offset, err = parseRRs(data, offset, int(h.NSCount))
	if err != nil {
		return nil, err
	}
	m.Extra, _, err = parseRRs(data, offset, int(h.ARCount))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func parseQuestions(data []byte, offset, count int) ([]Question, int, error) {
	if count == 0 {
		return nil, offset, nil
	}
	questions := make([]Question, 0, count)
	for i := 0; i < count; i++ {
		name, next, err := decodeName(data, offset)
		if err != nil {
			return nil, 0, err
		}
		offset = next
		if offset+4 > len(data) {
			return nil, 0, newParseError("truncated question section")
		}
		q := Question{
			Name:  name,
			Type:  binary.BigEndian.Uint16(data[offset : offset+2]),
			Class: binary.BigEndian.Uint16(data[offset+2 : offset+4]),
		}
		offset += 4
		questions = append(questions, q)
	}
	return questions, offset, nil
}

func parseRRs(data []byte, offset, count int) ([]RR, int, error) {
	if count == 0 {
		return nil, offset, nil
	}
	rrs := make([]RR, 0, count)
	for i := 0; i < count; i++ {
		name, next, err := decodeName(data, offset)
		if err != nil {
			return nil, 0, err
		}
		offset = next
		if offset+10 > len(data) {
			return nil, 0, newParseError("truncated resource record")
		}
		rr := RR{
			Name:  name,
			Type:  binary.BigEndian.Uint16(data[offset : offset+2]),
			Class: binary.BigEndian.Uint16(data[offset+2 : offset+4]),
			TTL:   binary.BigEndian.Uint32(data[offset+4 : offset+8]),
		}
		rdlength := int(binary.BigEndian.Uint16(data[offset+8 : offset+10]))
		offset += 10
		if offset+rdlength > len(data) {
			return nil, 0, newParseError("truncated rdata")
		}
		rr.RData = append([]byte(nil), data[offset:offset+rdlength]...)
		offset += rdlength
		rrs = append(rrs, rr)
	}
	return rrs, offset, nil
}

// BuildResponse builds a reply to req: it copies the transaction ID and
// question section, sets QR=1, RA=1, RD=req.RD, RCODE=rcode, ANCOUNT equal
// to len(answers), and emits answers in the given order. Names are always
// emitted uncompressed, which is spec-legal (encoders MAY compress).
func BuildResponse(req *Message, answers []RR, rcode uint8) ([]byte, error) {
	var buf []byte

	flags := uint16(0x8000) // QR=1
	flags |= uint16(req.Header.Opcode&0x0F) << 11
	if req.Header.RD {
		flags |= 0x0100
	}
	flags |= 0x0080 // RA=1
	flags |= uint16(rcode & 0x0F)

	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], req.Header.ID)
	binary.BigEndian.PutUint16(header[2:4], flags)
	binary.BigEndian.PutUint16(header[4:6], uint16(len(req.Questions)))
	binary.BigEndian.PutUint16(header[6:8], uint16(len(answers)))
	binary.BigEndian.PutUint16(header[8:10], 0)
	binary.BigEndian.PutUint16(header[10:12], 0)
	buf = append(buf, header...)

	for _, q := range req.Questions {
		enc, err := encodeName(q.Name)
		if err != nil {
			return nil, err
		}
		buf = append(buf, enc...)
		var typeClass [4]byte
		binary.BigEndian.PutUint16(typeClass[0:2], q.Type)
		binary.BigEndian.PutUint16(typeClass[2:4], q.Class)
		buf = append(buf, typeClass[:]...)
	}

	for _, rr := range answers {
		encoded, err := encodeRR(rr)
		if err != nil {
			return nil, err
		}
		buf = append(buf, encoded...)
	}

	return buf, nil
}

func encodeRR(rr RR) ([]byte, error) {
	enc, err := encodeName(rr.Name)
	if err != nil {
		return nil, err
	}
	var fixed [10]byte
	binary.BigEndian.PutUint16(fixed[0:2], rr.Type)
	binary.BigEndian.PutUint16(fixed[2:4], rr.Class)
	binary.BigEndian.PutUint32(fixed[4:8], rr.TTL)
	binary.BigEndian.PutUint16(fixed[8:10], uint16(len(rr.RData)))
	out := append(enc, fixed[:]...)
	out = append(out, rr.RData...)
	return out, nil
}

// FormatError builds a FORMERR response echoing the request's transaction
// ID. Used when the header could be read but the message body could not be
// parsed.
func FormatError(id uint16) []byte {
	resp, _ := BuildResponse(&Message{Header: Header{ID: id}}, nil, RcodeFormatError)
	return resp
}

// ServFail builds a SERVFAIL response for req.
func ServFail(req *Message) []byte {
	resp, _ := BuildResponse(req, nil, RcodeServerFailure)
	return resp
}

// RewriteID overwrites the transaction ID in a raw wire message in place.
// It's used by the relay to swap between client and relay transaction IDs
// without re-parsing the message.
func RewriteID(raw []byte, id uint16) {
	if len(raw) < 2 {
		return
	}
	binary.BigEndian.PutUint16(raw[0:2], id)
}

// MessageID reads just the transaction ID from a raw wire message.
func MessageID(raw []byte) (uint16, bool) {
	if len(raw) < 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(raw[0:2]), true
}
