package pktline

import (
	"bufio"
	"fmt"
	"io"
)

// Scanner reads successive pkt-line packets from a stream. Unlike Decode,
// which operates on an already-buffered slice, Scanner pulls exactly as
// many bytes as each packet declares, which is what request/response
// bodies require since packfile payloads can be gigabytes long.
type Scanner struct {
	r    *bufio.Reader
	pkt  Packet
	err  error
	done bool
}

// NewScanner wraps r for sequential packet reads.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Scan reads the next packet. It returns false at end of stream or on
// error; callers should check Err() after a false return to distinguish
// a clean EOF (Err() == nil) from a framing error.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(s.r, header); err != nil {
		if err == io.EOF {
			s.done = true
			return false
		}
		s.err = fmt.Errorf("pktline scan: read length header: %w", err)
		s.done = true
		return false
	}

	switch string(header) {
	case FlushPkt:
		s.pkt = Packet{Kind: KindFlush}
		return true
	case DelimPkt:
		s.pkt = Packet{Kind: KindDelim}
		return true
	case ResponseEndPkt:
		s.pkt = Packet{Kind: KindResponseEnd}
		return true
	}

	length, err := parseHexLength(header)
	if err != nil {
		s.err = err
		s.done = true
		return false
	}
	if length < minDataPktBytes || length > MaxPacketSize {
		s.err = fmt.Errorf("%w: %d", ErrBadLength, length)
		s.done = true
		return false
	}

	payload := make([]byte, length-4)
	if _, err := io.ReadFull(s.r, payload); err != nil {
		s.err = fmt.Errorf("pktline scan: read payload: %w", err)
		s.done = true
		return false
	}

	pkt := Packet{Kind: KindData, Payload: payload}
	if len(payload) >= 4 && string(payload[:4]) == "ERR " {
		pkt.IsError = true
		pkt.Payload = payload[4:]
	}
	s.pkt = pkt
	return true
}

// Packet returns the most recently scanned packet.
func (s *Scanner) Packet() Packet { return s.pkt }

// Err returns the first non-EOF error encountered, if any.
func (s *Scanner) Err() error { return s.err }

// Reader exposes the scanner's underlying buffered reader so a caller can
// switch to raw byte reads after the pkt-line command section ends (e.g.
// to consume a trailing packfile with no further framing).
func (s *Scanner) Reader() io.Reader { return s.r }
