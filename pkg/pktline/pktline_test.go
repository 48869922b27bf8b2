package pktline

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"a",
		"version 2\n",
		strings.Repeat("x", MaxPayloadSize),
	}
	for _, payload := range cases {
		encoded, err := EncodeString(payload)
		require.NoError(t, err)

		pkt, n, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, len(encoded), n)
		require.Equal(t, KindData, pkt.Kind)
		require.Equal(t, payload, string(pkt.Payload))
	}
}

func TestEncodePayloadTooLarge(t *testing.T) {
	_, err := Encode(make([]byte, MaxPayloadSize+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestDecodeSpecialPackets(t *testing.T) {
	cases := map[string]PacketKind{
		FlushPkt:       KindFlush,
		DelimPkt:       KindDelim,
		ResponseEndPkt: KindResponseEnd,
	}
	for raw, kind := range cases {
		pkt, n, err := Decode([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, 4, n)
		require.Equal(t, kind, pkt.Kind)
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	_, _, err := Decode([]byte("00"))
	require.ErrorIs(t, err, ErrShortBuffer)

	encoded, err := EncodeString("hello")
	require.NoError(t, err)
	_, _, err = Decode(encoded[:len(encoded)-2])
	require.ErrorIs(t, err, ErrShortBuffer)
}

func TestDecodeBadLength(t *testing.T) {
	_, _, err := Decode([]byte("zzzzpayload"))
	require.ErrorIs(t, err, ErrBadLength)
}

func TestDecodeErrorPacket(t *testing.T) {
	encoded, err := EncodeString("ERR something broke")
	require.NoError(t, err)

	pkt, _, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, pkt.IsError)
	require.Equal(t, "something broke", string(pkt.Payload))
}

func TestScannerReadsSequentialPackets(t *testing.T) {
	var buf bytes.Buffer
	for _, s := range []string{"one\n", "two\n"} {
		pkt, err := EncodeString(s)
		require.NoError(t, err)
		buf.Write(pkt)
	}
	buf.Write(EncodeFlush())

	sc := NewScanner(&buf)

	require.True(t, sc.Scan())
	require.Equal(t, "one\n", string(sc.Packet().Payload))

	require.True(t, sc.Scan())
	require.Equal(t, "two\n", string(sc.Packet().Payload))

	require.True(t, sc.Scan())
	require.Equal(t, KindFlush, sc.Packet().Kind)

	require.False(t, sc.Scan())
	require.NoError(t, sc.Err())
}

func TestScannerBadLengthStopsWithError(t *testing.T) {
	sc := NewScanner(strings.NewReader("qqqq"))
	require.False(t, sc.Scan())
	require.ErrorIs(t, sc.Err(), ErrBadLength)
}
