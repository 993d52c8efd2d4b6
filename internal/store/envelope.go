package store

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// Value encoding: varint headerLen | header | payload | crc32c(header|payload).
// The header is 8 bytes big-endian ordering value followed by the logical id;
// the payload is the JSON document.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var errCorruptEnvelope = errors.New("store: corrupt record envelope")

func encodeEnvelope(order uint64, logicalID string, payload []byte) []byte {
	header := make([]byte, 8+len(logicalID))
	binary.BigEndian.PutUint64(header[:8], order)
	copy(header[8:], logicalID)

	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

type envelope struct {
	order   uint64
	id      string
	payload []byte
}

func decodeEnvelope(b []byte) (envelope, error) {
	if len(b) < 1+8+4 {
		return envelope{}, errCorruptEnvelope
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || hlen < 8 || n+int(hlen)+4 > len(b) {
		return envelope{}, errCorruptEnvelope
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return envelope{}, errCorruptEnvelope
	}
	return envelope{
		order:   binary.BigEndian.Uint64(header[:8]),
		id:      string(header[8:]),
		payload: append([]byte(nil), payload...),
	}, nil
}
