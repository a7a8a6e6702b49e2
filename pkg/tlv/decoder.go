package tlv

import (
	"encoding/binary"
	"io"
)

// Policy controls how the decoder reacts to a record with an unrecognized
// type tag.
type Policy uint8

const (
	// PolicyStrict aborts decoding of the current stream on an unknown tag.
	PolicyStrict Policy = iota
	// PolicySkipUnknown skips past unknown records and continues, relying on
	// the length field to find the next record boundary.
	PolicySkipUnknown
)

// DecodeHeader reads the snapshot framing header from the front of b and
// returns the remaining bytes.
func DecodeHeader(b []byte) (Header, []byte, error) {
	if len(b) < HeaderSize {
		return Header{}, nil, ErrCorruptRecord
	}
	if [4]byte(b[:4]) != Magic {
		return Header{}, nil, ErrBadMagic
	}
	h := Header{
		Version:         b[4],
		Sequence:        binary.LittleEndian.Uint64(b[5:]),
		TimestampMillis: binary.LittleEndian.Uint64(b[13:]),
	}
	if h.Version != FormatVersion {
		return Header{}, nil, ErrUnsupportedVersion
	}
	return h, b[HeaderSize:], nil
}

// DecodeRecord reads one record from the front of b and returns the
// remaining bytes. It fails with ErrCorruptRecord when the declared length
// points past the available bytes; it does not validate the type tag, so a
// caller can skip records it does not understand.
func DecodeRecord(b []byte) (Record, []byte, error) {
	if len(b) < recordHeaderSize {
		return Record{}, nil, ErrCorruptRecord
	}
	length := binary.LittleEndian.Uint32(b[1:])
	if uint64(len(b)-recordHeaderSize) < uint64(length) {
		return Record{}, nil, ErrCorruptRecord
	}
	r := Record{
		Type:  RecordType(b[0]),
		Value: b[recordHeaderSize : recordHeaderSize+int(length)],
	}
	return r, b[recordHeaderSize+int(length):], nil
}

// Decoder lazily walks the records of one snapshot buffer. It is restartable
// from any record boundary via NewDecoderAt and Offset.
type Decoder struct {
	buf    []byte
	off    int
	policy Policy
	header Header
}

// NewDecoder parses the framing header of buf and returns a decoder
// positioned at the first record.
func NewDecoder(buf []byte) (*Decoder, error) {
	return NewDecoderWithPolicy(buf, PolicyStrict)
}

// NewDecoderWithPolicy is NewDecoder with an explicit unknown-type policy.
func NewDecoderWithPolicy(buf []byte, policy Policy) (*Decoder, error) {
	h, _, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	return &Decoder{buf: buf, off: HeaderSize, policy: policy, header: h}, nil
}

// NewDecoderAt resumes decoding of buf at a record boundary previously
// obtained from Offset. The framing header is not re-read.
func NewDecoderAt(buf []byte, off int, header Header, policy Policy) *Decoder {
	return &Decoder{buf: buf, off: off, policy: policy, header: header}
}

// Header returns the snapshot framing header.
func (d *Decoder) Header() Header {
	return d.header
}

// Offset returns the byte offset of the next record boundary.
func (d *Decoder) Offset() int {
	return d.off
}

// Next returns the next decoded entry. It returns io.EOF at the end of the
// buffer, ErrCorruptRecord on a truncated record, and ErrUnknownType on an
// unrecognized tag under PolicyStrict.
func (d *Decoder) Next() (Entry, error) {
	for {
		if d.off >= len(d.buf) {
			return Entry{}, io.EOF
		}
		rec, rest, err := DecodeRecord(d.buf[d.off:])
		if err != nil {
			return Entry{}, err
		}
		next := len(d.buf) - len(rest)

		entry, err := ParseEntry(rec)
		if err == ErrUnknownType && d.policy == PolicySkipUnknown {
			d.off = next
			continue
		}
		if err != nil {
			return Entry{}, err
		}
		d.off = next
		return entry, nil
	}
}
