package tlv

import "errors"

// Decode errors
var (
	ErrCorruptRecord      = errors.New("tlv: corrupt record")
	ErrUnknownType        = errors.New("tlv: unknown record type")
	ErrBadMagic           = errors.New("tlv: bad magic bytes")
	ErrUnsupportedVersion = errors.New("tlv: unsupported format version")
)
