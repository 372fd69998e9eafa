package tlv

import "fmt"

// BER-TLV LENGTH ENCODING (ISO/IEC 7816-4 / X.690 definite short & long forms):
//
// A length field is encoded in one of three forms used by this card
// application (the multi-byte long form beyond 2 length bytes never occurs
// in PIV, whose objects top out well under 65536 bytes):
//
//   - A byte n < 0x80 encodes the value n directly (1-byte header).
//   - 0x81 nn encodes nn (2-byte header).
//   - 0x82 hh ll encodes hh*256 + ll (3-byte header).
//
// LengthOf and EncodeLength are the explicit, spec-mandated counterpart to
// github.com/moov-io/bertlv's full TLV decode: GET DATA responses must force
// the 3-byte (0x82) form regardless of whether the value would fit in a
// shorter encoding, which a generic "shortest form" TLV encoder would not
// produce.

// LengthOf parses a BER-TLV length field starting at the beginning of data.
// It returns the decoded value length and the number of bytes the length
// field itself occupied (the "header size"). An error indicates truncated
// or malformed input.
func LengthOf(data []byte) (valueLength int, headerSize int, err error) {
	if len(data) == 0 {
		return 0, 0, fmt.Errorf("tlv: empty length field")
	}

	first := data[0]
	switch {
	case first < 0x80:
		return int(first), 1, nil
	case first == 0x81:
		if len(data) < 2 {
			return 0, 0, fmt.Errorf("tlv: truncated 0x81 length field")
		}
		return int(data[1]), 2, nil
	case first == 0x82:
		if len(data) < 3 {
			return 0, 0, fmt.Errorf("tlv: truncated 0x82 length field")
		}
		return int(data[1])<<8 | int(data[2]), 3, nil
	default:
		return 0, 0, fmt.Errorf("tlv: unsupported length form 0x%02X", first)
	}
}

// EncodeLength emits a BER-TLV length field for n, choosing the shortest
// valid form unless force82 is set, in which case the 3-byte 0x82 form is
// always used (as PIV's GET DATA response requires for its object length).
func EncodeLength(n int, force82 bool) ([]byte, error) {
	if n < 0 || n > 0xFFFF {
		return nil, fmt.Errorf("tlv: length %d out of supported range", n)
	}

	if force82 {
		return []byte{0x82, byte(n >> 8), byte(n)}, nil
	}

	switch {
	case n < 0x80:
		return []byte{byte(n)}, nil
	case n <= 0xFF:
		return []byte{0x81, byte(n)}, nil
	default:
		return []byte{0x82, byte(n >> 8), byte(n)}, nil
	}
}
