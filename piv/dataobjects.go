package piv

import (
	"strings"

	"pivcard/pkg/tlv"
)

// DATA-OBJECT HANDLER (C7):
// GET DATA / PUT DATA address objects by a fixed three-byte tag list
// (`5F C1 xx`) or, for the Discovery Object alone, a one-byte tag list
// (`7E`). This module only knows how to translate a tag into an
// ObjectStore path and how to shape the 5C/7E response envelopes; it has
// no opinion on who is allowed to call PUT DATA — that gate lives in the
// dispatcher (see dispatcher.go).

// rid is the Registered Application Provider Identifier for the PIV card
// application, fixed by NIST SP 800-73-4.
var rid = []byte{0xA0, 0x00, 0x00, 0x03, 0x08}

// pix is the Proprietary Identifier Extension completing the PIV AID.
var pix = []byte{0x00, 0x00, 0x10, 0x00, 0x01, 0x00}

// pinPolicy is the PIN Usage Policy value carried in the Discovery Object.
var pinPolicy = []byte{0x40, 0x10}

const (
	objPIVAuthCert       = "piv-pauc"
	objSigCert           = "piv-sigc"
	objKeyManagementCert = "piv-mntc"
	objCardAuthCert      = "piv-cauc"
	objCHUID             = "piv-chu"
	objCCC               = "piv-ccc"

	keyPIVAuth       = "piv-pauk"
	keySig           = "piv-sigk"
	keyKeyManagement = "piv-mntk"
	keyCardAuth      = "piv-cauk"
	keyCardAdmin     = "piv-admk"
)

// objectPathForTag maps a GET/PUT DATA object tag (the byte following
// `5F C1` in the tag list) to its ObjectStore path.
func objectPathForTag(tag byte) (string, bool) {
	switch tag {
	case 0x01:
		return objCardAuthCert, true
	case 0x02:
		return objCHUID, true
	case 0x05:
		return objPIVAuthCert, true
	case 0x07:
		return objCCC, true
	case 0x0A:
		return objSigCert, true
	case 0x0B:
		return objKeyManagementCert, true
	default:
		return "", false
	}
}

// dataObjectHandler implements GET DATA and PUT DATA over an ObjectStore.
type dataObjectHandler struct {
	store ObjectStore
}

// getData parses a `5C`-tagged tag-list from data and returns the bytes to
// place in the session buffer (already framed per §4.5), or an error.
func (h *dataObjectHandler) getData(p1, p2 byte, data []byte) ([]byte, error) {
	if p1 != 0x3F || p2 != 0xFF {
		return nil, errWrongP1P2
	}
	if len(data) < 2 || data[0] != 0x5C {
		return nil, errWrongData
	}
	tagListLen := int(data[1])
	if tagListLen+2 != len(data) {
		return nil, errWrongLength
	}
	tagList := data[2:]

	switch tagListLen {
	case 1:
		if tagList[0] != 0x7E {
			return nil, errFileNotFound
		}
		return h.discoveryObject(), nil
	case 3:
		if tagList[0] != 0x5F || tagList[1] != 0xC1 {
			return nil, errFileNotFound
		}
		path, ok := objectPathForTag(tagList[2])
		if !ok {
			return nil, errFileNotFound
		}
		body, err := h.store.ReadFile(path)
		if err != nil || len(body) == 0 {
			return nil, errFileNotFound
		}
		return encodeGetDataResponse(body)
	default:
		return nil, errFileNotFound
	}
}

// discoveryObject builds the Discovery Object: outer `7E` nesting the AID
// under `4F` and the PIN Usage Policy under `5F 2F`.
func (h *dataObjectHandler) discoveryObject() []byte {
	aid := append(append([]byte{}, rid...), pix...)
	inner := make([]byte, 0, 4+len(aid)+2+len(pinPolicy))
	inner = append(inner, 0x4F, byte(len(aid)))
	inner = append(inner, aid...)
	inner = append(inner, 0x5F, 0x2F, byte(len(pinPolicy)))
	inner = append(inner, pinPolicy...)

	out := make([]byte, 0, 2+len(inner))
	out = append(out, 0x7E, byte(len(inner)))
	out = append(out, inner...)
	return out
}

// encodeGetDataResponse wraps body as `5C 82 hh ll <body>`, forcing the
// three-byte length form per spec.md §4.5's explicit encoding requirement.
func encodeGetDataResponse(body []byte) ([]byte, error) {
	lenField, err := tlv.EncodeLength(len(body), true)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(lenField)+len(body))
	out = append(out, 0x5C)
	out = append(out, lenField...)
	out = append(out, body...)
	return out, nil
}

// discoveryFields mirrors the Discovery Object's named children, tagged the
// way tlv.WriteStructFields expects (as the teacher's own EMV FCI and
// Directory Record types were), purely for human-readable inspection.
type discoveryFields struct {
	AID       []byte `tlv:"4F" fmt:"ascii"`
	PinPolicy []byte `tlv:"5F2F"`
}

// DescribeDiscoveryObject renders the Discovery Object's fields through
// tlv.WriteStructFields, the same struct-inspection helper the teacher's EMV
// directory/FCI describe methods built on.
func DescribeDiscoveryObject() string {
	var sb strings.Builder
	tlv.WriteStructFields(&sb, "Discovery", &discoveryFields{
		AID:       append(append([]byte{}, rid...), pix...),
		PinPolicy: pinPolicy,
	})
	return sb.String()
}

// putData parses the same tag-list structure and overwrites the selected
// object's body with the bytes following the tag-list header. The caller
// (the dispatcher) is responsible for the admin-authentication gate; this
// handler performs no authorization check of its own, per spec.md §4.5 and
// the resolution in SPEC_FULL.md §4.9.
func (h *dataObjectHandler) putData(p1, p2 byte, data []byte) error {
	if p1 != 0x3F || p2 != 0xFF {
		return errWrongP1P2
	}
	if len(data) < 2 || data[0] != 0x5C {
		return errWrongData
	}
	if data[1] != 3 || len(data) < 5 || data[2] != 0x5F || data[3] != 0xC1 {
		return errFileNotFound
	}
	path, ok := objectPathForTag(data[4])
	if !ok {
		return errFileNotFound
	}
	return h.store.WriteFile(path, data[5:])
}
