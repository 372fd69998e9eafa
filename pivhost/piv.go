package pivhost

import "pivcard/pkg/iso7816"

// AID is the PIV Card Application identifier (RID || PIX), used to SELECT
// the application via the teacher's generic iso7816.SelectByAID helper.
var AID = []byte{
	0xA0, 0x00, 0x00, 0x03, 0x08, // RID
	0x00, 0x00, 0x10, 0x00, 0x01, 0x00, // PIX
}

// SelectPIV builds the SELECT command that targets the PIV application by
// its AID, using the default (first logical channel, no chaining/SM) class.
func SelectPIV() *iso7816.CommandAPDU {
	return iso7816.SelectByAID(iso7816.Class{}, AID)
}

// GetData builds a GET DATA command for the three-byte `5F C1 xx` tag list
// addressing data object tag.
func GetData(tag byte) *iso7816.CommandAPDU {
	ins, _ := iso7816.NewInstruction(0xCB)
	data := []byte{0x5C, 0x03, 0x5F, 0xC1, tag}
	return iso7816.NewCommandAPDU(iso7816.Class{}, ins, 0x3F, 0xFF, data, iso7816.MaxShortLe)
}

// GetDiscoveryObject builds the GET DATA command for the one-byte `7E`
// Discovery Object tag list.
func GetDiscoveryObject() *iso7816.CommandAPDU {
	ins, _ := iso7816.NewInstruction(0xCB)
	data := []byte{0x5C, 0x01, 0x7E}
	return iso7816.NewCommandAPDU(iso7816.Class{}, ins, 0x3F, 0xFF, data, iso7816.MaxShortLe)
}

// PutData builds a PUT DATA command overwriting the object named by tag
// with body.
func PutData(tag byte, body []byte) *iso7816.CommandAPDU {
	ins, _ := iso7816.NewInstruction(0xDB)
	data := append([]byte{0x5C, 0x03, 0x5F, 0xC1, tag}, body...)
	return iso7816.NewCommandAPDU(iso7816.Class{}, ins, 0x3F, 0xFF, data, 0)
}

// Verify builds a VERIFY command for the user PIN (reference 0x80).
// pin == nil checks the current validation state without presenting a
// secret. P1 is always 0x00, so this builder does not produce the P1=0xFF
// form that clears validation.
func Verify(pin []byte) *iso7816.CommandAPDU {
	ins, _ := iso7816.NewInstruction(iso7816.INS_VERIFY)
	return iso7816.NewCommandAPDU(iso7816.Class{}, ins, 0x00, 0x80, pin, 0)
}

// GeneralAuthenticate builds a GENERAL AUTHENTICATE (BER-TLV form) command
// for key reference p2 under algorithm p1, with the raw `7C ...` dynamic
// authentication template as data.
func GeneralAuthenticate(p1, p2 byte, template []byte) *iso7816.CommandAPDU {
	ins, _ := iso7816.NewInstruction(iso7816.INS_GENERAL_AUTHENTICATE_BER)
	return iso7816.NewCommandAPDU(iso7816.Class{}, ins, p1, p2, template, iso7816.MaxShortLe)
}
