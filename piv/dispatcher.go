package piv

import "pivcard/pkg/iso7816"

// COMMAND DISPATCHER (C6):
// Routes an assembled command's INS to the right handler and turns any
// handler error into the Status Word it carries. The one piece of actual
// policy living here rather than in a handler is the PUT DATA admin gate
// (SPEC_FULL.md §4.9): the reference firmware enforces no such check at
// all, and spec.md §9 flags this as a correctness gap whose fix belongs at
// the dispatch layer, not inside the Data-Object Handler.

// dispatch routes one assembled command to its handler and returns the raw
// response body to stage into the session (nil for a response with no
// body), plus any error to be translated to a Status Word by the caller.
func (app *Application) dispatch(ins iso7816.InsCode, p1, p2 byte, data []byte) ([]byte, error) {
	switch ins {
	case iso7816.INS_SELECT:
		return app.handleSelect()

	case insGetData:
		return app.dataObjects.getData(p1, p2, data)

	case insVerify:
		return nil, app.auth.verify(p1, p2, data)

	case iso7816.INS_CHANGE_REFERENCE_DATA:
		return nil, app.auth.changeReferenceData(p1, p2, data)

	case iso7816.INS_RESET_RETRY_COUNTER:
		return nil, app.auth.resetRetryCounter(p1, p2, data)

	case insGeneralAuthenticate:
		return app.generalAuth.generalAuthenticate(p1, p2, data, &app.authCtx)

	case insPutData:
		if !app.AdminStatus {
			return nil, errSecurityStatusNotSat
		}
		return nil, app.dataObjects.putData(p1, p2, data)

	case iso7816.INS_GENERATE_ASYMMETRIC_KEY_PAIR:
		return nil, nil

	default:
		return nil, errInsNotSupported
	}
}

// PIV-specific INS codes not already named in the teacher's generic
// iso7816.InsCode table (GET DATA and PUT DATA reuse the BER-TLV-flagged
// forms of READ/WRITE BINARY's instruction family at different code points
// under SP 800-73-4; GENERAL AUTHENTICATE's BER-only form is the one this
// card application uses).
const (
	insGetData             = iso7816.InsCode(0xCB)
	insPutData             = iso7816.InsCode(0xDB)
	insVerify              = iso7816.INS_VERIFY
	insGeneralAuthenticate = iso7816.INS_GENERAL_AUTHENTICATE_BER
)
