package piv

import (
	"log"

	"pivcard/pkg/iso7816"
)

// PivApplication (Application) wires every sub-core behind the single
// Process entry point. It owns no package-level mutable state — the
// Redesign Flag in spec.md §9 — so multiple independent card instances can
// coexist in one process, each with its own store/session/auth context.
type Application struct {
	store       ObjectStore
	crypto      CryptoBackend
	session     *Session
	dataObjects *dataObjectHandler
	auth        *authHandler
	generalAuth *generalAuthHandler

	authCtx     AuthContext
	AdminStatus bool
}

// NewApplication wires an Application from its collaborators. Install must
// be called once on a freshly provisioned store before first use.
func NewApplication(store ObjectStore, userPIN, puk *PIN, crypto CryptoBackend) *Application {
	app := &Application{
		store:   store,
		crypto:  crypto,
		session: NewSession(),
		auth:    &authHandler{userPIN: userPIN, puk: puk},
	}
	app.dataObjects = &dataObjectHandler{store: store}
	app.generalAuth = &generalAuthHandler{store: store, crypto: crypto, admin: &app.AdminStatus}
	return app
}

// Reset returns the application to its post-selection-reset state: the
// session buffer is cleared, PIN validation is dropped, and the auth
// context and admin status are cleared — the same state transitions
// SELECT performs (spec.md §3, §4.4, and §5's "on transport reset or
// re-SELECT" clause).
func (app *Application) Reset() {
	app.session.Reset()
	app.auth.userPIN.Invalidate()
	app.authCtx.Reset()
	app.AdminStatus = false
}

// Install seeds the default objects, keys, and PINs per spec.md §6.3.
func (app *Application) Install() error {
	if err := app.auth.userPIN.Install([]byte("123456\xFF\xFF")); err != nil {
		return err
	}
	if err := app.auth.puk.Install([]byte("12345678")); err != nil {
		return err
	}

	for _, path := range []string{objPIVAuthCert, objSigCert, objKeyManagementCert, objCardAuthCert, objCCC, objCHUID} {
		if err := app.store.WriteFile(path, nil); err != nil {
			return err
		}
	}

	for _, path := range []string{keyPIVAuth, keySig, keyKeyManagement, keyCardAuth} {
		if err := app.store.WriteFile(path, nil); err != nil {
			return err
		}
		if err := app.store.WriteAttr(path, attrKeyAlg, []byte{0xFF}); err != nil {
			return err
		}
	}

	adminKey := make([]byte, 0, 24)
	for i := 0; i < 3; i++ {
		adminKey = append(adminKey, 1, 2, 3, 4, 5, 6, 7, 8)
	}
	if err := app.store.WriteFile(keyCardAdmin, adminKey); err != nil {
		return err
	}
	return app.store.WriteAttr(keyCardAdmin, attrKeyAlg, []byte{algTDEA3Key})
}

// handleSelect builds the Application Property Template response and clears
// per-session authentication state (SPEC_FULL.md §4.10).
func (app *Application) handleSelect() ([]byte, error) {
	inner := make([]byte, 0, 4+len(pix)+4+len(rid))
	inner = append(inner, 0x4F, byte(len(pix)))
	inner = append(inner, pix...)
	inner = append(inner, 0x79, byte(2+len(rid)), 0x4F, byte(len(rid)))
	inner = append(inner, rid...)

	out := make([]byte, 0, 2+len(inner))
	out = append(out, 0x61, byte(len(inner)))
	out = append(out, inner...)

	app.Reset()
	log.Printf("piv: application selected")
	return out, nil
}

// Process runs one physical command APDU through framing, dispatch, and
// response segmentation, returning the raw response APDU bytes. This is
// the card-side mirror of the teacher's iso7816.Client.Send: it never
// returns a Go error, because every failure mode of a card application is
// itself expressed as a Status Word in the returned bytes.
func (app *Application) Process(raw []byte) []byte {
	cmd, err := iso7816.ParseCommandAPDU(raw)
	if err != nil {
		return (&iso7816.ResponseAPDU{Status: iso7816.SW_ERR_INCORRECT_PARAMS_DATA}).Bytes()
	}

	isChaining := cmd.CLA&0x10 != 0
	ready, err := app.session.Assemble(cmd, isChaining)
	if err != nil {
		app.session.Reset()
		return (&iso7816.ResponseAPDU{Status: iso7816.SW_ERR_INCORRECT_PARAMS_DATA}).Bytes()
	}
	if !ready {
		return (&iso7816.ResponseAPDU{Status: iso7816.SW_NO_ERROR}).Bytes()
	}

	ins := iso7816.InsCode(cmd.INS)
	if ins == iso7816.INS_GET_RESPONSE {
		if !app.session.IsAwaitingGetResponse() {
			return (&iso7816.ResponseAPDU{Status: iso7816.SW_ERR_COND_OF_USE_NOT_SAT}).Bytes()
		}
		resp := app.session.Send(cmd.Le)
		return resp.Bytes()
	}

	body, dispatchErr := app.dispatch(ins, cmd.P1, cmd.P2, app.session.Data())
	if dispatchErr != nil {
		app.session.Reset()
		return (&iso7816.ResponseAPDU{Status: statusWordFor(dispatchErr)}).Bytes()
	}

	if err := app.session.SetResponse(body); err != nil {
		app.session.Reset()
		return (&iso7816.ResponseAPDU{Status: iso7816.SW_ERR_UNKNOWN}).Bytes()
	}
	resp := app.session.Send(cmd.Le)
	return resp.Bytes()
}
