// Package pivhost plays the host side of an in-process PIV exchange: it
// wraps a *piv.Application behind the teacher package's iso7816.Transmitter
// interface, so the very same iso7816.Client that would drive a real PC/SC
// reader can drive this card application directly, automatically resolving
// 61XX GET RESPONSE continuations exactly as it would against hardware.
package pivhost

import (
	"pivcard/piv"
	"pivcard/pkg/iso7816"
)

// InProcessCard adapts a *piv.Application to iso7816.Transmitter, letting
// iso7816.Client (and its automatic 61XX/6CXX handling) drive a card
// application living in the same process as the test or CLI invoking it.
type InProcessCard struct {
	App *piv.Application
}

// NewInProcessCard wraps app as a Transmitter.
func NewInProcessCard(app *piv.Application) *InProcessCard {
	return &InProcessCard{App: app}
}

// Transmit satisfies iso7816.Transmitter by running cmd straight through the
// application's Process entry point — no serialization boundary beyond the
// raw APDU bytes themselves.
func (c *InProcessCard) Transmit(cmd []byte) ([]byte, error) {
	return c.App.Process(cmd), nil
}

// Client is a thin convenience wrapper pairing an InProcessCard with the
// teacher's iso7816.Client, so callers get Send's auto-chaining for free.
type Client struct {
	*iso7816.Client
	Card *InProcessCard
}

// NewClient builds a Client driving app in-process.
func NewClient(app *piv.Application) *Client {
	card := NewInProcessCard(app)
	return &Client{
		Client: iso7816.NewClient(card),
		Card:   card,
	}
}
