package piv

import (
	"fmt"

	"pivcard/pkg/iso7816"
)

// APDU SESSION (C5):
// A single shared buffer plus a three-way state (Normal/Chaining/LongResponse)
// reconciles ISO 7816-4 command chaining on the way in with 61XX GET RESPONSE
// continuation on the way out, exactly as the reference card firmware's
// single static buffer + state byte do. Keeping it as one small state machine
// (rather than, say, two independent buffers) is what lets a long GET DATA
// response and a chained PUT DATA reuse the same bytes without the dispatcher
// needing to know which.
//
// This is the Redesign Flag from spec.md §9: the three raw integer states are
// kept as a typed enum instead of loose booleans, but the transition logic
// below is otherwise a direct, line-by-line port of that state machine.

// chainState mirrors CHAINING_STATE_NORMAL / _CHAINING / _LONG_RESPONSE.
type chainState int

const (
	chainNormal chainState = iota
	chainChaining
	chainLongResponse
)

// maxSessionBuffer bounds the assembled command/response buffer, matching
// the reference firmware's MAX_BUFFER_SIZE.
const maxSessionBuffer = 2000

// Session holds the mutable framing state for one selected PIV application
// instance: the assembled command/response buffer and the chaining state
// machine built on top of it. It has no knowledge of what any particular
// instruction does with the assembled data.
type Session struct {
	buffer []byte
	bufLen int
	bufPos int

	state            chainState
	stateINS         byte
	stateP1, stateP2 byte
}

// NewSession creates a Session ready to process commands, starting in the
// Normal chaining state.
func NewSession() *Session {
	return &Session{
		buffer: make([]byte, maxSessionBuffer),
		state:  chainNormal,
	}
}

// Reset returns the session to its initial Normal state with an empty
// buffer, as SELECT and application reset both require.
func (s *Session) Reset() {
	s.state = chainNormal
	s.bufLen = 0
	s.bufPos = 0
	s.stateINS, s.stateP1, s.stateP2 = 0, 0, 0
}

// Assemble feeds one physical command APDU into the chaining buffer. It
// returns ready=true once a complete (possibly multi-segment) command's data
// is available via Data(), or ready=false if isChaining indicates more
// segments are still expected (the caller should reply 9000 and wait for the
// next segment). An error return means the command must be rejected outright
// (buffer overflow, in the assembly sense).
//
// This is a direct port of piv_process_apdu's buffer-management prologue,
// translated into a loop (the "restart:" label re-enters at the top).
func (s *Session) Assemble(cmd *iso7816.ParsedCommand, isChaining bool) (ready bool, err error) {
	for {
		if s.state == chainNormal {
			s.bufLen = 0
			s.bufPos = 0
			if isChaining {
				s.stateINS = cmd.INS
				s.stateP1 = cmd.P1
				s.stateP2 = cmd.P2
				s.state = chainChaining
			} else {
				if len(cmd.Data) > len(s.buffer) {
					return false, fmt.Errorf("piv: command data exceeds session buffer")
				}
				copy(s.buffer, cmd.Data)
				s.bufLen = len(cmd.Data)
			}
		}

		if s.state == chainChaining {
			if s.stateINS != cmd.INS || s.stateP1 != cmd.P1 || s.stateP2 != cmd.P2 {
				// A chain was abandoned mid-stream: restart as a fresh command.
				s.state = chainNormal
				continue
			}
			if s.bufLen+len(cmd.Data) > len(s.buffer) {
				return false, fmt.Errorf("piv: chained command data exceeds session buffer")
			}
			copy(s.buffer[s.bufLen:], cmd.Data)
			s.bufLen += len(cmd.Data)
			if isChaining {
				return false, nil
			}
			s.state = chainNormal
		}

		if s.state == chainLongResponse && iso7816.InsCode(cmd.INS) != iso7816.INS_GET_RESPONSE {
			// Any instruction other than GET RESPONSE abandons a pending long
			// response; the new command starts a fresh exchange.
			s.state = chainNormal
			continue
		}

		return true, nil
	}
}

// IsAwaitingGetResponse reports whether a prior exchange left response bytes
// still pending retrieval via GET RESPONSE.
func (s *Session) IsAwaitingGetResponse() bool {
	return s.state == chainLongResponse
}

// Data returns the fully assembled command data for the current exchange.
func (s *Session) Data() []byte {
	return s.buffer[:s.bufLen]
}

// SetResponse stages raw response bytes to be drained out via Send, starting
// the response buffer back at position zero. A handler calls this once with
// its full result; chaining the result out over possibly several GET
// RESPONSE round-trips is Send's job.
func (s *Session) SetResponse(data []byte) error {
	if len(data) > len(s.buffer) {
		return fmt.Errorf("piv: response data exceeds session buffer")
	}
	copy(s.buffer, data)
	s.bufLen = len(data)
	s.bufPos = 0
	return nil
}

// Send drains up to le bytes of the staged response, returning a
// ResponseAPDU. If bytes remain after this call, the session enters the
// LongResponse state and the returned status word carries the standard
// 61XX "more data available" warning (capped at 0xFF per GET RESPONSE's
// single-byte Le), exactly mirroring send_response in the reference
// firmware. Once the last byte has been sent, the session returns to the
// Normal state with status 9000.
func (s *Session) Send(le int) iso7816.ResponseAPDU {
	toSend := s.bufLen - s.bufPos
	if toSend > le {
		toSend = le
	}
	if toSend < 0 {
		toSend = 0
	}

	data := make([]byte, toSend)
	copy(data, s.buffer[s.bufPos:s.bufPos+toSend])
	s.bufPos += toSend

	resp := iso7816.ResponseAPDU{Data: data, Status: iso7816.SW_NO_ERROR}
	if s.bufPos < s.bufLen {
		s.state = chainLongResponse
		resp.Status = iso7816.SWMoreData(s.bufLen - s.bufPos)
	} else {
		s.state = chainNormal
	}
	return resp
}
