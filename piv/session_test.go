package piv

import (
	"bytes"
	"testing"

	"pivcard/pkg/iso7816"
)

func cmd(cla, ins, p1, p2 byte, data []byte, le int) *iso7816.ParsedCommand {
	return &iso7816.ParsedCommand{CLA: cla, INS: ins, P1: p1, P2: p2, Data: data, Le: le}
}

func TestSession_Assemble_SingleCommand(t *testing.T) {
	s := NewSession()
	ready, err := s.Assemble(cmd(0x00, 0xA4, 0x04, 0x00, []byte{1, 2, 3}, 0), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready {
		t.Fatal("expected ready=true for a non-chained command")
	}
	if !bytes.Equal(s.Data(), []byte{1, 2, 3}) {
		t.Errorf("got %X, want 010203", s.Data())
	}
}

func TestSession_Assemble_Chaining(t *testing.T) {
	s := NewSession()

	ready, err := s.Assemble(cmd(0x10, 0xDB, 0x3F, 0xFF, []byte{0xAA, 0xBB}, 0), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready {
		t.Fatal("expected ready=false mid-chain")
	}

	ready, err = s.Assemble(cmd(0x00, 0xDB, 0x3F, 0xFF, []byte{0xCC}, 0), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready {
		t.Fatal("expected ready=true after final chain segment")
	}
	if !bytes.Equal(s.Data(), []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("got %X, want AABBCC", s.Data())
	}
}

func TestSession_Assemble_ChainingIdentity(t *testing.T) {
	// Testable Property 2: chaining a command's data across multiple
	// segments must assemble to the same buffer as sending it whole.
	full := []byte{1, 2, 3, 4, 5, 6}

	whole := NewSession()
	ready, err := whole.Assemble(cmd(0x00, 0xDB, 0x3F, 0xFF, full, 0), false)
	if err != nil || !ready {
		t.Fatalf("unexpected result for whole command: ready=%v err=%v", ready, err)
	}

	chained := NewSession()
	for i, chunk := range [][]byte{full[:2], full[2:4], full[4:]} {
		isChaining := i < 2
		ready, err := chained.Assemble(cmd(boolToCLA(isChaining), 0xDB, 0x3F, 0xFF, chunk, 0), isChaining)
		if err != nil {
			t.Fatalf("segment %d: unexpected error: %v", i, err)
		}
		if isChaining && ready {
			t.Fatalf("segment %d: expected ready=false mid-chain", i)
		}
		if !isChaining && !ready {
			t.Fatalf("segment %d: expected ready=true on final segment", i)
		}
	}

	if !bytes.Equal(whole.Data(), chained.Data()) {
		t.Errorf("chained assembly %X does not match whole assembly %X", chained.Data(), whole.Data())
	}
}

func boolToCLA(chaining bool) byte {
	if chaining {
		return 0x10
	}
	return 0x00
}

func TestSession_Assemble_AbandonedChainRestarts(t *testing.T) {
	s := NewSession()
	if _, err := s.Assemble(cmd(0x10, 0xDB, 0x3F, 0xFF, []byte{0x01}, 0), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A different INS arrives mid-chain: the session must discard the
	// partial chain and treat this as a fresh command.
	ready, err := s.Assemble(cmd(0x00, 0xA4, 0x04, 0x00, []byte{0x99}, 0), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready {
		t.Fatal("expected ready=true for the restarted command")
	}
	if !bytes.Equal(s.Data(), []byte{0x99}) {
		t.Errorf("got %X, want 99", s.Data())
	}
}

func TestSession_Assemble_OverflowRejected(t *testing.T) {
	s := NewSession()
	big := make([]byte, maxSessionBuffer+1)
	_, err := s.Assemble(cmd(0x00, 0xDB, 0x3F, 0xFF, big, 0), false)
	if err == nil {
		t.Fatal("expected an overflow error")
	}
}

func TestSession_SendAndLongResponse(t *testing.T) {
	s := NewSession()
	payload := bytes.Repeat([]byte{0xAB}, 10)
	if err := s.SetResponse(payload); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}

	first := s.Send(4)
	if !bytes.Equal(first.Data, payload[:4]) {
		t.Errorf("first chunk = %X, want %X", first.Data, payload[:4])
	}
	if first.Status != iso7816.SWMoreData(6) {
		t.Errorf("status = %X, want %X", first.Status, iso7816.SWMoreData(6))
	}
	if !s.IsAwaitingGetResponse() {
		t.Error("expected session to be awaiting GET RESPONSE")
	}

	second := s.Send(6)
	if !bytes.Equal(second.Data, payload[4:]) {
		t.Errorf("second chunk = %X, want %X", second.Data, payload[4:])
	}
	if second.Status != iso7816.SW_NO_ERROR {
		t.Errorf("status = %X, want 9000", second.Status)
	}
	if s.IsAwaitingGetResponse() {
		t.Error("expected session to have completed the response")
	}
}

func TestSession_LongResponse_RoundTrip(t *testing.T) {
	// Testable Property 3: draining a long response via repeated GET
	// RESPONSE with LE=0xFF must concatenate back to the original bytes.
	s := NewSession()
	payload := bytes.Repeat([]byte{0x01, 0x02, 0x03}, 200) // 600 bytes
	if err := s.SetResponse(payload); err != nil {
		t.Fatalf("SetResponse: %v", err)
	}

	var got []byte
	for {
		r := s.Send(0xFF)
		got = append(got, r.Data...)
		if r.Status == iso7816.SW_NO_ERROR {
			break
		}
		if r.Status.SW1() != 0x61 {
			t.Fatalf("unexpected status mid-drain: %X", r.Status)
		}
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(payload))
	}
}

func TestSession_Reset(t *testing.T) {
	s := NewSession()
	_, _ = s.Assemble(cmd(0x00, 0xA4, 0x04, 0x00, []byte{1}, 0), false)
	s.Reset()
	if s.bufLen != 0 || s.bufPos != 0 || s.state != chainNormal {
		t.Error("Reset did not clear session state")
	}
}
