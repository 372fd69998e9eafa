package tlv

import (
	"bytes"
	"testing"
)

func TestLengthOf(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		wantValue  int
		wantHeader int
		wantErr    bool
	}{
		{name: "short form", data: []byte{0x05, 0xAA}, wantValue: 5, wantHeader: 1},
		{name: "0x81 form", data: []byte{0x81, 0xC8}, wantValue: 200, wantHeader: 2},
		{name: "0x82 form", data: []byte{0x82, 0x01, 0x00}, wantValue: 256, wantHeader: 3},
		{name: "empty", data: nil, wantErr: true},
		{name: "truncated 0x81", data: []byte{0x81}, wantErr: true},
		{name: "truncated 0x82", data: []byte{0x82, 0x01}, wantErr: true},
		{name: "unsupported long form", data: []byte{0x83, 0x01, 0x02, 0x03}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, header, err := LengthOf(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if value != tt.wantValue || header != tt.wantHeader {
				t.Errorf("got (%d, %d), want (%d, %d)", value, header, tt.wantValue, tt.wantHeader)
			}
		})
	}
}

func TestEncodeLength(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		force82  bool
		want     []byte
		wantErr  bool
	}{
		{name: "shortest: 1 byte", n: 5, want: []byte{0x05}},
		{name: "shortest: 0x81 boundary", n: 0x80, want: []byte{0x81, 0x80}},
		{name: "shortest: 0x82 boundary", n: 0x100, want: []byte{0x82, 0x01, 0x00}},
		{name: "forced 0x82 for small value", n: 5, force82: true, want: []byte{0x82, 0x00, 0x05}},
		{name: "negative rejected", n: -1, wantErr: true},
		{name: "too large rejected", n: 0x10000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeLength(tt.n, tt.force82)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %X, want %X", got, tt.want)
			}
		})
	}
}
