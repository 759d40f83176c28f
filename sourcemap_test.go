package beaker

import (
	"errors"
	"slices"
	"testing"
)

func TestDecodeSourceMap(t *testing.T) {
	tests := []struct {
		name     string
		mappings string
		want     map[int]int
	}{
		{
			name:     "consecutive lines",
			mappings: "AAAA;AACA;AACA",
			want:     map[int]int{0: 0, 1: 1, 2: 2},
		},
		{
			name:     "empty segments repeat the line",
			mappings: "AAAA;AACA;;AACA",
			want:     map[int]int{0: 0, 1: 1, 2: 1, 3: 2},
		},
		{
			name:     "jumps and negative deltas",
			mappings: "AAEA;AAFA;AAgBA",
			want:     map[int]int{0: 2, 1: 0, 2: 16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm, err := DecodeSourceMap([]byte(`{"version":3,"sources":[],"names":[],"mappings":"` + tt.mappings + `"}`))
			if err != nil {
				t.Fatalf("DecodeSourceMap() error = %v", err)
			}
			if sm.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", sm.Len(), len(tt.want))
			}
			for pc, line := range tt.want {
				got, ok := sm.LineForPC(pc)
				if !ok || got != line {
					t.Errorf("LineForPC(%d) = %d, %v, want %d", pc, got, ok, line)
				}
			}
		})
	}
}

func TestDecodeSourceMap_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{"},
		{"bad character", `{"mappings":"AA*A"}`},
		{"truncated", `{"mappings":"AAg"}`},
		{"too few fields", `{"mappings":"AA"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSourceMap([]byte(tt.raw)); err == nil {
				t.Error("DecodeSourceMap() succeeded, want error")
			}
		})
	}
}

func TestSourceMap_PCsForLine(t *testing.T) {
	sm := NewSourceMap(map[int]int{0: 0, 1: 1, 2: 1, 3: 1, 5: 4})

	if got := sm.PCsForLine(1); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("PCsForLine(1) = %v, want [1 2 3]", got)
	}
	if got := sm.PCsForLine(3); len(got) != 0 {
		t.Errorf("PCsForLine(3) = %v, want none", got)
	}

	got := sm.PCsForLine(1)
	got[0] = 99
	if again := sm.PCsForLine(1); again[0] != 1 {
		t.Error("PCsForLine() exposes internal slice")
	}
}

func TestSourceMap_MatchesOfflineAssembly(t *testing.T) {
	p := assemble(t, "#pragma version 8\npushint 1\n\npushbytes 0x0102\nconcat")
	sm, err := p.SourceMap()
	if err != nil {
		t.Fatalf("SourceMap() error = %v", err)
	}
	if got := sm.PCsForLine(3); !slices.Equal(got, []int{3}) {
		t.Errorf("PCsForLine(3) = %v, want [3]", got)
	}
	if _, ok := sm.LineForPC(4); ok {
		t.Error("LineForPC(4) mapped an immediate byte")
	}
}

func TestAddress(t *testing.T) {
	var zero [32]byte
	const zeroAddress = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"
	if got := EncodeAddress(zero); got != zeroAddress {
		t.Errorf("EncodeAddress(zero) = %s, want %s", got, zeroAddress)
	}

	digest := ProgramDigest([]byte{0x08, 0x81, 0x01})
	addr := EncodeAddress(digest)
	if len(addr) != 58 {
		t.Errorf("address length = %d, want 58", len(addr))
	}
	back, err := DecodeAddress(addr)
	if err != nil {
		t.Fatalf("DecodeAddress() error = %v", err)
	}
	if back != digest {
		t.Errorf("DecodeAddress() = %x, want %x", back, digest)
	}
	if LogicSigAddress([]byte{0x08, 0x81, 0x01}) != addr {
		t.Error("LogicSigAddress() disagrees with EncodeAddress(ProgramDigest())")
	}

	corrupt := []byte(addr)
	if corrupt[0] == 'A' {
		corrupt[0] = 'B'
	} else {
		corrupt[0] = 'A'
	}
	for _, bad := range []string{string(corrupt), addr[:40], "not base32!"} {
		if _, err := DecodeAddress(bad); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("DecodeAddress(%q) error = %v, want ErrInvalidAddress", bad, err)
		}
	}
}
