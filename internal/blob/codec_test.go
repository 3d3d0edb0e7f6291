package blob

import (
	"reflect"
	"testing"
)

func TestNdsCodecPreservesOrder(t *testing.T) {
	nds := []int64{5, 3, 9, 3, -42, 1 << 40}
	decoded, err := DecodeNds(EncodeNds(nds))
	if err != nil {
		t.Fatalf("DecodeNds failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, nds) {
		t.Errorf("decoded = %v, want %v", decoded, nds)
	}
}

func TestDecodeNdsRejectsCorruptBlobs(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"short header", []byte{1, 0}},
		{"count mismatch", append(EncodeNds([]int64{1, 2}), 0xff)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeNds(tt.buf); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestMembersCodec(t *testing.T) {
	members := []Member{
		{Type: MemberWay, Ref: 1001, Role: "outer"},
		{Type: MemberWay, Ref: 1002, Role: "inner"},
		{Type: MemberNode, Ref: 7, Role: "admin_centre"},
		{Type: MemberRelation, Ref: -3, Role: ""},
	}
	decoded, err := DecodeMembers(EncodeMembers(members))
	if err != nil {
		t.Fatalf("DecodeMembers failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, members) {
		t.Errorf("decoded = %+v, want %+v", decoded, members)
	}
}

func TestMembersCodecEmpty(t *testing.T) {
	decoded, err := DecodeMembers(EncodeMembers(nil))
	if err != nil {
		t.Fatalf("DecodeMembers failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("decoded %d members, want 0", len(decoded))
	}
}

func TestDecodeMembersRejectsCorruptBlobs(t *testing.T) {
	good := EncodeMembers([]Member{{Type: MemberWay, Ref: 1, Role: "outer"}})
	tests := []struct {
		name string
		buf  []byte
	}{
		{"empty", nil},
		{"truncated member", good[:8]},
		{"trailing bytes", append(append([]byte{}, good...), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeMembers(tt.buf); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestParseRelType(t *testing.T) {
	tests := []struct {
		in   string
		want RelType
	}{
		{"boundary", RelBoundary},
		{"multipolygon", RelMultipolygon},
		{"route", RelNone},
		{"", RelNone},
	}
	for _, tt := range tests {
		if got := ParseRelType(tt.in); got != tt.want {
			t.Errorf("ParseRelType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
