package blob

import (
	"encoding/binary"
	"fmt"
)

// Variable-length payloads (way node lists, relation member lists) are
// stored as little-endian packed blobs so they survive a round trip
// through any engine column type.

// EncodeNds packs an ordered node id list.
func EncodeNds(nds []int64) []byte {
	buf := make([]byte, 4+8*len(nds))
	binary.LittleEndian.PutUint32(buf, uint32(len(nds)))
	for i, nd := range nds {
		binary.LittleEndian.PutUint64(buf[4+8*i:], uint64(nd))
	}
	return buf
}

// DecodeNds unpacks an ordered node id list.
func DecodeNds(buf []byte) ([]int64, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("nds blob too short: %d bytes", len(buf))
	}
	count := int(binary.LittleEndian.Uint32(buf))
	if len(buf) != 4+8*count {
		return nil, fmt.Errorf("nds blob length %d does not match count %d", len(buf), count)
	}
	nds := make([]int64, count)
	for i := range nds {
		nds[i] = int64(binary.LittleEndian.Uint64(buf[4+8*i:]))
	}
	return nds, nil
}

// EncodeMembers packs a relation member list. Each member is a type
// byte, an id, and a length-prefixed role.
func EncodeMembers(members []Member) []byte {
	size := 4
	for _, m := range members {
		size += 1 + 8 + 2 + len(m.Role)
	}
	buf := make([]byte, 0, size)

	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(members)))
	buf = append(buf, scratch[:4]...)

	for _, m := range members {
		buf = append(buf, byte(m.Type))
		binary.LittleEndian.PutUint64(scratch[:], uint64(m.Ref))
		buf = append(buf, scratch[:]...)
		binary.LittleEndian.PutUint16(scratch[:2], uint16(len(m.Role)))
		buf = append(buf, scratch[:2]...)
		buf = append(buf, m.Role...)
	}
	return buf
}

// DecodeMembers unpacks a relation member list.
func DecodeMembers(buf []byte) ([]Member, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("members blob too short: %d bytes", len(buf))
	}
	count := int(binary.LittleEndian.Uint32(buf))
	members := make([]Member, 0, count)

	off := 4
	for i := 0; i < count; i++ {
		if off+11 > len(buf) {
			return nil, fmt.Errorf("members blob truncated at member %d", i)
		}
		mtype := MemberType(buf[off])
		if mtype > MemberRelation {
			return nil, fmt.Errorf("invalid member type %d at member %d", mtype, i)
		}
		ref := int64(binary.LittleEndian.Uint64(buf[off+1:]))
		roleLen := int(binary.LittleEndian.Uint16(buf[off+9:]))
		off += 11
		if off+roleLen > len(buf) {
			return nil, fmt.Errorf("members blob role truncated at member %d", i)
		}
		role := string(buf[off : off+roleLen])
		off += roleLen

		members = append(members, Member{Type: mtype, Ref: ref, Role: role})
	}
	if off != len(buf) {
		return nil, fmt.Errorf("members blob has %d trailing bytes", len(buf)-off)
	}
	return members, nil
}
