package btree

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPageSize = 256

// headerPage builds a 256-byte ID0 header page (V2 banner).
func headerPage(t *testing.T, rootPage, recordCount, pageCount uint32) []byte {
	t.Helper()
	buf := make([]byte, testPageSize)
	binary.LittleEndian.PutUint32(buf[0:4], 0) // next_free_offset, unused
	binary.LittleEndian.PutUint16(buf[4:6], testPageSize)
	binary.LittleEndian.PutUint32(buf[6:10], rootPage)
	binary.LittleEndian.PutUint32(buf[10:14], recordCount)
	binary.LittleEndian.PutUint32(buf[14:18], pageCount)
	buf[18] = 0 // unk12
	copy(buf[19:], "B-tree v2\x00")
	// byte at 19+10=29 is unk1d, left zero; header_len = 30.
	return buf
}

// putRecordV20 writes a v20 key/value record (u16-len-prefixed key then
// value, no leading unknown byte) at the given page offset.
func putRecordV20(page []byte, offset int, key, value string) {
	binary.LittleEndian.PutUint16(page[offset:], uint16(len(key)))
	offset += 2
	copy(page[offset:], key)
	offset += len(key)
	binary.LittleEndian.PutUint16(page[offset:], uint16(len(value)))
	offset += 2
	copy(page[offset:], value)
}

func putLeafSlot(page []byte, slot int, indent, recofs uint16) {
	off := 6 * (slot + 1)
	binary.LittleEndian.PutUint16(page[off:], indent)
	binary.LittleEndian.PutUint16(page[off+2:], 0) // unknown1
	binary.LittleEndian.PutUint16(page[off+4:], recofs)
}

func putIndexSlot(page []byte, slot int, child uint32, recofs uint16) {
	off := 6 * (slot + 1)
	binary.LittleEndian.PutUint32(page[off:], child)
	binary.LittleEndian.PutUint16(page[off+4:], recofs)
}

// TestReadSingleLeafPage builds a header plus a single leaf page with
// prefix-compressed keys and checks the flattened, sorted entry list.
func TestReadSingleLeafPage(t *testing.T) {
	header := headerPage(t, 1, 3, 1)

	leaf := make([]byte, testPageSize)
	binary.LittleEndian.PutUint32(leaf[0:4], 0) // preceding = 0 (leaf)
	binary.LittleEndian.PutUint16(leaf[4:6], 3) // count

	putLeafSlot(leaf, 0, 0, 40) // "A" -> "1"
	putLeafSlot(leaf, 1, 1, 46) // indent 1 onto "A" + "B" -> "AB" -> "2"
	putLeafSlot(leaf, 2, 0, 52) // "B" -> "3"

	putRecordV20(leaf, 40, "A", "1")
	putRecordV20(leaf, 46, "B", "2")
	putRecordV20(leaf, 52, "B", "3")

	raw := append(append([]byte{}, header...), leaf...)
	sec, err := Read(bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Len(t, sec.Entries, 3)
	require.Equal(t, "A", string(sec.Entries[0].Key))
	require.Equal(t, "1", string(sec.Entries[0].Value))
	require.Equal(t, "AB", string(sec.Entries[1].Key))
	require.Equal(t, "2", string(sec.Entries[1].Value))
	require.Equal(t, "B", string(sec.Entries[2].Key))
	require.Equal(t, "3", string(sec.Entries[2].Value))
}

// TestReadIndexWithChildren builds a 3-page tree (one index root with a
// preceding leaf and one indexed child leaf) and checks that the final
// entry order interleaves the subtrees correctly around the index key.
func TestReadIndexWithChildren(t *testing.T) {
	header := headerPage(t, 1, 5, 3)

	root := make([]byte, testPageSize)
	binary.LittleEndian.PutUint32(root[0:4], 2) // preceding = page 2
	binary.LittleEndian.PutUint16(root[4:6], 1) // count
	putIndexSlot(root, 0, 3, 40)                // child = page 3, key "M"
	putRecordV20(root, 40, "M", "mid")

	left := make([]byte, testPageSize)
	binary.LittleEndian.PutUint32(left[0:4], 0)
	binary.LittleEndian.PutUint16(left[4:6], 2)
	putLeafSlot(left, 0, 0, 40)
	putLeafSlot(left, 1, 0, 46)
	putRecordV20(left, 40, "A", "1")
	putRecordV20(left, 46, "B", "2")

	right := make([]byte, testPageSize)
	binary.LittleEndian.PutUint32(right[0:4], 0)
	binary.LittleEndian.PutUint16(right[4:6], 2)
	putLeafSlot(right, 0, 0, 40)
	putLeafSlot(right, 1, 0, 46)
	putRecordV20(right, 40, "N", "3")
	putRecordV20(right, 46, "O", "4")

	var raw []byte
	raw = append(raw, header...)
	raw = append(raw, root...)
	raw = append(raw, left...)
	raw = append(raw, right...)

	sec, err := Read(bytes.NewReader(raw), false)
	require.NoError(t, err)
	keys := make([]string, len(sec.Entries))
	for i, e := range sec.Entries {
		keys[i] = string(e.Key)
	}
	require.Equal(t, []string{"A", "B", "M", "N", "O"}, keys)
}

// TestReadRejectsPageCycle builds an index page whose child points back
// at itself and checks that the page-revisit guard rejects it instead
// of recursing forever.
func TestReadRejectsPageCycle(t *testing.T) {
	header := headerPage(t, 1, 1, 1)

	root := make([]byte, testPageSize)
	binary.LittleEndian.PutUint32(root[0:4], 1) // preceding points at itself
	binary.LittleEndian.PutUint16(root[4:6], 1)
	putIndexSlot(root, 0, 1, 40) // child also points at itself
	putRecordV20(root, 40, "M", "mid")

	raw := append(append([]byte{}, header...), root...)
	_, err := Read(bytes.NewReader(raw), false)
	require.Error(t, err)
}

func TestReadRejectsEmptyRootWithRecords(t *testing.T) {
	header := headerPage(t, 0, 1, 0)
	_, err := Read(bytes.NewReader(header), false)
	require.Error(t, err)
}

func TestReadEmptyTree(t *testing.T) {
	header := headerPage(t, 0, 0, 0)
	sec, err := Read(bytes.NewReader(header), false)
	require.NoError(t, err)
	require.Empty(t, sec.Entries)
}

func TestReadRejectsBadVersionBanner(t *testing.T) {
	header := headerPage(t, 0, 0, 0)
	copy(header[19:], "not a known banner\x00")
	_, err := Read(bytes.NewReader(header), false)
	require.Error(t, err)
}
