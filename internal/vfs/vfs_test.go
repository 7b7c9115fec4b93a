package vfs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathDriveToken(t *testing.T) {
	disk, hasDisk, rest, err := ParsePath("0:/boot/kernel")
	require.True(t, err.Ok())
	assert.True(t, hasDisk)
	assert.EqualValues(t, 0, disk)
	assert.Equal(t, "boot/kernel", rest)
}

func TestParsePathMountRelative(t *testing.T) {
	_, hasDisk, rest, err := ParsePath("/dev/console")
	require.True(t, err.Ok())
	assert.False(t, hasDisk)
	assert.Equal(t, "/dev/console", rest)
}

func TestMountTableLongestPrefix(t *testing.T) {
	mt := NewMountTable()
	rootInode := &Inode{}
	devInode := &Inode{}
	require.True(t, mt.Add("/", 0, nil, rootInode).Ok())
	require.True(t, mt.Add("/dev", 0, nil, devInode).Ok())

	root, rel, ok := mt.Resolve("/dev/console")
	require.True(t, ok)
	assert.Same(t, devInode, root)
	assert.Equal(t, "console", rel)

	root, rel, ok = mt.Resolve("/tmp/a")
	require.True(t, ok)
	assert.Same(t, rootInode, root)
	assert.Equal(t, "tmp/a", rel)
}

func TestMountTableDuplicatePrefixRefused(t *testing.T) {
	mt := NewMountTable()
	require.True(t, mt.Add("/dev", 0, nil, &Inode{}).Ok())
	err := mt.Add("/dev", 0, nil, &Inode{})
	assert.Equal(t, -17, err.Errno())
}

func TestFDTableSmallestUnusedIndex(t *testing.T) {
	ft := NewFDTable(16)
	inode := &Inode{Ops: &Ops{}}
	i1 := ft.Install(&FD{Inode: inode}, 3)
	i2 := ft.Install(&FD{Inode: inode}, 3)
	assert.Equal(t, 3, i1)
	assert.Equal(t, 4, i2)

	require.True(t, ft.Close(i1).Ok())
	i3 := ft.Install(&FD{Inode: inode}, 3)
	assert.Equal(t, 3, i3)
}

func TestFDTableForkIsolation(t *testing.T) {
	ft := NewFDTable(16)
	inode := &Inode{Ops: &Ops{}}
	k := ft.Install(&FD{Inode: inode}, 3)

	child := ft.Fork()
	require.True(t, child.Close(k).Ok())

	_, err := ft.Get(k)
	assert.True(t, err.Ok())
}

func TestParseMBRRejectsBadSignature(t *testing.T) {
	sector := make([]byte, 512)
	assert.Panics(t, func() {
		ParseMBR(sector)
	})
}

func TestParseMBRRecognizesFAT16(t *testing.T) {
	sector := make([]byte, 512)
	binary.LittleEndian.PutUint16(sector[510:512], 0xAA55)
	off := 446
	sector[off+4] = PartTypeFAT16LBA
	binary.LittleEndian.PutUint32(sector[off+8:off+12], 2048)
	binary.LittleEndian.PutUint32(sector[off+12:off+16], 1<<20)

	m, err := ParseMBR(sector)
	require.True(t, err.Ok())
	parts := m.RecognizedPartitions()
	require.Len(t, parts, 1)
	assert.Equal(t, 0, parts[0])
	assert.EqualValues(t, 2048, m.Partitions[0].LBAStart)
}
