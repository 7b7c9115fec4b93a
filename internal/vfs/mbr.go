package vfs

import (
	"encoding/binary"

	"github.com/aegros/kernel/internal/errno"
	"github.com/aegros/kernel/internal/klog"
)

// MBR partition types the core recognizes. Anything else is ignored
// with a warning, never refused outright.
const PartTypeFAT16LBA = 0x0E

const (
	mbrSize       = 512
	mbrBootCode   = 446
	mbrPartSize   = 16
	mbrPartCount  = 4
	mbrSignature  = 0xAA55
)

// Partition is one of the MBR's four 16-byte partition table entries:
// status byte, CHS start/end (kept but not interpreted, LBA is
// authoritative), partition type, LBA start, and sector count.
type Partition struct {
	Status      byte
	CHSStart    [3]byte
	Type        byte
	CHSEnd      [3]byte
	LBAStart    uint32
	SectorCount uint32
}

// MBR is the parsed 512-byte master boot record.
type MBR struct {
	Partitions [mbrPartCount]Partition
}

// ParseMBR parses a 512-byte sector. A bad signature ("MBR signature
// mismatch") is a kernel invariant violation and panics rather than
// returning an error.
func ParseMBR(sector []byte) (*MBR, errno.Err) {
	if len(sector) != mbrSize {
		return nil, errno.EINVAL
	}
	sig := binary.LittleEndian.Uint16(sector[510:512])
	if sig != mbrSignature {
		klog.Panicf("mbr: bad signature %#x", sig)
	}
	m := &MBR{}
	for i := 0; i < mbrPartCount; i++ {
		off := mbrBootCode + i*mbrPartSize
		p := &m.Partitions[i]
		p.Status = sector[off]
		copy(p.CHSStart[:], sector[off+1:off+4])
		p.Type = sector[off+4]
		copy(p.CHSEnd[:], sector[off+5:off+8])
		p.LBAStart = binary.LittleEndian.Uint32(sector[off+8 : off+12])
		p.SectorCount = binary.LittleEndian.Uint32(sector[off+12 : off+16])
	}
	return m, errno.OK
}

// RecognizedPartitions returns the indices of partitions the core
// knows how to hand to a filesystem driver (only FAT16-LBA). Others
// are logged and skipped, never faulted on.
func (m *MBR) RecognizedPartitions() []int {
	var out []int
	for i, p := range m.Partitions {
		if p.SectorCount == 0 {
			continue
		}
		if p.Type == PartTypeFAT16LBA {
			out = append(out, i)
		} else {
			klog.Warnf("mbr: ignoring unrecognized partition type %#x at slot %d", p.Type, i)
		}
	}
	return out
}
