// Package image implements the packer's input recognizer (spec component
// G): it tells a raw multiboot image apart from a linked ELF32 executable
// and produces the entry point and segment list the planner consumes.
package image

import (
	"encoding/binary"

	"github.com/WonderfulToolchain/agbpack/internal/agberr"
	"github.com/WonderfulToolchain/agbpack/internal/region"
)

// Mode tags which input shape was recognized.
type Mode int

const (
	ModeELF Mode = iota
	ModeRaw
)

// rawSegment is the internal, pre-filter view of a program header; the
// planner is the one that decides which types it honors (spec §3).
type rawSegment struct {
	Type       uint32
	FileOffset uint32
	PhysAddr   uint32
	FileSize   uint32
	MemSize    uint32
	Data       []byte
}

// Segment is a filtered, loadable segment as the planner consumes it.
type Segment struct {
	Type     uint32
	PhysAddr uint32
	FileSize uint32
	MemSize  uint32
	Data     []byte
}

// Image is the recognizer's output.
type Image struct {
	Mode     Mode
	Entry    uint32
	Segments []Segment
	// Raw holds the whole input file, only populated in ModeRaw: the
	// emitter needs bytes [4, 0xC0) verbatim for the header copy (spec
	// §4.F step 3, §9 asymmetry note).
	Raw []byte
}

func errMalformed(msg string) *agberr.Error {
	return agberr.New(agberr.InputMalformed, "%s", msg)
}

// rawImageMinLen, rawLogoByteOff and friends are the exact byte offsets the
// heuristic in spec §4.G inspects.
const (
	rawImageMinLen  = 0xE0
	rawBranchOpOff  = 0x03
	rawBranchOpcode = 0xEA
	rawLogoByteOff  = 0xB2
	rawLogoByte     = 0x96
	rawTailLoOff    = 0xC2
	rawTailHiOff    = 0xC3
	rawBranchWordOff = 0xC0
	rawEntryBase    = 0xC8
)

// Recognize implements spec §4.G: a raw multiboot image is detected by a
// fixed byte signature; anything else is parsed as an ELF32/LE/EM_ARM
// executable. Any other shape is fatal.
func Recognize(data []byte) (*Image, error) {
	if len(data) >= rawImageMinLen &&
		data[rawBranchOpOff] == rawBranchOpcode &&
		data[rawLogoByteOff] == rawLogoByte {

		if !(data[rawTailLoOff] == 0x00 && data[rawTailHiOff] == 0xEA) {
			return nil, errMalformed("not a valid multiboot image")
		}
		if uint32(len(data)) > region.EWRAMSize {
			return nil, errMalformed("raw image larger than EWRAM")
		}
		branch24 := binary.LittleEndian.Uint32(data[rawBranchWordOff:rawBranchWordOff+4]) & 0x00FFFFFF
		entry := region.EWRAMStart + rawEntryBase + (branch24 << 2)
		return &Image{Mode: ModeRaw, Entry: entry, Raw: data}, nil
	}

	entry, raw, err := parseELF32(data)
	if err != nil {
		return nil, err
	}
	segs := make([]Segment, 0, len(raw))
	for _, r := range raw {
		segs = append(segs, Segment{Type: r.Type, PhysAddr: r.PhysAddr, FileSize: r.FileSize, MemSize: r.MemSize, Data: r.Data})
	}
	return &Image{Mode: ModeELF, Entry: entry, Segments: segs}, nil
}
