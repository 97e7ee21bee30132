package image

import "encoding/binary"

// ELF32 constants this packer actually checks (spec §4.G, §6). Anything
// else about ELF is out of scope: no relocation, no symbol table, no
// section headers beyond what locating program headers requires.
const (
	elfMagic = 0x464C457F // "\x7fELF" read as a little-endian u32

	elfClass32    = 1
	elfData2LSB   = 1
	elfVersionEV1 = 1

	etExec = 2
	emARM  = 40
)

// Program header types the planner honors (spec §3).
const (
	PTLoad     uint32 = 1
	PTArmExidx uint32 = 0x70000001
)

const (
	elfHeaderSize  = 52
	elfPhdrSize    = 32
	ehdrPhoffOff   = 0x1C
	ehdrPhentOff   = 0x2A
	ehdrPhnumOff   = 0x2C
	ehdrEntryOff   = 0x18
	ehdrIdentClass = 4
	ehdrIdentData  = 5
	ehdrTypeOff    = 0x10
	ehdrMachineOff = 0x12
	ehdrVersionOff = 0x14
)

// parseELF32 validates the ELF32/LE/EM_ARM/ET_EXEC header spec.md §4.G and
// §6 require, then walks the program header table, returning one
// rawSegment per entry (filtering is the caller's job — spec.md wants the
// planner, not the recognizer, to decide what to do with unsupported
// types).
func parseELF32(data []byte) (entry uint32, segs []rawSegment, err error) {
	if len(data) < elfHeaderSize {
		return 0, nil, errMalformed("file too small for an ELF32 header")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != elfMagic {
		return 0, nil, errMalformed("bad ELF magic")
	}
	if data[ehdrIdentClass] != elfClass32 {
		return 0, nil, errMalformed("not ELFCLASS32")
	}
	if data[ehdrIdentData] != elfData2LSB {
		return 0, nil, errMalformed("not ELFDATA2LSB")
	}
	if binary.LittleEndian.Uint16(data[ehdrTypeOff:]) != etExec {
		return 0, nil, errMalformed("not ET_EXEC")
	}
	if binary.LittleEndian.Uint16(data[ehdrMachineOff:]) != emARM {
		return 0, nil, errMalformed("not EM_ARM")
	}
	if binary.LittleEndian.Uint32(data[ehdrVersionOff:]) != elfVersionEV1 {
		return 0, nil, errMalformed("not EV_CURRENT")
	}

	entry = binary.LittleEndian.Uint32(data[ehdrEntryOff:])
	phoff := binary.LittleEndian.Uint32(data[ehdrPhoffOff:])
	phentsize := binary.LittleEndian.Uint16(data[ehdrPhentOff:])
	phnum := binary.LittleEndian.Uint16(data[ehdrPhnumOff:])

	segs = make([]rawSegment, 0, phnum)
	for i := uint16(0); i < phnum; i++ {
		base := int(phoff) + int(i)*int(phentsize)
		if base+elfPhdrSize > len(data) {
			return 0, nil, errMalformed("program header table truncated")
		}
		ph := data[base : base+elfPhdrSize]
		s := rawSegment{
			Type:       binary.LittleEndian.Uint32(ph[0:4]),
			FileOffset: binary.LittleEndian.Uint32(ph[4:8]),
			PhysAddr:   binary.LittleEndian.Uint32(ph[12:16]),
			FileSize:   binary.LittleEndian.Uint32(ph[16:20]),
			MemSize:    binary.LittleEndian.Uint32(ph[20:24]),
		}
		if s.FileSize > 0 {
			end := int(s.FileOffset) + int(s.FileSize)
			if s.FileOffset > uint32(len(data)) || end > len(data) {
				return 0, nil, errMalformed("segment data out of file bounds")
			}
			s.Data = data[s.FileOffset:end]
		}
		segs = append(segs, s)
	}
	return entry, segs, nil
}
