package packer

import "github.com/WonderfulToolchain/agbpack/internal/agberr"

// biosUnitAndCount picks the BIOS copy/fill unit (word if length is a
// multiple of 4, else half-word if it's a multiple of 2, else fatal) and
// the resulting unit count, enforcing the 21-bit count limit (spec §4.E).
func biosUnitAndCount(length uint32, dest uint32) (unit uint32, count uint32, err error) {
	switch {
	case length&3 == 0:
		unit = biosUnitWords
		count = length >> 2
	case length&1 == 0:
		unit = 0
		count = length >> 1
	default:
		return 0, 0, agberr.New(agberr.AlignmentViolation, "fill area not aligned: %d @ %#x", length, dest)
	}
	if count >= biosCountLimit {
		return 0, 0, agberr.New(agberr.CapacityExceeded, "fill area too large: %d @ %#x", length, dest)
	}
	return unit, count, nil
}

// appendBiosCopy appends a BIOS copy (source != nil) or fill (source ==
// nil) entry.
func appendBiosCopy(state *PackState, source []byte, destination, length uint32) error {
	unit, count, err := biosUnitAndCount(length, destination)
	if err != nil {
		return err
	}
	flags := unit | count
	entry := SectionEntry{Dest: destination, Flags: flags}
	var copyRec *CopyRecord
	if source == nil {
		entry.Flags |= biosModeFill
		entry.Source = ZeroFillAddress
	} else {
		entry.Source = 0
		copyRec = &CopyRecord{Bytes: source}
	}
	return state.Append(entry, copyRec)
}

// appendTerminal appends the final branch-to-entrypoint command, whose
// negative flags field encodes the backward PC-relative offset from the
// loader's current position back to the entrypoint (spec §4.E).
func appendTerminal(state *PackState, entryPoint uint32) error {
	total := len(state.Entries) + 1
	flags := -(int32(total)*12 + 4)
	entry := SectionEntry{Dest: entryPoint, Flags: uint32(flags)}
	return state.Append(entry, nil)
}
