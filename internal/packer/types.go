// Package packer implements the packing planner and command-stream
// assembler: the core of the specification. It classifies loadable
// segments by destination region, decides whether/how to compress each
// one, aggregates EWRAM-bound segments into a single blob, builds the
// 12-byte-entry command stream the in-image loader executes, and lays out
// the final boot-ready image.
package packer

import "github.com/WonderfulToolchain/agbpack/internal/agberr"

// Flag tags for the top bits of SectionEntry.Flags (spec §4.E).
const (
	FlagDecompressNormal     uint32 = 1 << 31
	FlagDecompressEwramFinal uint32 = 1 << 30
	FlagDecompressVramStage  uint32 = 1 << 29

	biosModeFill   uint32 = 1 << 24
	biosUnitWords  uint32 = 1 << 26
	biosCountMask  uint32 = (1 << 21) - 1
	biosCountLimit uint32 = 1 << 21

	// ZeroFillAddress is the BIOS-fill source sentinel: IME's address,
	// guaranteed to read back as zero (spec §4.E).
	ZeroFillAddress uint32 = 0x04000208

	// MaxEntries is the command-stream capacity (spec §3).
	MaxEntries = 1024

	// EwramFinalGuardBytes is the trailing scratch the decompressor's
	// own tail always reserves for an in-place EWRAM decompression
	// (spec §4.D).
	EwramFinalGuardBytes uint32 = 32
)

// SectionEntry is the output's 12-byte, little-endian, packed command
// record (spec §3).
type SectionEntry struct {
	Source uint32
	Dest   uint32
	Flags  uint32
}

// CopyRecord is the in-planner auxiliary paired one-to-one with a
// SectionEntry that carries payload bytes (spec §3). Fill entries and
// other payload-less entries have no CopyRecord at all (a nil slot).
type CopyRecord struct {
	Bytes        []byte
	ReserveAtEnd uint32
}

// PackState is the ordered sequence of SectionEntry with parallel optional
// CopyRecord the planner builds and the emitter drains (spec §3).
type PackState struct {
	Entries []SectionEntry
	Copies  []*CopyRecord
}

// Append adds one entry (and its optional payload record) to the stream,
// enforcing the capacity bound.
func (p *PackState) Append(entry SectionEntry, copy *CopyRecord) error {
	if len(p.Entries) >= MaxEntries {
		return agberr.New(agberr.CapacityExceeded, "too many sections (limit %d)", MaxEntries)
	}
	p.Entries = append(p.Entries, entry)
	p.Copies = append(p.Copies, copy)
	return nil
}

func roundUp4(n uint32) uint32 {
	return (n + 3) &^ 3
}
