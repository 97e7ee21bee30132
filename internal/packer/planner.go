package packer

import (
	"github.com/WonderfulToolchain/agbpack/internal/agberr"
	"github.com/WonderfulToolchain/agbpack/internal/image"
	"github.com/WonderfulToolchain/agbpack/internal/region"
)

// ROMSegment is a segment whose bytes are written directly into the output
// file at a ROM-relative offset instead of going through the command
// stream (spec §4.C "ROM-range destination").
type ROMSegment struct {
	PhysAddr uint32
	Data     []byte
}

// PlanResult is everything the emitter needs to assemble the final image.
type PlanResult struct {
	State         *PackState
	EntryPoint    uint32
	MultibootMode bool
	ROMSegments   []ROMSegment
	RawInput      []byte
}

// isHonoredType reports whether a program header type is one the planner
// ever acts on (spec §3: "Only type ∈ {LOAD, ARCH_EXIDX} is honored").
func isHonoredType(t uint32) bool {
	return t == image.PTLoad || t == image.PTArmExidx
}

// Plan runs the full packing pipeline (spec §4) over a recognized input
// image and returns the assembled command stream plus whatever the emitter
// needs to lay out the rest of the file.
func Plan(img *image.Image, opts Options) (*PlanResult, error) {
	if img.Mode == image.ModeRaw {
		return planRaw(img, opts)
	}
	return planELF(img, opts)
}

// planRaw handles the raw-multiboot-input special case (spec §4.G, §9):
// the whole image past its 0xC8-byte header is treated as a single EWRAM
// blob and compressed as COMPRESSED_EWRAM_FINAL.
func planRaw(img *image.Image, opts Options) (*PlanResult, error) {
	const ewramHeaderBytes = 0xC8
	state := &PackState{}

	data := img.Raw[ewramHeaderBytes:]
	window := region.EWRAMSize - uint32(len(img.Raw)) - EwramFinalGuardBytes
	opts.Logger.Printf("compressing EWRAM data (%#x - %#x), window = %d bytes\n",
		region.EWRAMStart+ewramHeaderBytes, region.EWRAMStart+uint32(len(img.Raw)), window)
	if err := compressEwramFinal(state, opts, data, region.EWRAMStart+ewramHeaderBytes, window); err != nil {
		return nil, err
	}

	if err := appendTerminal(state, img.Entry); err != nil {
		return nil, err
	}

	return &PlanResult{
		State:         state,
		EntryPoint:    img.Entry,
		MultibootMode: true,
		RawInput:      img.Raw,
	}, nil
}

// planELF implements the ELF pass ordering of spec §4.C exactly: ROM
// segments first, then non-8-bit-writable destinations, then the
// remaining segments (file-backed EWRAM ones aggregated; other file-backed
// ones compressed/copied and non-EWRAM BSS filled immediately), then the
// aggregated EWRAM blob, then EWRAM BSS fills, then the terminal branch.
func planELF(img *image.Image, opts Options) (*PlanResult, error) {
	segs := img.Segments
	processed := make([]bool, len(segs))
	state := &PackState{}
	aggregator := NewEWRAMAggregator()
	multibootMode := true
	var romSegs []ROMSegment

	// Pass 0: ROM-range destinations are written directly into the
	// output file and never enter the command stream. This runs first
	// and unconditionally — regardless of type honored-ness or mem_size
	// — so that any ROM-addressed segment forces cartridge output and
	// any unsupported type intersecting ROM is caught here, before the
	// mem_size==0 skip below ever gets a chance to silently absorb it.
	for i, s := range segs {
		if !region.IsROM(s.PhysAddr) {
			continue
		}
		if !isHonoredType(s.Type) {
			return nil, agberr.New(agberr.UnsupportedSegment, "program header %d, which is in ROM, has unsupported type %#x", i, s.Type)
		}
		multibootMode = false
		if s.FileSize > 0 {
			romSegs = append(romSegs, ROMSegment{PhysAddr: s.PhysAddr, Data: s.Data})
		}
		processed[i] = true
	}

	// Pass 1: filter the remaining (non-ROM) segments by honored type
	// and the filesz<=memsz invariant, drop mem_size==0 entirely (spec
	// §3 "empty — skip"), then classify destinations that reject 8-bit
	// writes (VRAM-like).
	for i, s := range segs {
		if processed[i] {
			continue
		}
		if !isHonoredType(s.Type) {
			processed[i] = true
			continue
		}
		if s.MemSize == 0 {
			opts.Logger.Printf("skipping program header %d (empty)\n", i)
			processed[i] = true
			continue
		}
		if s.FileSize > s.MemSize {
			return nil, agberr.New(agberr.UnsupportedSegment, "program header %d not supported - filesz > memsz", i)
		}
		if s.FileSize > 0 && !region.Supports8BitWrites(s.PhysAddr) {
			opts.Logger.Printf("processing program header %d (VRAM-like)\n", i)
			if err := classifyVRAM(state, opts, s.Data, s.PhysAddr); err != nil {
				return nil, err
			}
			processed[i] = true
		}
	}

	// Pass 2: remaining file-backed segments. EWRAM-destined ones are
	// aggregated (unless empty, in which case they're deferred to the
	// EWRAM BSS pass below); everything else is compressed/copied or
	// filled immediately.
	for i, s := range segs {
		if processed[i] {
			continue
		}
		if multibootMode && region.IsEWRAM(s.PhysAddr) {
			if s.FileSize > 0 {
				opts.Logger.Printf("appending program header %d to EWRAM data\n", i)
				if err := aggregator.Add(s.PhysAddr, s.Data); err != nil {
					return nil, err
				}
				processed[i] = true
			}
			continue
		}
		opts.Logger.Printf("processing program header %d (data)\n", i)
		if s.FileSize > 0 {
			if err := compressNormalOrCopy(state, opts, s.Data, s.PhysAddr); err != nil {
				return nil, err
			}
		} else {
			if err := appendBiosCopy(state, nil, s.PhysAddr, s.MemSize); err != nil {
				return nil, err
			}
		}
		processed[i] = true
	}

	// Pass 3: the aggregated EWRAM blob, compressed as one section.
	if aggregator.Touched() {
		window := aggregator.Window()
		opts.Logger.Printf("compressing EWRAM data (%#x - %#x), window = %d bytes\n", aggregator.Dest(), aggregator.Dest()+uint32(len(aggregator.Bytes()))-1, window)
		if err := compressEwramFinal(state, opts, aggregator.Bytes(), aggregator.Dest(), window); err != nil {
			return nil, err
		}
	}

	// Pass 4: EWRAM BSS fills — the only segments left unprocessed
	// should be EWRAM, file_size==0, mem_size>0.
	for i, s := range segs {
		if processed[i] {
			continue
		}
		if multibootMode && region.IsEWRAM(s.PhysAddr) && s.FileSize == 0 {
			opts.Logger.Printf("processing program header %d (bss)\n", i)
			if err := appendBiosCopy(state, nil, s.PhysAddr, s.MemSize); err != nil {
				return nil, err
			}
			processed[i] = true
			continue
		}
		return nil, agberr.New(agberr.UnsupportedSegment, "unprocessed program header %d", i)
	}

	if err := appendTerminal(state, img.Entry); err != nil {
		return nil, err
	}

	return &PlanResult{
		State:         state,
		EntryPoint:    img.Entry,
		MultibootMode: multibootMode,
		ROMSegments:   romSegs,
	}, nil
}
