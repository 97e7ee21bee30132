package packer

import (
	"encoding/binary"
	"io"

	"github.com/WonderfulToolchain/agbpack/internal/agberr"
	"github.com/WonderfulToolchain/agbpack/internal/region"
)

// writeU32LE writes a little-endian uint32, wrapping any I/O error as
// agberr.IOError.
func writeU32LE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return agberr.New(agberr.IOError, "write: %w", err)
	}
	return nil
}

// Layout reports the file offsets and the payload base address Emit
// computed, so callers (mainly tests)
// can locate the payload blob without re-deriving the arithmetic.
type Layout struct {
	LoaderOffset      int64
	PayloadBase       uint32
	PayloadFileOffset int64
}

// Emit assembles the final boot-ready image per spec §4.F's 9-step layout:
// optional ROM data, the crt0 loader, an optional raw-mode header copy, the
// 4-byte-aligned payload blob, the command stream, and (for ROM output) the
// entry-branch fixup at offset 0.
func Emit(w io.WriteSeeker, plan *PlanResult, loaderMultiboot, loaderROM []byte) (Layout, error) {
	if !plan.MultibootMode {
		if _, err := w.Seek(0, io.SeekStart); err != nil {
			return Layout{}, agberr.New(agberr.IOError, "seek: %w", err)
		}
		if err := writeU32LE(w, 0); err != nil { // branch placeholder, patched in step 9
			return Layout{}, err
		}
		for _, seg := range plan.ROMSegments {
			if _, err := w.Seek(int64(seg.PhysAddr-region.ROMStart), io.SeekStart); err != nil {
				return Layout{}, agberr.New(agberr.IOError, "seek: %w", err)
			}
			if _, err := w.Write(seg.Data); err != nil {
				return Layout{}, agberr.New(agberr.IOError, "write ROM segment: %w", err)
			}
		}
	}

	loaderOffset, err := w.Seek(0, io.SeekEnd)
	if err != nil {
		return Layout{}, agberr.New(agberr.IOError, "seek: %w", err)
	}

	loader := loaderMultiboot
	if !plan.MultibootMode {
		loader = loaderROM
	}
	if _, err := w.Write(loader); err != nil {
		return Layout{}, agberr.New(agberr.IOError, "write loader: %w", err)
	}

	if plan.RawInput != nil {
		if _, err := w.Seek(4, io.SeekStart); err != nil {
			return Layout{}, agberr.New(agberr.IOError, "seek: %w", err)
		}
		if _, err := w.Write(plan.RawInput[4:0xC0]); err != nil {
			return Layout{}, agberr.New(agberr.IOError, "write header copy: %w", err)
		}
		if _, err := w.Seek(0, io.SeekEnd); err != nil {
			return Layout{}, agberr.New(agberr.IOError, "seek: %w", err)
		}
	}

	current, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return Layout{}, agberr.New(agberr.IOError, "seek: %w", err)
	}
	base := region.ROMStart
	if plan.MultibootMode {
		base = region.EWRAMStart
	}
	payloadFileOffset := current + 4
	payloadBase := base + uint32(payloadFileOffset)

	entries := plan.State.Entries
	copies := plan.State.Copies
	var running uint32
	for i, cp := range copies {
		if cp != nil {
			entries[i].Source = payloadBase + running
			running += roundUp4(uint32(len(cp.Bytes)))
		}
	}
	romDataLength := running

	if err := writeU32LE(w, romDataLength); err != nil {
		return Layout{}, err
	}
	for _, cp := range copies {
		if cp == nil {
			continue
		}
		if _, err := w.Write(cp.Bytes); err != nil {
			return Layout{}, agberr.New(agberr.IOError, "write payload: %w", err)
		}
		if pad := roundUp4(uint32(len(cp.Bytes))) - uint32(len(cp.Bytes)); pad > 0 {
			if _, err := w.Write(make([]byte, pad)); err != nil {
				return Layout{}, agberr.New(agberr.IOError, "write payload padding: %w", err)
			}
		}
	}

	if err := writeU32LE(w, uint32(len(entries))*3); err != nil {
		return Layout{}, err
	}
	for _, e := range entries {
		if err := writeU32LE(w, e.Source); err != nil {
			return Layout{}, err
		}
		if err := writeU32LE(w, e.Dest); err != nil {
			return Layout{}, err
		}
		if err := writeU32LE(w, e.Flags); err != nil {
			return Layout{}, err
		}
	}

	if plan.MultibootMode {
		fileEnd, err := w.Seek(0, io.SeekCurrent)
		if err != nil {
			return Layout{}, agberr.New(agberr.IOError, "seek: %w", err)
		}
		var maxReserve uint32
		for _, cp := range copies {
			if cp != nil && cp.ReserveAtEnd > maxReserve {
				maxReserve = cp.ReserveAtEnd
			}
		}
		if uint32(fileEnd)+maxReserve > region.EWRAMSize {
			return Layout{}, agberr.New(agberr.CapacityExceeded, "insufficient bytes at end: need %d, have %d", maxReserve, region.EWRAMSize-uint32(fileEnd))
		}
	} else {
		branch := 0xEA000000 | ((uint32(loaderOffset) - 8) >> 2)
		if _, err := w.Seek(0, io.SeekStart); err != nil {
			return Layout{}, agberr.New(agberr.IOError, "seek: %w", err)
		}
		if err := writeU32LE(w, branch); err != nil {
			return Layout{}, err
		}
	}

	return Layout{LoaderOffset: loaderOffset, PayloadBase: payloadBase, PayloadFileOffset: payloadFileOffset}, nil
}
