package packer

import (
	"github.com/WonderfulToolchain/agbpack/internal/agberr"
	"github.com/WonderfulToolchain/agbpack/internal/region"
)

// EWRAMAggregator merges every EWRAM-destined file-backed segment into one
// contiguous blob, tracking the lowest and highest touched absolute address
// (spec §4.D).
type EWRAMAggregator struct {
	buf     [region.EWRAMSize]byte
	lo, hi  uint32
	touched bool
}

// NewEWRAMAggregator returns an empty aggregator.
func NewEWRAMAggregator() *EWRAMAggregator {
	return &EWRAMAggregator{}
}

// Add merges data at its physical destination into the aggregation buffer.
func (a *EWRAMAggregator) Add(paddr uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if !region.IsEWRAM(paddr) {
		return agberr.New(agberr.UnsupportedSegment, "segment at %#x is not in EWRAM", paddr)
	}
	off := paddr - region.EWRAMStart
	end := paddr + uint32(len(data)) - 1
	if end > region.EWRAMEnd {
		return agberr.New(agberr.UnsupportedSegment, "segment at %#x (%d bytes) overruns EWRAM", paddr, len(data))
	}
	copy(a.buf[off:], data)
	if !a.touched || paddr < a.lo {
		a.lo = paddr
	}
	if !a.touched || end > a.hi {
		a.hi = end
	}
	a.touched = true
	return nil
}

// Touched reports whether any segment has been merged in yet.
func (a *EWRAMAggregator) Touched() bool {
	return a.touched
}

// Dest is the physical address the aggregated blob must decompress to.
func (a *EWRAMAggregator) Dest() uint32 {
	return a.lo
}

// Bytes is the tightly-bounded [lo, hi] slice of the aggregation buffer.
func (a *EWRAMAggregator) Bytes() []byte {
	if !a.touched {
		return nil
	}
	return a.buf[a.lo-region.EWRAMStart : a.hi-region.EWRAMStart+1]
}

// Window is the look-back distance the in-place decompressor may safely
// use: the remaining EWRAM past the highest touched byte, minus the 32
// bytes always reserved for the decompressor's own scratch tail (spec
// §4.D).
func (a *EWRAMAggregator) Window() uint32 {
	return region.EWRAMEnd + 1 - a.hi - EwramFinalGuardBytes
}
