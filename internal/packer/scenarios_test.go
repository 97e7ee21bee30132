package packer

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/WonderfulToolchain/agbpack/internal/agberr"
	"github.com/WonderfulToolchain/agbpack/internal/image"
	"github.com/WonderfulToolchain/agbpack/internal/loader"
	"github.com/WonderfulToolchain/agbpack/internal/region"
)

func quietOptions(compress bool) Options {
	return Options{Compress: compress, Logger: NewLogger(io.Discard, false)}
}

// S1: ROM-only ELF, compression on.
func TestScenarioROMOnly(t *testing.T) {
	data := bytes.Repeat([]byte{0x11, 0x22, 0x33, 0x44}, 256) // 1024 bytes
	img := &image.Image{
		Mode:  image.ModeELF,
		Entry: region.ROMStart + 0x100,
		Segments: []image.Segment{
			{Type: image.PTLoad, PhysAddr: region.ROMStart + 0x100, FileSize: uint32(len(data)), MemSize: uint32(len(data)), Data: data},
		},
	}

	plan, err := Plan(img, quietOptions(true))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.MultibootMode {
		t.Fatalf("expected ROM mode")
	}
	if len(plan.State.Entries) != 1 {
		t.Fatalf("expected exactly the terminal entry, got %d entries", len(plan.State.Entries))
	}
	if len(plan.ROMSegments) != 1 || plan.ROMSegments[0].PhysAddr != region.ROMStart+0x100 {
		t.Fatalf("unexpected ROM segments: %+v", plan.ROMSegments)
	}

	f := &memFile{}
	layout, err := Emit(f, plan, loader.DefaultMultiboot, loader.DefaultROM)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if !bytes.Equal(f.buf[0x100:0x100+len(data)], data) {
		t.Fatalf("ROM segment bytes not copied verbatim at offset 0x100")
	}
	wantBranch := 0xEA000000 | ((uint32(layout.LoaderOffset) - 8) >> 2)
	gotBranch := binary.LittleEndian.Uint32(f.buf[0:4])
	if gotBranch != wantBranch {
		t.Fatalf("branch = %#x, want %#x", gotBranch, wantBranch)
	}
}

func buildRawImage(branch24 uint32, payload []byte) []byte {
	data := make([]byte, 0xC8+len(payload))
	data[0x03] = 0xEA
	data[0xB2] = 0x96
	data[0xC2] = 0x00
	data[0xC3] = 0xEA
	binary.LittleEndian.PutUint16(data[0xC0:], uint16(branch24))
	copy(data[0xC8:], payload)
	return data
}

// S2: Raw multiboot, 8 KiB payload, compression disabled.
func TestScenarioRawDisabledCompression(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 8192-0xC8)
	raw := buildRawImage(0, payload)

	img, err := image.Recognize(raw)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if img.Mode != image.ModeRaw {
		t.Fatalf("expected raw mode")
	}

	plan, err := Plan(img, quietOptions(false))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.State.Entries) != 2 {
		t.Fatalf("expected one data entry + terminal, got %d", len(plan.State.Entries))
	}
	dataEntry := plan.State.Entries[0]
	wantCount := uint32(len(raw)-0xC8) / 4
	if dataEntry.Flags != (biosUnitWords | wantCount) {
		t.Fatalf("Flags = %#x, want word|%d", dataEntry.Flags, wantCount)
	}
}

// S3: Multiboot ELF with EWRAM, IWRAM, VRAM-like, and IWRAM BSS segments.
func TestScenarioMixedMultiboot(t *testing.T) {
	ewramData := bytes.Repeat([]byte{0xAA}, 4096)
	iwramData := bytes.Repeat([]byte{0xAA, 0x55}, 256) // 512 bytes, compressible
	vramData := bytes.Repeat([]byte{0x00}, 2048)       // 4-byte aligned

	img := &image.Image{
		Mode:  image.ModeELF,
		Entry: 0x02000000,
		Segments: []image.Segment{
			{Type: image.PTLoad, PhysAddr: 0x02001000, FileSize: uint32(len(ewramData)), MemSize: uint32(len(ewramData)), Data: ewramData},
			{Type: image.PTLoad, PhysAddr: 0x03000000, FileSize: uint32(len(iwramData)), MemSize: uint32(len(iwramData)), Data: iwramData},
			{Type: image.PTLoad, PhysAddr: 0x06000000, FileSize: uint32(len(vramData)), MemSize: uint32(len(vramData)), Data: vramData},
			{Type: image.PTLoad, PhysAddr: 0x03000400, FileSize: 0, MemSize: 256},
		},
	}

	plan, err := Plan(img, quietOptions(true))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !plan.MultibootMode {
		t.Fatalf("expected multiboot mode")
	}
	if len(plan.State.Entries) != 6 {
		t.Fatalf("expected 6 entries (vram x2, iwram, bss, ewram, terminal), got %d", len(plan.State.Entries))
	}

	vram1 := plan.State.Entries[0]
	if vram1.Flags&FlagDecompressVramStage == 0 {
		t.Errorf("entry 0 should be the VRAM first stage, flags=%#x", vram1.Flags)
	}
	vram2 := plan.State.Entries[1]
	if vram2.Dest != 0x06000000 {
		t.Errorf("entry 1 dest = %#x, want VRAM destination", vram2.Dest)
	}
	if vram2.Flags != (uint32(len(vramData)>>2) | biosUnitWords) {
		t.Errorf("entry 1 flags = %#x, want word-unit copy of %d words", vram2.Flags, len(vramData)/4)
	}

	// Non-EWRAM segments (including the IWRAM BSS fill) are resolved
	// immediately in the same pass that walks the segment list, so the
	// IWRAM BSS fill lands before the aggregated EWRAM blob, which is only
	// appended once that whole pass has finished.
	iwram := plan.State.Entries[2]
	if iwram.Dest != 0x03000000 {
		t.Errorf("entry 2 dest = %#x, want IWRAM destination", iwram.Dest)
	}

	bss := plan.State.Entries[3]
	if bss.Dest != 0x03000400 || bss.Source != ZeroFillAddress {
		t.Errorf("entry 3 = %+v, want IWRAM BSS fill", bss)
	}
	if bss.Flags != (biosModeFill | biosUnitWords | 64) {
		t.Errorf("entry 3 flags = %#x, want FILL|WORD|64", bss.Flags)
	}

	ewram := plan.State.Entries[4]
	if ewram.Dest != 0x02001000 {
		t.Errorf("entry 4 dest = %#x, want aggregated EWRAM destination", ewram.Dest)
	}

	terminal := plan.State.Entries[5]
	if terminal.Dest != img.Entry {
		t.Errorf("terminal dest = %#x, want entry point", terminal.Dest)
	}
}

// S4: Compression rejected falls back to a plain BIOS copy, with no
// dangling payload record left behind.
func TestScenarioCompressionRejected(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04} // too short to ever compress
	img := &image.Image{
		Mode:  image.ModeELF,
		Entry: 0x03000000,
		Segments: []image.Segment{
			{Type: image.PTLoad, PhysAddr: 0x03000000, FileSize: uint32(len(data)), MemSize: uint32(len(data)), Data: data},
		},
	}
	plan, err := Plan(img, quietOptions(true))
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.State.Entries) != 2 {
		t.Fatalf("expected data entry + terminal, got %d", len(plan.State.Entries))
	}
	entry := plan.State.Entries[0]
	if entry.Flags&(FlagDecompressNormal|FlagDecompressEwramFinal|FlagDecompressVramStage) != 0 {
		t.Fatalf("expected a plain BIOS copy, got compressed flags %#x", entry.Flags)
	}
	if plan.State.Copies[0] == nil || len(plan.State.Copies[0].Bytes) != len(data) {
		t.Fatalf("expected exactly one CopyRecord carrying the raw bytes")
	}
}

// S5: Odd-length BSS fill is fatal.
func TestScenarioOddLengthFill(t *testing.T) {
	img := &image.Image{
		Mode:  image.ModeELF,
		Entry: 0x03000000,
		Segments: []image.Segment{
			{Type: image.PTLoad, PhysAddr: 0x03000000, FileSize: 0, MemSize: 31},
		},
	}
	_, err := Plan(img, quietOptions(true))
	if err == nil {
		t.Fatalf("expected AlignmentViolation for a 31-byte fill")
	}
	var agbErr *agberr.Error
	if !asAgbErr(err, &agbErr) || agbErr.Kind != agberr.AlignmentViolation {
		t.Fatalf("expected AlignmentViolation, got %v", err)
	}
}

// S6: Over-capacity segment count is fatal.
func TestScenarioOverCapacity(t *testing.T) {
	segs := make([]image.Segment, 1025)
	for i := range segs {
		addr := uint32(0x05000000 + i*4)
		segs[i] = image.Segment{Type: image.PTLoad, PhysAddr: addr, FileSize: 0, MemSize: 4}
	}
	img := &image.Image{Mode: image.ModeELF, Entry: 0x03000000, Segments: segs}
	_, err := Plan(img, quietOptions(true))
	if err == nil {
		t.Fatalf("expected CapacityExceeded for 1025 segments")
	}
	var agbErr *agberr.Error
	if !asAgbErr(err, &agbErr) || agbErr.Kind != agberr.CapacityExceeded {
		t.Fatalf("expected CapacityExceeded, got %v", err)
	}
}

func asAgbErr(err error, target **agberr.Error) bool {
	e, ok := err.(*agberr.Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
