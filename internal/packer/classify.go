package packer

import (
	"github.com/WonderfulToolchain/agbpack/internal/agberr"
	"github.com/WonderfulToolchain/agbpack/internal/lzcompress"
	"github.com/WonderfulToolchain/agbpack/internal/region"
)

// compressNormalOrCopy implements the COMPRESSED_NORMAL case (spec §4.C,
// §4.E): decompress-in-place straight to dest, falling back to a plain
// BIOS copy when compression is off or the codec rejects the input.
func compressNormalOrCopy(state *PackState, opts Options, source []byte, destination uint32) error {
	if opts.Compress {
		if result, ok := lzcompress.TryCompress(source, 0); ok {
			opts.Logger.Printf("-> compressed %d -> %d bytes\n", len(source), len(result.Bytes))
			entry := SectionEntry{Source: 0, Dest: destination, Flags: FlagDecompressNormal | uint32(len(result.Bytes))}
			return state.Append(entry, &CopyRecord{Bytes: result.Bytes})
		}
		opts.Logger.Printf("-> section did not compress, falling back to BIOS copy\n")
	}
	return appendBiosCopy(state, source, destination, uint32(len(source)))
}

// compressEwramFinal implements the COMPRESSED_EWRAM_FINAL case: the
// aggregated EWRAM blob is copied to the end of EWRAM and decompressed in
// place from there, so it always reserves the 32-byte decompressor guard
// (spec §4.C, §4.D, §4.E).
func compressEwramFinal(state *PackState, opts Options, source []byte, destination, window uint32) error {
	if opts.Compress {
		if result, ok := lzcompress.TryCompress(source, window); ok {
			opts.Logger.Printf("-> compressed EWRAM blob %d -> %d bytes (window %d)\n", len(source), len(result.Bytes), window)
			rounded := (uint32(len(result.Bytes)) + 31) &^ 31
			entry := SectionEntry{Source: 0, Dest: destination, Flags: FlagDecompressEwramFinal | rounded}
			return state.Append(entry, &CopyRecord{Bytes: result.Bytes, ReserveAtEnd: EwramFinalGuardBytes})
		}
		opts.Logger.Printf("-> EWRAM blob did not compress, falling back to BIOS copy\n")
	}
	return appendBiosCopy(state, source, destination, uint32(len(source)))
}

// classifyVRAM implements the COMPRESSED_VRAM_COPY case: a two-entry
// pipeline that decompresses (or, with an external tool, merely stages) the
// payload to an intermediary address at the end of EWRAM, then BIOS-copies
// it in word units to the real destination, which cannot take byte writes
// (spec §4.C, §4.E).
func classifyVRAM(state *PackState, opts Options, source []byte, destination uint32) error {
	length := uint32(len(source))
	if length&3 != 0 {
		return agberr.New(agberr.AlignmentViolation, "VRAM section not aligned to 4: %d @ %#x", length, destination)
	}
	intermediary := region.EWRAMEnd + 1 - length

	if opts.Compress && opts.ExternalLZSSPath != "" {
		tool := &lzcompress.ExternalTool{Path: opts.ExternalLZSSPath}
		result, err := tool.TryCompress(opts.context(), source)
		if err != nil {
			return err
		}
		if len(result.Bytes) == 0 || uint32(len(result.Bytes)) >= length {
			opts.Logger.Printf("-> external tool did not compress, falling back to BIOS copy\n")
			return appendBiosCopy(state, source, destination, length)
		}
		// Open question preserved verbatim (spec §9): the external-tool
		// path overloads the bit31 "decompress normal" tag for a plain
		// copy of already-packed bytes. This is a loader contract, not
		// a bug — do not normalize it away.
		stage1 := SectionEntry{Source: 0, Dest: intermediary, Flags: FlagDecompressNormal | uint32(len(result.Bytes))}
		if err := state.Append(stage1, &CopyRecord{Bytes: result.Bytes, ReserveAtEnd: length}); err != nil {
			return err
		}
		return appendVramSecondStage(state, intermediary, destination, length)
	}

	if opts.Compress {
		if result, ok := lzcompress.TryCompress(source, 0); ok {
			opts.Logger.Printf("-> compressed VRAM section %d -> %d bytes\n", len(source), len(result.Bytes))
			stage1 := SectionEntry{Source: 0, Dest: intermediary, Flags: FlagDecompressVramStage | uint32(len(result.Bytes))}
			if err := state.Append(stage1, &CopyRecord{Bytes: result.Bytes, ReserveAtEnd: length}); err != nil {
				return err
			}
			return appendVramSecondStage(state, intermediary, destination, length)
		}
		opts.Logger.Printf("-> VRAM section did not compress, falling back to BIOS copy\n")
	}

	return appendBiosCopy(state, source, destination, length)
}

// appendVramSecondStage appends the word-unit BIOS copy from the
// intermediary staging address to the real VRAM-like destination. It must
// immediately follow its paired first stage (spec §9 "VramPipeline").
func appendVramSecondStage(state *PackState, intermediary, destination, length uint32) error {
	entry := SectionEntry{Source: intermediary, Dest: destination, Flags: (length >> 2) | biosUnitWords}
	return state.Append(entry, nil)
}
