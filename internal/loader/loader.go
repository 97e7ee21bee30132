// Package loader holds the crt0 boot-loader images the emitter prepends to
// its output. The real crt0_multiboot / crt0_rom loaders are out of scope
// per spec.md §1(b): they are pre-built binaries whose only contract this
// repository cares about is "consume rom_data_length, then
// command_stream_length, then iterate entries" (spec §6). DefaultMultiboot
// and DefaultROM are placeholder stand-ins of the right shape (each ends in
// an infinite branch-to-self, so a loader that somehow got control without
// its real counterpart halts instead of running off into garbage) so the
// rest of the tool has something concrete to embed and lay out around.
package loader

// selfBranch is the ARM opcode for "b ." (branch to self): 0xEAFFFFFE.
var selfBranch = []byte{0xFE, 0xFF, 0xFF, 0xEA}

// DefaultMultiboot is the placeholder loader image used when the output
// boots from EWRAM.
var DefaultMultiboot = selfBranch

// DefaultROM is the placeholder loader image used when the output boots
// from the cartridge ROM window.
var DefaultROM = selfBranch
