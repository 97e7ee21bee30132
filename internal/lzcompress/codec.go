// Package lzcompress implements the packer's compression adapter (spec
// component B): a small sliding-window LZ77 codec standing in for the
// "opaque compress(src) -> packed|err" collaborator the specification treats
// as external, plus the accept/reject rule the planner relies on, plus the
// external-LZSS-tool delegation path used for VRAM-bound sections.
package lzcompress

import (
	"encoding/binary"
	"fmt"
)

// magic tags our own packed stream; the 3 bytes following it are the
// little-endian uncompressed length, mirroring the well-known GBA BIOS LZ77
// container (tag byte + 24-bit size) so a real in-image decompressor would
// recognize the shape even though the token encoding below is our own.
const magic = 0x10

const (
	minMatchLen = 3
	maxMatchLen = minMatchLen + 0x0F // 4-bit length field
	maxDistance = 0x1000             // 12-bit displacement field
)

// Encode compresses src with a greedy LZ77 match finder whose back-reference
// search never looks further than windowBytes behind the current position.
// windowBytes == 0 means "let the compressor choose a default" (spec §4.B);
// the default and the format's hard ceiling are both maxDistance.
func Encode(src []byte, windowBytes uint32) []byte {
	window := windowBytes
	if window == 0 || window > maxDistance {
		window = maxDistance
	}

	out := make([]byte, 4, len(src)/2+8)
	out[0] = magic
	out[1] = byte(len(src))
	out[2] = byte(len(src) >> 8)
	out[3] = byte(len(src) >> 16)

	var block []byte
	var flagByte byte
	var flagBits int
	flush := func() {
		if flagBits == 0 {
			return
		}
		out = append(out, flagByte)
		out = append(out, block...)
		block = block[:0]
		flagByte = 0
		flagBits = 0
	}

	pos := 0
	for pos < len(src) {
		matchLen, matchDist := findMatch(src, pos, int(window))

		flagByte <<= 1
		if matchLen >= minMatchLen {
			flagByte |= 1
			lengthField := byte(matchLen - minMatchLen)
			dispField := uint16(matchDist - 1)
			block = append(block, (lengthField<<4)|byte(dispField>>8), byte(dispField))
			pos += matchLen
		} else {
			block = append(block, src[pos])
			pos++
		}
		flagBits++
		if flagBits == 8 {
			flush()
		}
	}
	if flagBits > 0 {
		flagByte <<= uint(8 - flagBits)
		out = append(out, flagByte)
		out = append(out, block...)
	}
	return out
}

// findMatch looks for the longest back-reference starting before pos (it
// may overlap pos), no further back than window bytes, and returns
// (length, distance). It
// reports length 0 when nothing worth encoding was found.
func findMatch(src []byte, pos, window int) (length, distance int) {
	start := pos - window
	if start < 0 {
		start = 0
	}
	best := 0
	bestDist := 0
	limit := len(src) - pos
	if limit > maxMatchLen {
		limit = maxMatchLen
	}
	for cand := start; cand < pos; cand++ {
		l := 0
		for l < limit && src[cand+l] == src[pos+l] {
			l++
		}
		if l > best {
			best = l
			bestDist = pos - cand
		}
	}
	if best < minMatchLen {
		return 0, 0
	}
	return best, bestDist
}

// Decode reverses Encode. It models the in-image loader's decompression
// semantics closely enough to drive the round-trip property in spec §8.
func Decode(data []byte) ([]byte, error) {
	if len(data) < 4 || data[0] != magic {
		return nil, fmt.Errorf("lzcompress: bad header")
	}
	size := int(binary.LittleEndian.Uint32([]byte{data[1], data[2], data[3], 0}))
	out := make([]byte, 0, size)
	i := 4
	for len(out) < size {
		if i >= len(data) {
			return nil, fmt.Errorf("lzcompress: truncated stream")
		}
		flags := data[i]
		i++
		for bit := 7; bit >= 0 && len(out) < size; bit-- {
			if i > len(data) {
				return nil, fmt.Errorf("lzcompress: truncated stream")
			}
			if flags&(1<<uint(bit)) == 0 {
				if i >= len(data) {
					return nil, fmt.Errorf("lzcompress: truncated stream")
				}
				out = append(out, data[i])
				i++
				continue
			}
			if i+1 >= len(data) {
				return nil, fmt.Errorf("lzcompress: truncated stream")
			}
			b0, b1 := data[i], data[i+1]
			i += 2
			matchLen := int(b0>>4) + minMatchLen
			dist := (int(b0&0x0F)<<8 | int(b1)) + 1
			if dist > len(out) {
				return nil, fmt.Errorf("lzcompress: back-reference past start of buffer")
			}
			for j := 0; j < matchLen && len(out) < size; j++ {
				out = append(out, out[len(out)-dist])
			}
		}
	}
	return out, nil
}
