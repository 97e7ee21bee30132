package lzcompress

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/WonderfulToolchain/agbpack/internal/agberr"
)

// Result is what a successful compression attempt produces.
type Result struct {
	Bytes []byte
}

// TryCompress runs the built-in codec and applies the "bigger-than-input is
// a rejection" rule from spec §4.B: the result is accepted only if
// 0 < len(packed) < len(src).
func TryCompress(src []byte, windowBytes uint32) (Result, bool) {
	if len(src) == 0 {
		return Result{}, false
	}
	packed := Encode(src, windowBytes)
	if len(packed) > 0 && len(packed) < len(src) {
		return Result{Bytes: packed}, true
	}
	return Result{}, false
}

// ExternalTool delegates compression of VRAM-bound sections to an external
// LZSS utility invoked as `"<path>" -evo <tmp_in> <tmp_out>` (spec §6).
type ExternalTool struct {
	Path string
	// Dir is the working directory temp files are created in. Empty means
	// the process's current working directory, per spec §5 ("temp files
	// for the external tool use the host PID plus a random suffix").
	Dir string
}

// TryCompress blocks until the child process exits, then reads its output.
// A nonzero exit, or any I/O failure around it, is fatal per spec §7.
func (t *ExternalTool) TryCompress(ctx context.Context, src []byte) (Result, error) {
	pid := currentPID()
	suffix := rand.Intn(1 << 15)
	inPath := filepath.Join(t.Dir, fmt.Sprintf(".agbpack.i%d.%d.bin", pid, suffix))
	outPath := filepath.Join(t.Dir, fmt.Sprintf(".agbpack.o%d.%d.bin", pid, suffix))
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, src, 0o600); err != nil {
		return Result{}, agberr.New(agberr.IOError, "writing external LZSS input: %w", err)
	}

	if err := runExternal(ctx, t.Path, inPath, outPath); err != nil {
		return Result{}, agberr.New(agberr.ExternalToolFailure, "running %q: %w", t.Path, err)
	}

	packed, err := os.ReadFile(outPath)
	if err != nil {
		return Result{}, agberr.New(agberr.IOError, "reading external LZSS output: %w", err)
	}
	return Result{Bytes: packed}, nil
}
