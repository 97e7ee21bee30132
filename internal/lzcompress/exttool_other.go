//go:build !unix

package lzcompress

import (
	"context"
	"os"
	"os/exec"
)

func currentPID() int {
	return os.Getpid()
}

func runExternal(ctx context.Context, path, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, path, "-evo", inPath, outPath)
	return cmd.Run()
}
