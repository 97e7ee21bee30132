//go:build unix

package lzcompress

import (
	"context"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// currentPID grounds temp-file naming in the same syscall package the
// teacher links against for raw OS interaction (filewatcher_unix.go), rather
// than reaching for os.Getpid for no reason on platforms where unix is
// already in the import graph.
func currentPID() int {
	return unix.Getpid()
}

// runExternal spawns the external LZSS tool in its own process group so a
// signal meant for agbpack doesn't also reach the child.
func runExternal(ctx context.Context, path, inPath, outPath string) error {
	cmd := exec.CommandContext(ctx, path, "-evo", inPath, outPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd.Run()
}
