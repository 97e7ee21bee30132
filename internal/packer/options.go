package packer

import "context"

// Options is the explicit configuration struct threaded through the
// planner, replacing the reference implementation's process-wide mutable
// state (verbose flag, external-tool path — spec §9).
type Options struct {
	// Compress disables all compression when false (-0 on the CLI); every
	// section then becomes a BIOS copy or fill.
	Compress bool
	// ExternalLZSSPath, when non-empty, routes VRAM-bound sections
	// through an external LZSS tool instead of the built-in codec (-L).
	ExternalLZSSPath string
	// Logger receives planner trace output (-v).
	Logger *Logger
	// Ctx bounds the external tool invocation, if any.
	Ctx context.Context
}

func (o Options) context() context.Context {
	if o.Ctx != nil {
		return o.Ctx
	}
	return context.Background()
}
