// Command agbpack packs a linked GBA executable (or a raw multiboot image)
// into the boot-ready ROM/multiboot layout described in spec.md: loadable
// segments are classified by destination region, compressed where it pays
// off, and reduced to a command stream an in-image loader replays at boot.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/WonderfulToolchain/agbpack/internal/image"
	"github.com/WonderfulToolchain/agbpack/internal/loader"
	"github.com/WonderfulToolchain/agbpack/internal/packer"
)

const versionString = "agbpack 1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: agbpack [-0] [-L <path>] [-h] [-V] [-v] <input> <output>\n\n")
	fmt.Fprintf(os.Stderr, "  -0         Disable compression; every section becomes a BIOS copy/fill.\n")
	fmt.Fprintf(os.Stderr, "  -L <path>  Use an external LZSS tool for VRAM-bound sections.\n")
	fmt.Fprintf(os.Stderr, "  -h         Print this help and exit.\n")
	fmt.Fprintf(os.Stderr, "  -V         Print version information and exit.\n")
	fmt.Fprintf(os.Stderr, "  -v         Verbose planner tracing.\n")
}

func main() {
	var (
		noCompress   = flag.Bool("0", false, "disable compression")
		externalLZSS = flag.String("L", "", "external LZSS tool path")
		help         = flag.Bool("h", false, "print help")
		version      = flag.Bool("V", false, "print version")
		verbose      = flag.Bool("v", false, "verbose planner tracing")
	)
	flag.Usage = usage
	flag.Parse()

	if *help {
		usage()
		os.Exit(0)
	}
	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(1)
	}
	inputPath, outputPath := args[0], args[1]

	if err := run(inputPath, outputPath, !*noCompress, *externalLZSS, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "agbpack: %v\n", err)
		os.Exit(1)
	}
}

func run(inputPath, outputPath string, compress bool, externalLZSS string, verbose bool) error {
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}

	img, err := image.Recognize(input)
	if err != nil {
		return fmt.Errorf("recognizing %s: %w", inputPath, err)
	}

	opts := packer.Options{
		Compress:         compress,
		ExternalLZSSPath: externalLZSS,
		Logger:           packer.NewLogger(os.Stderr, verbose),
	}

	plan, err := packer.Plan(img, opts)
	if err != nil {
		return fmt.Errorf("planning %s: %w", inputPath, err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outputPath, err)
	}
	defer out.Close()

	layout, err := packer.Emit(out, plan, loader.DefaultMultiboot, loader.DefaultROM)
	if err != nil {
		return fmt.Errorf("emitting %s: %w", outputPath, err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "loader at file offset %#x, payload base %#x\n", layout.LoaderOffset, layout.PayloadBase)
	}
	return nil
}
