// Copyright 2026 stackscope project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// stackscope-demo captures its own stack through a few nested calls and
// prints the raw and symbolicated forms side by side. Useful for eyeballing
// unwinder and symbolicator behavior on a given machine.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stackscope/stackscope/pkg/backtrace"
	"github.com/stackscope/stackscope/pkg/log"
	"github.com/stackscope/stackscope/pkg/unwind"
)

var (
	flagAlgorithm = flag.String("algorithm", "auto", "unwind algorithm (auto/fast/precise)")
	flagLimit     = flag.Int("limit", 64, "max frames in the capture, 0 for unbounded")
	flagOffset    = flag.Int("offset", 0, "innermost frames to hide")
	flagTop       = flag.Int("top", 16, "innermost frames preserved under truncation")
	flagDepth     = flag.Int("depth", 8, "extra recursion depth before capturing")
	flagNoInline  = flag.Bool("no_inline", false, "do not expand inline frames")
	flagWidth     = flag.Int("width", 0, "address width in hex digits, 0 for native")
)

func main() {
	// Degraded-path messages (unreadable maps, stripped images) are kept
	// in memory and replayed when symbolication yields nothing.
	log.EnableLogCaching(100, 1<<20)
	flag.Parse()
	algorithm, err := unwind.ParseAlgorithm(*flagAlgorithm)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		flag.PrintDefaults()
		os.Exit(1)
	}
	opts := backtrace.Options{
		Algorithm:     algorithm,
		Limit:         *flagLimit,
		Offset:        *flagOffset,
		Top:           *flagTop,
		CaptureImages: true,
	}
	b, err := recurse(*flagDepth, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capture failed: %v\n", err)
		os.Exit(1)
	}
	width := *flagWidth
	fmt.Printf("architecture: %v\n", b.Architecture)
	fmt.Printf("captured %v frames, %v images\n\n", b.NumFrames(), len(b.Images))

	symOpts := backtrace.DefaultSymbolicateOptions()
	symOpts.ShowInlineFrames = !*flagNoInline
	sb := b.Symbolicated(symOpts)
	if sb == nil {
		// Nothing to resolve against; the raw form is all there is.
		fmt.Fprintf(os.Stderr, "no resolvable images; raw addresses only\n")
		if cached := log.CachedLogOutput(); cached != "" {
			fmt.Fprint(os.Stderr, cached)
		}
		printDescription(b.Description, width, func() string { return b.String() })
		return
	}
	printDescription(sb.Description, width, func() string { return sb.String() })
}

func printDescription(render func(int) string, width int, native func() string) {
	if width > 0 {
		fmt.Print(render(width))
		return
	}
	fmt.Print(native())
}

// recurse pads the stack so truncation has something to bite on.
func recurse(depth int, opts backtrace.Options) (*backtrace.Backtrace, error) {
	if depth <= 0 {
		return backtrace.Capture(opts)
	}
	return recurse(depth-1, opts)
}
