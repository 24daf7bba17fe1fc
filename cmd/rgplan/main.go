// Command rgplan compiles a YAML frame description and prints the plan:
// pass order, queues, barriers and attachment load/store operations.
//
//	rgplan -frames 3 -exec deferred.yaml
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/rendergraph"
	"github.com/gogpu/rendergraph/backend"
	"github.com/gogpu/rendergraph/framefile"

	_ "github.com/gogpu/rendergraph/backend/trace"
	_ "github.com/gogpu/rendergraph/backend/wgpu"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatalf("rgplan: %v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rgplan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		backendName = fs.String("backend", backend.BackendTrace, "device backend ("+fmt.Sprint(backend.Available())+")")
		configPath  = fs.String("config", "", "graph config file overriding the frame's graph section")
		frames      = fs.Int("frames", 1, "number of frames to compile")
		execute     = fs.Bool("exec", false, "execute each frame after compiling")
		verbose     = fs.Bool("v", false, "debug logging to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected one frame file")
	}
	if *frames < 1 {
		return fmt.Errorf("frames must be positive, got %d", *frames)
	}
	if *verbose {
		rendergraph.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		defer rendergraph.SetLogger(nil)
	}

	frame, err := framefile.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	opts := frame.Options()
	if *configPath != "" {
		cfg, err := rendergraph.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		opts = append(opts, rendergraph.WithConfig(cfg))
	}

	dev, closeDev, err := backend.Open(*backendName)
	if err != nil {
		return err
	}
	defer closeDev()

	g, err := rendergraph.New(dev, opts...)
	if err != nil {
		return err
	}
	defer g.Destroy()

	for i := 0; i < *frames; i++ {
		if _, err := frame.Build(g); err != nil {
			return err
		}
		if err := g.Compile(); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if *execute {
			if err := g.Execute(nil, nil, true); err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
		}
		fmt.Fprintf(stdout, "# frame %d\n%s", i, g.Describe())
		printStats(stdout, g.Stats())
		g.Reset()
	}
	return nil
}

func printStats(w io.Writer, s rendergraph.FrameStats) {
	fmt.Fprintf(w, "passes: %d live, %d culled, %d async, %d host\n", s.Live, s.Culled, s.AsyncPasses, s.HostPasses)
	fmt.Fprintf(w, "barriers: %d (%d release)\n", s.Barriers, s.ReleaseBarriers)
	fmt.Fprintf(w, "batches: %d\n", s.Batches)
	fmt.Fprintf(w, "allocations: %d, retired: %d, evicted: %d\n", s.Allocations, s.Retired, s.Evicted)
}
