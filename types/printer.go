package types

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gosuri/uilive"
	"github.com/ttacon/chalk"
)

// TERMINAL PRINTER

// TerminalPrinter refreshes one terminal line per parallel experiment
type TerminalPrinter struct {
	parallelOutputs *[]*ParallelOutput
	ctx             context.Context
	printerCtx      context.Context
	printerCancel   context.CancelFunc
	frequency       int
	stopped         chan struct{}

	writer  *uilive.Writer
	writers []io.Writer
}

func NewTerminalPrinter(ctx context.Context, parallelOutputs *[]*ParallelOutput, frequency int) *TerminalPrinter {
	printerCtx, cancel := context.WithCancel(ctx)
	size := len(*parallelOutputs)
	writers := make([]io.Writer, size)
	writer := uilive.New()
	for i := 0; i < size-1; i++ {
		writers[i] = writer.Newline()
	}

	return &TerminalPrinter{
		parallelOutputs: parallelOutputs,
		ctx:             ctx,
		printerCtx:      printerCtx,
		printerCancel:   cancel,
		frequency:       frequency,
		stopped:         make(chan struct{}),

		writer:  writer,
		writers: writers,
	}
}

func (p *TerminalPrinter) Start() {
	go func() {
		defer close(p.stopped)
		for {
			select {
			case <-p.printerCtx.Done():
				p.print()
				p.writer.Stop()
				return
			case <-time.After(time.Duration(p.frequency) * time.Second):
				p.print()
			}
		}
	}()
}

// Stop prints a last time and waits for the printer to return
func (p *TerminalPrinter) Stop() {
	p.printerCancel()
	<-p.stopped
}

func (p *TerminalPrinter) print() {
	for i, output := range *p.parallelOutputs {
		s := output.Colored()
		if i == 0 {
			fmt.Fprint(p.writer, s+"\n")
		} else {
			fmt.Fprint(p.writers[i-1], s+"\n")
		}
	}
	p.writer.Flush()
}

// PARALLEL OUTPUT

// used to update and print experiment outputs
type ParallelOutput struct {
	mu        sync.Mutex
	printable string

	finished bool
}

func NewParallelOutput() *ParallelOutput {
	return &ParallelOutput{
		mu:        sync.Mutex{},
		printable: "Pending",
	}
}

// Set the output string (blocking)
func (p *ParallelOutput) Set(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printable = s
}

// Try to set the output string (non-blocking)
func (p *ParallelOutput) TrySet(s string) bool {
	success := p.mu.TryLock()
	if success {
		defer p.mu.Unlock()
		p.printable = s
		return true
	}
	return false
}

// Done marks the experiment as finished
func (p *ParallelOutput) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = true
}

// Get the output string (blocking)
func (p *ParallelOutput) Get() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printable
}

// Colored returns the output with a color for its progress: yellow while
// running, green when finished and red when aborted
func (p *ParallelOutput) Colored() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case strings.HasSuffix(p.printable, "(aborted)"):
		return chalk.Red.Color(p.printable)
	case p.finished:
		return chalk.Green.Color(p.printable)
	default:
		return chalk.Yellow.Color(p.printable)
	}
}
