package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	// stderrTailLines is how many trailing stderr lines a Process keeps for error messages.
	stderrTailLines = 20

	maxStderrLine = 1 << 20
)

// Runner launches ffmpeg and ffprobe binaries.
type Runner struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *slog.Logger
}

// NewRunner returns a Runner for the given binaries. Empty paths fall back to
// "ffmpeg" and "ffprobe" resolved from PATH.
func NewRunner(ffmpegPath, ffprobePath string, logger *slog.Logger) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, Logger: logger}
}

// StartOptions controls where a process's output goes while it runs.
type StartOptions struct {
	// Stdout receives standard output as it is read. Nil discards it.
	Stdout io.Writer
	// OnStderrLine is called for every stderr line (split on \n or \r) as it arrives.
	OnStderrLine func(line string)
}

// Process is a running ffmpeg or ffprobe child. Cancel the context passed to
// Start to kill it.
type Process struct {
	pid  int
	done chan struct{}
	err  error
	tail *lineTail
}

// PID returns the process ID, or 0 if not started.
func (p *Process) PID() int {
	return p.pid
}

// Wait blocks until both output streams are drained and the process has exited.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Stderr returns the last stderr lines seen so far.
func (p *Process) Stderr() string {
	return p.tail.String()
}

// StartFFmpeg starts ffmpeg with args.
func (r *Runner) StartFFmpeg(ctx context.Context, args []string, opts StartOptions) (*Process, error) {
	return start(ctx, r.FFmpegPath, args, opts)
}

// StartFFprobe starts ffprobe with args.
func (r *Runner) StartFFprobe(ctx context.Context, args []string, opts StartOptions) (*Process, error) {
	return start(ctx, r.FFprobePath, args, opts)
}

// start launches binary and drains stdout and stderr on their own goroutines so
// a full pipe buffer can never stall the child. The returned Process resolves
// only after both streams hit EOF and the child has been reaped.
func start(ctx context.Context, binary string, args []string, opts StartOptions) (*Process, error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create stdout pipe: %w", binary, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create stderr pipe: %w", binary, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: failed to start: %w", binary, err)
	}

	p := &Process{
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
		tail: newLineTail(stderrTailLines),
	}

	sink := opts.Stdout
	if sink == nil {
		sink = io.Discard
	}

	var drains errgroup.Group
	drains.Go(func() error {
		_, err := io.Copy(sink, stdout)
		if err != nil {
			// Keep the pipe moving even if the sink gave up.
			_, _ = io.Copy(io.Discard, stdout)
		}
		return err
	})
	drains.Go(func() error {
		return drainLines(stderr, func(line string) {
			p.tail.Add(line)
			if opts.OnStderrLine != nil {
				opts.OnStderrLine(line)
			}
		})
	})

	go func() {
		defer close(p.done)

		drainErr := drains.Wait()
		waitErr := cmd.Wait()

		switch {
		case waitErr != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				waitErr = errors.Join(ctxErr, waitErr)
			}
			p.err = &Error{Binary: binary, Args: args, Stderr: p.tail.String(), Err: waitErr}
		case drainErr != nil:
			p.err = &Error{Binary: binary, Args: args, Stderr: p.tail.String(), Err: fmt.Errorf("read output: %w", drainErr)}
		}
	}()

	return p, nil
}

// drainLines reads r until EOF, calling fn once per non-empty line. ffmpeg
// rewrites its status line with \r, so both \r and \n terminate a line. An
// overlong line stops line splitting but not reading.
func drainLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStderrLine)
	scanner.Split(scanLinesOrCR)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}

func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// lineTail is a bounded ring of the most recent lines.
type lineTail struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newLineTail(n int) *lineTail {
	return &lineTail{lines: make([]string, n)}
}

func (t *lineTail) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
}

func (t *lineTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ordered []string
	if t.full {
		ordered = append(ordered, t.lines[t.next:]...)
	}
	ordered = append(ordered, t.lines[:t.next]...)
	return strings.Join(ordered, "\n")
}

// Error represents an ffmpeg or ffprobe execution error with context.
type Error struct {
	Binary string
	Args   []string
	Stderr string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	// Extract just the last few lines of stderr for the error message
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	var lastLines string
	if len(lines) > 3 {
		lastLines = strings.Join(lines[len(lines)-3:], "\n")
	} else {
		lastLines = strings.Join(lines, "\n")
	}

	if lastLines != "" {
		return fmt.Sprintf("%s: %v: %s", e.Binary, e.Err, lastLines)
	}
	return fmt.Sprintf("%s: %v", e.Binary, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code, or -1 if the process did not exit
// normally (killed by a signal, never reaped, or failed while reading output).
func (e *Error) ExitCode() int {
	return ExitCode(e)
}

// Command returns the command that was executed.
func (e *Error) Command() string {
	return e.Binary + " " + strings.Join(e.Args, " ")
}

// ExitCode extracts a process exit code from err. It returns 0 for a nil error
// and -1 when err carries no exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
