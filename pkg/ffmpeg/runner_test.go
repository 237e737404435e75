package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/framegrab/internal/testutil"
)

func TestStart_DrainsLargeOutputOnBothStreams(t *testing.T) {
	// ~1 MiB on each stream, far beyond a pipe buffer.
	bin := testutil.FakeBinary(t, "ffmpeg", `
i=0
while [ $i -lt 16384 ]; do
  echo "stdout line $i padding padding padding padding padding"
  echo "stderr line $i padding padding padding padding padding" >&2
  i=$((i+1))
done
exit 0`)

	var stdout bytes.Buffer
	var mu sync.Mutex
	lines := 0

	r := NewRunner(bin, "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	proc, err := r.StartFFmpeg(ctx, nil, StartOptions{
		Stdout: &stdout,
		OnStderrLine: func(string) {
			mu.Lock()
			lines++
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NoError(t, proc.Wait())

	assert.Equal(t, 16384, lines)
	assert.Equal(t, 16384, strings.Count(stdout.String(), "\n"))
	assert.Contains(t, proc.Stderr(), "stderr line 16383")
}

func TestStart_CarriageReturnSplitsLines(t *testing.T) {
	bin := testutil.FakeBinary(t, "ffmpeg", `printf 'frame=1\rframe=2\rframe=3\ndone\n' >&2`)

	var got []string
	r := NewRunner(bin, "", nil)
	proc, err := r.StartFFmpeg(context.Background(), nil, StartOptions{
		OnStderrLine: func(line string) { got = append(got, line) },
	})
	require.NoError(t, err)
	require.NoError(t, proc.Wait())

	assert.Equal(t, []string{"frame=1", "frame=2", "frame=3", "done"}, got)
}

func TestStart_NonZeroExitCarriesCode(t *testing.T) {
	bin := testutil.FakeBinary(t, "ffmpeg", `echo "Invalid data found when processing input" >&2; exit 3`)

	r := NewRunner(bin, "", nil)
	proc, err := r.StartFFmpeg(context.Background(), []string{"-i", "x"}, StartOptions{})
	require.NoError(t, err)

	err = proc.Wait()
	require.Error(t, err)

	var ffErr *Error
	require.ErrorAs(t, err, &ffErr)
	assert.Equal(t, 3, ffErr.ExitCode())
	assert.Equal(t, 3, ExitCode(err))
	assert.Contains(t, ffErr.Error(), "Invalid data found")
	assert.Equal(t, bin+" -i x", ffErr.Command())
}

func TestStart_ContextDeadlineKillsProcess(t *testing.T) {
	bin := testutil.FakeBinary(t, "ffmpeg", `exec sleep 30`)

	r := NewRunner(bin, "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	proc, err := r.StartFFmpeg(ctx, nil, StartOptions{})
	require.NoError(t, err)

	waited := make(chan error, 1)
	go func() { waited <- proc.Wait() }()

	select {
	case err = <-waited:
	case <-time.After(10 * time.Second):
		t.Fatal("process was not killed after deadline")
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, -1, ExitCode(err))
}

func TestStart_MissingBinary(t *testing.T) {
	r := NewRunner("/nonexistent/ffmpeg-binary", "", nil)
	_, err := r.StartFFmpeg(context.Background(), nil, StartOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}

func TestLineTail_KeepsMostRecent(t *testing.T) {
	tail := newLineTail(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		tail.Add(l)
	}
	assert.Equal(t, "c\nd\ne", tail.String())

	short := newLineTail(3)
	short.Add("x")
	assert.Equal(t, "x", short.String())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, -1, ExitCode(errors.New("boom")))
}
