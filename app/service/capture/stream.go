package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// FFmpegStream reads raw s16le mono PCM from a local input device through ffmpeg.
type FFmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
	// closed once stderr is drained
	logged chan struct{}
	mu     sync.Mutex
}

func NewFFmpegStream(ctx context.Context, format, device string, sampleRate int) (*FFmpegStream, error) {
	args := []string{
		"-loglevel", "warning",
		"-nostdin",
		"-f", format,
		"-i", device,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	slog.Debug("Running ffmpeg", "cmd", "ffmpeg "+strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	return &FFmpegStream{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		logged: make(chan struct{}),
	}, nil
}

func (f *FFmpegStream) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	go f.logStderr()

	return nil
}

func (f *FFmpegStream) Read(p []byte) (int, error) {
	return f.stdout.Read(p)
}

// Close kills ffmpeg and reaps it. The microphone is released once it returns.
func (f *FFmpegStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cmd.Process == nil {
		return nil
	}

	_ = f.cmd.Process.Kill()
	<-f.logged
	_ = f.cmd.Wait()

	return nil
}

func (f *FFmpegStream) logStderr() {
	defer close(f.logged)

	scanner := bufio.NewScanner(f.stderr)
	for scanner.Scan() {
		slog.Debug("ffmpeg", "stderr", scanner.Text())
	}
}

// Microphone opens a fresh ffmpeg capture for every Open call.
type Microphone struct {
	Format     string
	Device     string
	SampleRate int
}

func (m *Microphone) Open(ctx context.Context) (io.ReadCloser, error) {
	stream, err := NewFFmpegStream(ctx, m.Format, m.Device, m.SampleRate)
	if err != nil {
		return nil, err
	}

	if err := stream.Start(); err != nil {
		return nil, err
	}

	return stream, nil
}
