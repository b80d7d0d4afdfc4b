package capture

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/zenwerk/go-wave"
)

// Dumper writes captured utterances as 16-bit mono WAV files.
type Dumper struct {
	fs  afero.Fs
	dir string
}

func NewDumper(fs afero.Fs, dir string) *Dumper {
	return &Dumper{fs: fs, dir: dir}
}

func (d *Dumper) Write(samples []int16, sampleRate int, at time.Time) (string, error) {
	if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create dump dir: %w", err)
	}

	name := filepath.Join(d.dir, fmt.Sprintf("utterance_%s.wav", at.Format("20060102_150405.000")))

	file, err := d.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("failed to create dump file: %w", err)
	}

	writer, err := wave.NewWriter(wave.WriterParam{
		Out:           file,
		Channel:       1,
		SampleRate:    sampleRate,
		BitsPerSample: 16,
	})
	if err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to create wave writer: %w", err)
	}

	if _, err := writer.WriteSample16(samples); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write samples: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close wave writer: %w", err)
	}

	return name, nil
}
