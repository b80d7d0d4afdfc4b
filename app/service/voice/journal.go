package voice

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voxmate/app/util/mylog"

	"github.com/spf13/afero"
)

// Entry is one synthesis round trip.
type Entry struct {
	At        time.Time
	TextLen   int
	Synthesis time.Duration
	Audio     time.Duration
	Total     time.Duration
	Err       error
}

func (e Entry) String() string {
	outcome := "ok"
	if e.Err != nil {
		outcome = "failed: " + e.Err.Error()
	}

	return fmt.Sprintf("[INFO] [%s]: tts text_len=%d synthesis=%.2fs audio=%.2fs total=%.2fs %s\n",
		e.At.Format("2006-01-02 15:04:05"),
		e.TextLen,
		e.Synthesis.Seconds(),
		e.Audio.Seconds(),
		e.Total.Seconds(),
		outcome,
	)
}

// Journal appends round trips to a daily tts_<DDMMYY>.log file.
type Journal struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

func NewJournal(fs afero.Fs, dir string) *Journal {
	return &Journal{fs: fs, dir: dir}
}

func (j *Journal) Append(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.fs.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create journal dir: %w", err)
	}

	name := filepath.Join(j.dir, mylog.DailyName("tts", entry.At))

	file, err := j.fs.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	if _, err = file.WriteString(entry.String()); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}

	return nil
}
