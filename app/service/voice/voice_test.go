package voice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeWAV(t *testing.T, samples []int, channels, sampleRate int) []byte {
	t.Helper()

	fs := afero.NewMemMapFs()
	file, err := fs.Create("out.wav")
	require.NoError(t, err)

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, file.Close())

	data, err := afero.ReadFile(fs, "out.wav")
	require.NoError(t, err)

	return data
}

type fakeSynth struct {
	audio []byte
	err   error
	texts []string
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.texts = append(f.texts, text)
	return f.audio, f.err
}

type fakePlayer struct {
	clips []*Clip
	err   error
}

func (f *fakePlayer) Play(_ context.Context, clip *Clip) error {
	f.clips = append(f.clips, clip)
	return f.err
}

type manualClock struct {
	now  time.Time
	step time.Duration
}

func (c *manualClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func newTestService(synth Synthesizer, player Player) (*Service, afero.Fs) {
	fs := afero.NewMemMapFs()
	svc := NewWith(synth, player, NewJournal(fs, "logs"))

	clock := &manualClock{now: time.Date(2024, time.November, 18, 12, 0, 0, 0, time.Local), step: time.Second}
	svc.now = clock.Now

	return svc, fs
}

func TestDecodeWAV(t *testing.T) {
	data := encodeWAV(t, []int{0, 16384, -16384, -32768, 100, 200, 300, 400}, 2, 8000)

	clip, err := DecodeWAV(data)
	require.NoError(t, err)

	assert.Equal(t, 2, clip.Channels)
	assert.Equal(t, 8000, clip.SampleRate)
	assert.Equal(t, 4, clip.Frames())
	assert.Equal(t, 500*time.Microsecond, clip.Duration)
	assert.InDeltaSlice(t, []float32{0, 0.5, -0.5, -1}, clip.Samples[:4], 1e-6)
}

func TestDecodeWAV_Invalid(t *testing.T) {
	_, err := DecodeWAV([]byte("definitely not audio"))
	assert.Error(t, err)
}

func TestSpeak_PlaysAndJournals(t *testing.T) {
	synth := &fakeSynth{audio: encodeWAV(t, make([]int, 16000), 1, 16000)}
	player := &fakePlayer{}
	svc, fs := newTestService(synth, player)

	require.NoError(t, svc.Speak(context.Background(), "  How can I assist you?  "))

	assert.Equal(t, []string{"How can I assist you?"}, synth.texts)
	require.Len(t, player.clips, 1)
	assert.Equal(t, time.Second, player.clips[0].Duration)

	journal, err := afero.ReadFile(fs, "logs/tts_181124.log")
	require.NoError(t, err)
	assert.Equal(t,
		"[INFO] [2024-11-18 12:00:01]: tts text_len=21 synthesis=1.00s audio=1.00s total=2.00s ok\n",
		string(journal),
	)
}

func TestSpeak_BlankTextDoesNothing(t *testing.T) {
	synth := &fakeSynth{}
	svc, fs := newTestService(synth, &fakePlayer{})

	require.NoError(t, svc.Speak(context.Background(), " \t"))

	assert.Empty(t, synth.texts)
	exists, _ := afero.DirExists(fs, "logs")
	assert.False(t, exists)
}

func TestSpeak_SynthesisFailure(t *testing.T) {
	down := errors.New("connection refused")
	player := &fakePlayer{}
	svc, fs := newTestService(&fakeSynth{err: down}, player)

	err := svc.Speak(context.Background(), "hello")
	assert.ErrorIs(t, err, down)
	assert.Empty(t, player.clips)

	journal, err := afero.ReadFile(fs, "logs/tts_181124.log")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(journal), "failed: connection refused\n"))
}

func TestSpeak_PlaybackFailure(t *testing.T) {
	busy := errors.New("device busy")
	synth := &fakeSynth{audio: encodeWAV(t, make([]int, 160), 1, 16000)}
	svc, _ := newTestService(synth, &fakePlayer{err: busy})

	assert.ErrorIs(t, svc.Speak(context.Background(), "hello"), busy)
}

func TestJournal_AppendsPerDay(t *testing.T) {
	fs := afero.NewMemMapFs()
	journal := NewJournal(fs, "logs")

	day := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, journal.Append(Entry{At: day, TextLen: 1}))
	require.NoError(t, journal.Append(Entry{At: day.Add(time.Hour), TextLen: 2}))
	require.NoError(t, journal.Append(Entry{At: day.Add(24 * time.Hour), TextLen: 3}))

	first, err := afero.ReadFile(fs, "logs/tts_020124.log")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(first), "\n"))

	second, err := afero.ReadFile(fs, "logs/tts_030124.log")
	require.NoError(t, err)
	assert.Contains(t, string(second), "text_len=3")
}
