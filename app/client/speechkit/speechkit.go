package speechkit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"voxmate/app/config"

	"github.com/samber/do"
	"github.com/samber/oops"
	ycsdk "github.com/yandex-cloud/go-sdk"
	"github.com/yandex-cloud/go-sdk/iamkey"
	"golang.org/x/sync/errgroup"
)

const chunkSamples = 2048

type YandexSpeechKit struct {
	cfg *config.Config
	sdk *ycsdk.SDK
}

func NewClient(di *do.Injector) (*YandexSpeechKit, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	keyBytes, err := os.ReadFile(cfg.Speech.SpeechKit.KeyFile)
	if err != nil {
		return nil, oops.Errorf("could not read service account key: %w", err)
	}

	var key iamkey.Key
	if err = json.Unmarshal(keyBytes, &key); err != nil {
		return nil, oops.Errorf("could not parse service account key: %w", err)
	}

	creds, err := ycsdk.ServiceAccountKey(&key)
	if err != nil {
		return nil, oops.Errorf("could not create service account key: %w", err)
	}

	sdk, err := ycsdk.Build(ctx, ycsdk.Config{
		Credentials: creds,
	})
	if err != nil {
		return nil, oops.Errorf("failed to create Yandex SDK: %w", err)
	}

	return &YandexSpeechKit{
		cfg: cfg,
		sdk: sdk,
	}, nil
}

func (y *YandexSpeechKit) Start(ctx context.Context) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)

	client, err := y.sdk.AI().STTV3().Recognizer().RecognizeStreaming(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Handle{
		client: client,
		cancel: cancel,
	}, nil
}

// Recognize runs one streaming session over a finished utterance and joins
// every final result into a single transcript.
func (y *YandexSpeechKit) Recognize(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	handle, err := y.Start(ctx)
	if err != nil {
		return "", err
	}
	defer handle.Close()

	var (
		mu    sync.Mutex
		parts []string
	)

	var g errgroup.Group

	g.Go(func() error {
		if err := y.streamAudio(handle, pcm, sampleRate); err != nil {
			handle.Close()
			return err
		}

		return nil
	})

	g.Go(func() error {
		for {
			sentences, err := handle.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			mu.Lock()
			parts = append(parts, sentences...)
			mu.Unlock()
		}
	})

	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("speechkit recognition failed: %w", err)
	}

	return strings.Join(parts, " "), nil
}

func (y *YandexSpeechKit) streamAudio(handle *Handle, pcm []int16, sampleRate int) error {
	if err := handle.SendConfig(sampleRate, y.cfg.Speech.SpeechKit.Language); err != nil {
		return fmt.Errorf("failed to send audio config: %w", err)
	}

	for _, chunk := range Chunks(pcm, chunkSamples) {
		if err := handle.Send(chunk); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
	}

	if err := handle.CloseSend(); err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}

	return nil
}

// Chunks encodes samples as little-endian LINEAR16 in pieces of at most size samples.
func Chunks(pcm []int16, size int) [][]byte {
	var result [][]byte

	for start := 0; start < len(pcm); start += size {
		end := min(start+size, len(pcm))

		chunk := make([]byte, (end-start)*2)
		for i, s := range pcm[start:end] {
			binary.LittleEndian.PutUint16(chunk[i*2:], uint16(s))
		}

		result = append(result, chunk)
	}

	return result
}
