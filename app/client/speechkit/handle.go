package speechkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
)

type Handle struct {
	client stt.Recognizer_RecognizeStreamingClient
	cancel context.CancelFunc
}

func (h *Handle) Send(content []byte) error {
	var req stt.StreamingRequest
	req.SetChunk(&stt.AudioChunk{
		Data: content,
	})

	return h.client.Send(&req)
}

func (h *Handle) SendConfig(sampleRate int, language string) error {
	var audioFormatOpts stt.AudioFormatOptions
	audioFormatOpts.SetRawAudio(&stt.RawAudio{
		AudioEncoding:     stt.RawAudio_LINEAR16_PCM,
		SampleRateHertz:   int64(sampleRate),
		AudioChannelCount: 1,
	})

	var req stt.StreamingRequest
	req.SetSessionOptions(&stt.StreamingOptions{
		RecognitionModel: &stt.RecognitionModelOptions{
			Model:       "general",
			AudioFormat: &audioFormatOpts,
			LanguageRestriction: &stt.LanguageRestrictionOptions{
				RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
				LanguageCode:    []string{language},
			},
		},
	})

	return h.client.Send(&req)
}

func (h *Handle) CloseSend() error {
	return h.client.CloseSend()
}

func (h *Handle) Recv() ([]string, error) {
	res, err := h.client.Recv()
	if err != nil {
		return nil, fmt.Errorf("failed to receive stt: %w", err)
	}

	finalEvent := res.GetFinal()
	if finalEvent == nil {
		return nil, nil
	}

	// alternatives are ordered best first
	for _, alt := range finalEvent.Alternatives {
		if text := strings.TrimSpace(alt.Text); text != "" {
			return []string{text}, nil
		}
	}

	return nil, nil
}

func (h *Handle) Close() error {
	h.cancel()
	return nil
}
