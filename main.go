package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"voxmate/app/client/f5tts"
	"voxmate/app/client/speechkit"
	"voxmate/app/client/whisper"
	"voxmate/app/config"
	"voxmate/app/service/capture"
	"voxmate/app/service/controller"
	"voxmate/app/service/reply"
	"voxmate/app/service/speech"
	"voxmate/app/service/voice"
	"voxmate/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	logFile, err := mylog.Init(cfg)
	if err != nil {
		log.Fatalf("logging init failed: %v", err)
	}
	defer logFile.Close()

	do.Provide(di, capture.New)
	do.Provide(di, speechkit.NewClient)
	do.Provide(di, whisper.New)
	do.Provide(di, provideRecognizer)
	do.Provide(di, speech.New)
	do.Provide(di, reply.New)
	do.Provide(di, f5tts.NewClient)
	do.Provide(di, voice.NewSpeaker)
	do.Provide(di, voice.New)
	do.Provide(di, func(i *do.Injector) (controller.Speech, error) {
		return do.Invoke[*speech.Service](i)
	})
	do.Provide(di, func(i *do.Injector) (controller.Reply, error) {
		return do.Invoke[*reply.Service](i)
	})
	do.Provide(di, func(i *do.Injector) (controller.Voice, error) {
		return do.Invoke[*voice.Service](i)
	})
	do.Provide(di, controller.New)

	assistant, err := do.Invoke[*controller.Service](di)
	if err != nil {
		log.Fatalf("assistant init failed: %v", err)
	}
	if cfg.Debug {
		assistant.SetTrace(func(event string, attrs ...any) {
			slog.Debug("Trace "+event, attrs...)
		})
	}

	slog.Info("Service started",
		"speech", cfg.Speech.Provider,
		"reply", cfg.Reply.Provider,
		"model", cfg.Reply.Model,
	)

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigint)

		select {
		case <-sigint:
			log.Info("Shutting down...")
			cancel()
		case <-groupCtx.Done():
		}

		return nil
	})

	group.Go(func() error {
		defer cancel()
		return assistant.Run(groupCtx)
	})

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Assistant stopped", "error", err)
	}
}

// provideRecognizer picks the speech-to-text backend named in the config.
func provideRecognizer(di *do.Injector) (speech.Recognizer, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if cfg.Speech.Provider == "whisper" {
		return do.Invoke[*whisper.Recognizer](di)
	}

	return do.Invoke[*speechkit.YandexSpeechKit](di)
}
