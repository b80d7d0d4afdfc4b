package mylog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"voxmate/app/config"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

// Init replaces the boot logger with the console, the daily log file and,
// when configured, the Telegram sink. The returned file must be closed on exit.
func Init(cfg *config.Config) (*os.File, error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))

	file, err := openDailyFile(cfg.Log.Dir, "voice_assistant", time.Now())
	if err != nil {
		return nil, err
	}

	router = router.Add(slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: level,
	}))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			isTelegramRecord,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return file, nil
}

// DailyName returns "<prefix>_<DDMMYY>.log".
func DailyName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.log", prefix, t.Format("020106"))
}

func openDailyFile(dir, prefix string, t time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(dir, DailyName(prefix, t)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return file, nil
}

func isTelegramRecord(_ context.Context, r slog.Record) bool {
	if r.Level == slog.LevelError {
		return true
	}

	hasTelegram := false

	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "telegram" {
			hasTelegram = true
			return false
		}

		return true
	})

	return hasTelegram
}
