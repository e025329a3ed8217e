// Command dubash runs a live bidirectional translation session between a
// traveler and a local speaker, streaming microphone audio to a remote
// translation service and playing the synthesized replies.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"go.dubash.app/dubash/audiocapture"
	"go.dubash.app/dubash/broker"
	"go.dubash.app/dubash/config"
	"go.dubash.app/dubash/history"
	"go.dubash.app/dubash/internal/types"
	"go.dubash.app/dubash/langdetect"
	"go.dubash.app/dubash/langmap"
	"go.dubash.app/dubash/livebridge"
	"go.dubash.app/dubash/playback"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		city      = flag.String("city", "", "city you are in (sets the target language)")
		lang      = flag.String("lang", "", "target language, overrides the city mapping")
		brokerURL = flag.String("broker", "", "session broker URL, overrides config")
		direction = flag.String("direction", "outgoing", "initial speaker: outgoing (you) or incoming (them)")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *brokerURL != "" {
		cfg.BrokerURL = *brokerURL
	}
	if cfg.BrokerURL == "" {
		return fmt.Errorf("no session broker configured; pass -broker or set broker_url in the config file")
	}

	location := cfg.DefaultCity
	if *city != "" {
		location = *city
	}
	entry := langmap.Default
	if resolved, e, ok := langmap.Resolve(location); ok {
		location, entry = resolved, e
	}
	language := entry.Language
	if *lang != "" {
		language = *lang
	}
	slog.Info("session target", "city", location, "language", language)

	dir := types.Direction(strings.ToLower(*direction))
	if dir != types.DirectionOutgoing && dir != types.DirectionIncoming {
		return fmt.Errorf("unknown direction %q", *direction)
	}

	capture, err := audiocapture.New(cfg.CaptureRate)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}

	opts := livebridge.Options{
		Broker:       broker.NewClient(cfg.BrokerURL),
		Capture:      capture,
		Playback:     playback.NewScheduler(playback.OpenDefault()),
		Detect:       langdetect.New(),
		Model:        cfg.Model,
		Voice:        cfg.Voice,
		PlaybackRate: cfg.PlaybackRate,
	}

	if cfg.HistoryDir != "" {
		store, err := history.Open(cfg.HistoryDir)
		if err != nil {
			slog.Warn("history disabled", "error", err)
		} else {
			defer store.Close()
			opts.Archive = store
		}
	}

	svc, err := livebridge.NewService(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx, location, language, dir); err != nil {
		return err
	}
	defer svc.Stop()

	fmt.Println("session active, speak now (ctrl-c to end)")
	watch(ctx, svc)
	return nil
}

// watch polls session status and prints conversation turns as they grow,
// until the session ends or the context is cancelled.
func watch(ctx context.Context, svc *livebridge.Service) {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	printed := make(map[string]string)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := svc.Status()
		for _, turn := range st.Messages {
			if printed[turn.ID] == turn.Content {
				continue
			}
			printed[turn.ID] = turn.Content
			fmt.Printf("[%s] %s\n", turn.Role, turn.Content)
		}
		if !st.Active && !st.Connecting {
			if st.Err != "" {
				slog.Error("session ended", "error", st.Err)
			} else {
				slog.Info("session ended")
			}
			return
		}
	}
}
