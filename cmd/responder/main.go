// Command responder is a simulator for a responder device: it joins an
// incident, reports a jittered position on a fixed cadence, and turns stdin
// lines into chat and SOS commands.
package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fireline/fireline/internal/logger"
	"github.com/fireline/fireline/internal/responder"
	"github.com/fireline/fireline/internal/responder/config"
)

const locationInterval = 10 * time.Second

func main() {
	cfg := config.Load()

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	client := responder.New(cfg)
	client.View().OnChat = func(from, text string, at int64) {
		slog.Info("chat", "from", from, "text", text)
	}

	slog.Info("starting responder simulator",
		"edge", cfg.EdgeURL,
		"incident", cfg.IncidentID,
		"responder", cfg.ResponderID,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	go reportLocations(ctx, client)
	go readCommands(ctx, client)

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("client failed", "error", err)
		os.Exit(1)
	}
}

// reportLocations walks a synthetic position around a base point. Real
// devices source this from geolocation hardware.
func reportLocations(ctx context.Context, client *responder.Client) {
	lat, lng := 37.7749, -122.4194
	ticker := time.NewTicker(locationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lat += (rand.Float64() - 0.5) * 0.001
			lng += (rand.Float64() - 0.5) * 0.001
			accuracy := 5 + rand.Float64()*20
			if _, err := client.Sender().EnqueueLocation(lat, lng, &accuracy); err != nil {
				slog.Error("enqueue location failed", "error", err)
			}
		}
	}
}

// readCommands turns stdin lines into intents: "/sos [note]" raises an SOS,
// "/clear" clears it, "/status" prints the observable state, anything else
// is chat.
func readCommands(ctx context.Context, client *responder.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		switch {
		case line == "/clear":
			_, err = client.Sender().EnqueueSosClear()
		case line == "/status":
			snap := client.View().Snapshot()
			slog.Info("status",
				"connection", snap.Status,
				"responders", strings.Join(snap.Responders, ","),
				"locations", len(snap.Locations),
				"sos", len(snap.Sos),
				"outbox", client.Sender().Queue().Len(),
			)
		case strings.HasPrefix(line, "/sos"):
			note := strings.TrimSpace(strings.TrimPrefix(line, "/sos"))
			_, err = client.Sender().EnqueueSosRaise(note)
		default:
			_, err = client.Sender().EnqueueChat(line)
		}
		if err != nil {
			slog.Error("enqueue failed", "error", err)
		}
	}
}
