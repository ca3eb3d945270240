package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"yt-monitor/internal/config"
	"yt-monitor/internal/db"
	"yt-monitor/internal/logger"
	"yt-monitor/internal/models"
	"yt-monitor/internal/websub"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "subscribe", "unsubscribe", "renew":
		os.Exit(cmdHub(command, args))
	case "status":
		os.Exit(cmdStatus(args))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `websub - manage hub subscriptions for monitored channels

Usage:
  websub subscribe [flags]     Subscribe every monitored channel
  websub unsubscribe [flags]   Unsubscribe every monitored channel
  websub renew [flags]         Renew every monitored channel's lease
  websub status                Show stored subscription state
  websub help                  Show this help message

For help on specific command: websub <command> -h
`)
}

type env struct {
	cfg      *config.Config
	channels []models.Channel
	store    db.Store
	logger   *slog.Logger
}

func setup(ctx context.Context) (*env, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	appLogger := logger.Setup(os.Stderr, cfg.LogLevel)

	channels, err := config.LoadChannels(cfg.ChannelsFile)
	if err != nil {
		return nil, err
	}
	store, err := db.Open(ctx, db.Options{
		Backend:     cfg.StorageBackend,
		DatabaseURL: cfg.DatabaseURL,
		DataDir:     cfg.DataDir,
		Logger:      appLogger,
	})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, channels: config.Monitored(channels), store: store, logger: appLogger}, nil
}

func cmdHub(mode string, args []string) int {
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	channelID := fs.String("channel", "", "Only act on this channel id")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: websub %s [flags]\n\nFlags:\n", mode)
		fs.PrintDefaults()
	}
	fs.Parse(args)

	ctx := context.Background()
	e, err := setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer e.store.Close()

	channels, err := selectChannels(e.channels, *channelID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	manager := websub.NewManager(websub.ManagerConfig{
		HubURL:       e.cfg.HubURL,
		CallbackURL:  e.cfg.CallbackURL(),
		VerifyToken:  e.cfg.VerifyToken,
		Secret:       e.cfg.WebhookSecret,
		LeaseSeconds: e.cfg.LeaseSeconds,
		Delay:        e.cfg.SubscribeDelay,
		Channels:     channels,
		HTTPClient:   &http.Client{Timeout: e.cfg.HubTimeout},
		Store:        e.store,
		Logger:       e.logger,
	})

	var results map[string]bool
	switch mode {
	case "subscribe":
		results = manager.SubscribeAll(ctx)
	case "unsubscribe":
		results = manager.UnsubscribeAll(ctx)
	default:
		results = manager.RenewAll(ctx)
	}

	if failed := printResults(os.Stdout, results); failed > 0 {
		return 1
	}
	return 0
}

func cmdStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	e, err := setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer e.store.Close()

	subs, err := e.store.ListSubscriptions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing subscriptions: %v\n", err)
		return 1
	}
	printStatus(os.Stdout, e.channels, subs, time.Now())
	return 0
}

func selectChannels(channels []models.Channel, channelID string) ([]models.Channel, error) {
	if channelID == "" {
		return channels, nil
	}
	for _, ch := range channels {
		if ch.ChannelID == channelID {
			return []models.Channel{ch}, nil
		}
	}
	return nil, errors.New("channel " + channelID + " is not monitored")
}

// printResults writes one line per channel and returns how many failed.
func printResults(w io.Writer, results map[string]bool) int {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	failed := 0
	for _, id := range ids {
		status := "ok"
		if !results[id] {
			status = "FAILED"
			failed++
		}
		fmt.Fprintf(w, "%-26s %s\n", id, status)
	}
	fmt.Fprintf(w, "%d/%d successful\n", len(ids)-failed, len(ids))
	return failed
}

// printStatus lists every monitored channel with its stored lease. Channels
// that were never subscribed show as "none".
func printStatus(w io.Writer, channels []models.Channel, subs []models.Subscription, now time.Time) {
	byChannel := make(map[string]models.Subscription, len(subs))
	for _, s := range subs {
		byChannel[s.ChannelID] = s
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tNAME\tSTATUS\tEXPIRES\tLAST ERROR")
	for _, ch := range channels {
		sub, ok := byChannel[ch.ChannelID]
		if !ok {
			fmt.Fprintf(tw, "%s\t%s\tnone\t-\t-\n", ch.ChannelID, ch.DisplayName)
			continue
		}
		expires := "-"
		if sub.LeaseExpiry != nil {
			expires = sub.LeaseExpiry.UTC().Format(time.RFC3339)
		}
		lastErr := sub.LastError
		if lastErr == "" {
			lastErr = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ch.ChannelID, ch.DisplayName, sub.StatusAt(now), expires, lastErr)
	}
	tw.Flush()
}
