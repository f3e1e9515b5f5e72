package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/homebaseviz/nostr"
	"github.com/homebaseviz/nostr/sdk"
	cache_memory "github.com/homebaseviz/nostr/sdk/cache/memory"
	"github.com/homebaseviz/nostr/timeline"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

var app = &cli.Command{
	Name:      "relayfeed",
	Usage:     "follows a set of nostr relays and prints the events they send, each one once",
	UsageText: "relayfeed [--relay wss://...]... [--npub npub1...] [--filter '{...}'] [--follow-notes]",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "relay",
			Aliases: []string{"r"},
			Usage:   "relay to connect to, can be given many times",
			Value:   []string{"wss://nos.lol", "wss://relay.snort.social"},
			Sources: cli.EnvVars("RELAYFEED_RELAYS"),
		},
		&cli.StringFlag{
			Name:    "npub",
			Usage:   "only follow events by this author (npub, nprofile or hex)",
			Sources: cli.EnvVars("RELAYFEED_NPUB"),
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "filter as JSON, overrides --npub and --profiles",
			Sources: cli.EnvVars("RELAYFEED_FILTER"),
		},
		&cli.IntFlag{
			Name:    "profiles",
			Usage:   "how many profiles to ask for when no author or filter is given",
			Value:   50,
			Sources: cli.EnvVars("RELAYFEED_PROFILES"),
		},
		&cli.BoolFlag{
			Name:    "follow-notes",
			Usage:   "once profiles stop arriving, switch to the notes of their authors",
			Sources: cli.EnvVars("RELAYFEED_FOLLOW_NOTES"),
		},
		&cli.IntFlag{
			Name:    "notes",
			Usage:   "limit of the notes filter used by --follow-notes",
			Value:   100,
			Sources: cli.EnvVars("RELAYFEED_NOTES"),
		},
		&cli.DurationFlag{
			Name:    "settle",
			Usage:   "how long profiles must stop arriving before --follow-notes switches",
			Value:   5 * time.Second,
			Sources: cli.EnvVars("RELAYFEED_SETTLE"),
		},
		&cli.IntFlag{
			Name:    "max-retries",
			Usage:   "reconnection attempts per relay before giving up, negative to never retry",
			Value:   5,
			Sources: cli.EnvVars("RELAYFEED_MAX_RETRIES"),
		},
		&cli.DurationFlag{
			Name:    "retry-delay",
			Usage:   "wait between reconnection attempts",
			Value:   5 * time.Second,
			Sources: cli.EnvVars("RELAYFEED_RETRY_DELAY"),
		},
		&cli.StringFlag{
			Name:    "subscription-id",
			Usage:   "id used for the subscription on every relay",
			Value:   nostr.DefaultSubscriptionID,
			Sources: cli.EnvVars("RELAYFEED_SUBSCRIPTION_ID"),
		},
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "stop after this long, zero to run until interrupted",
		},
		&cli.BoolFlag{
			Name:  "summary",
			Usage: "print a short human readable description of each event instead of its JSON",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "log protocol details",
			Sources: cli.EnvVars("RELAYFEED_DEBUG"),
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		level := zerolog.InfoLevel
		if c.Bool("debug") {
			level = zerolog.DebugLevel
		}
		nostr.SetLogOutput(os.Stderr, level)
		logger := nostr.Logger.With().Str("cmd", "relayfeed").Logger()

		filter, err := resolveFilter(c.String("filter"), c.String("npub"), int(c.Int("profiles")))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if d := c.Duration("duration"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		maxRetries := int(c.Int("max-retries"))
		if maxRetries == 0 {
			// zero would mean the library default
			maxRetries = -1
		}
		manager := nostr.NewManager(nostr.ManagerOptions{
			SubscriptionID: c.String("subscription-id"),
			MaxRetries:     maxRetries,
			RetryDelay:     c.Duration("retry-delay"),
			Logger:         &nostr.Logger,
		})

		profiles := sdk.NewProfileCache(cache_memory.New[sdk.ProfileMetadata](8000), &logger)
		tl := timeline.New(0)
		out := newPrinter(os.Stdout, profiles, c.Bool("summary"), &logger)

		callback := profiles.Collect(tl.Collect(out.print))
		var chain *sdk.AuthorChain
		if c.Bool("follow-notes") {
			chain = sdk.NewAuthorChain(manager, sdk.AuthorChainOptions{
				Settle:     c.Duration("settle"),
				NotesLimit: int(c.Int("notes")),
				Logger:     &logger,
			})
			callback = chain.Collect(callback)
		}

		if err := manager.Subscribe(c.StringSlice("relay"), filter, callback); err != nil {
			return err
		}
		logger.Info().Str("filter", filter.String()).Strs("relays", c.StringSlice("relay")).Msg("subscribed")

		<-ctx.Done()

		if chain != nil {
			chain.Stop()
		}
		statuses := manager.GetStatus()
		manager.Close()

		logger.Info().Int("events", tl.Len()).Msg("done")
		return printStatusTable(os.Stderr, statuses)
	},
}

func main() {
	// a .env file in the working directory provides defaults for the RELAYFEED_ variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "failed to read .env:", err)
		os.Exit(1)
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
