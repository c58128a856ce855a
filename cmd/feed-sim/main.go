package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/scoreboard/internal/feedsim"
	"github.com/okian/scoreboard/pkg/logger"
)

func main() {
	def := feedsim.DefaultConfig()
	var (
		baseURL      = flag.String("url", def.BaseURL, "Base URL of the relay")
		interval     = flag.Duration("interval", def.Interval, "Delay between posts")
		iterations   = flag.Int("iterations", 0, "Number of posts (0 runs until interrupted)")
		teams        = flag.Int("teams", def.Teams, "Number of generated teams")
		problems     = flag.Int("problems", def.Problems, "Problems per team")
		roster       = flag.String("roster", "", "YAML roster fixture (overrides -teams)")
		seed         = flag.Uint64("seed", 0, "Random seed (0 picks one)")
		timeout      = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		contestStart = flag.String("contest-start", "", "RFC3339 contest start to post first; \"now\" starts it immediately")
		contestMins  = flag.Int("contest-duration", def.ContestDuration, "Contest duration in minutes")
		verify       = flag.Bool("verify", false, "Read the relay back after every post")
		watch        = flag.Bool("watch", false, "Log websocket pushes")
		verbose      = flag.Bool("verbose", false, "Enable debug logging")
		jsonLogs     = flag.Bool("json", false, "Log as JSON")
	)
	flag.Parse()

	if err := logger.InitWithWriter(os.Stdout, *jsonLogs); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	cfg := feedsim.Config{
		BaseURL:         *baseURL,
		Interval:        *interval,
		Iterations:      *iterations,
		Teams:           *teams,
		Problems:        *problems,
		RosterFile:      *roster,
		Seed:            *seed,
		Timeout:         *timeout,
		ContestDuration: *contestMins,
		Verify:          *verify,
		Watch:           *watch,
	}
	switch *contestStart {
	case "":
	case "now":
		cfg.ContestStart = time.Now().Truncate(time.Second)
	default:
		start, err := time.Parse(time.RFC3339, *contestStart)
		if err != nil {
			os.Stderr.WriteString("invalid -contest-start: " + err.Error() + "\n")
			os.Exit(2)
		}
		cfg.ContestStart = start
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := feedsim.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "feed simulation failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
