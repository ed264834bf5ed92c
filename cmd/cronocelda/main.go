package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/tgienger/cronocelda/internal/ai"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/config"
	"github.com/tgienger/cronocelda/internal/db"
	"github.com/tgienger/cronocelda/internal/logging"
	"github.com/tgienger/cronocelda/internal/server"
	"github.com/tgienger/cronocelda/internal/timeline"
	"github.com/tgienger/cronocelda/internal/trello"
	"github.com/tgienger/cronocelda/internal/ui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `usage: cronocelda [serve | purge-cache | --version]

  (no command)  open the terminal timeline
  serve         run the HTTP API on server.addr
  purge-cache   forget every cached tagging result
`

// services is everything both front ends are built from
type services struct {
	cfg        *config.Config
	db         *db.DB
	trello     *trello.Client
	syncer     *timeline.Syncer
	summarizer *ai.Summarizer
	auth       *auth.Service
	log        zerolog.Logger
}

func main() {
	command := ""
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v":
			fmt.Printf("cronocelda %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		case "serve", "purge-cache":
			command = os.Args[1]
		case "--help", "-h", "help":
			fmt.Print(usage)
			os.Exit(0)
		default:
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The TUI owns the terminal, so it logs to a file
	build := logging.New().WithLevel(cfg.LogLevel)
	if command == "" {
		build = build.FromPath(cfg.LogFile)
	}
	logData, err := build.Make()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer logData.Close()

	svc, err := newServices(cfg, logData.Logger)
	if err != nil {
		logData.Logger.Error().Err(err).Msg("startup failed")
		fmt.Fprintf(os.Stderr, "Error initializing: %v\n", err)
		os.Exit(1)
	}
	defer svc.db.Close()

	switch command {
	case "serve":
		err = runServer(svc)
	case "purge-cache":
		err = db.NewTagCache(svc.db, svc.cfg.AI.CacheTTL).PurgeTags()
		if err == nil {
			fmt.Println("tag cache cleared")
		}
	default:
		err = runTUI(svc)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		os.Exit(1)
	}
}

func newServices(cfg *config.Config, log zerolog.Logger) (*services, error) {
	database, err := db.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	svc := &services{
		cfg:    cfg,
		db:     database,
		trello: trello.NewClient(cfg.Trello.BaseURL, cfg.Trello.Key, cfg.Trello.Token, log),
		log:    log,
	}

	// Without an API key milestones keep empty tags and summaries are off
	var tagger timeline.Tagger
	if cfg.AI.APIKey != "" {
		client, err := ai.NewClient(ai.ClientConfig{
			APIKey:      cfg.AI.APIKey,
			BaseURL:     cfg.AI.BaseURL,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			database.Close()
			return nil, err
		}
		tagger = ai.NewTagger(client, 0)
		svc.summarizer = ai.NewSummarizer(client)
	} else {
		log.Warn().Msg("no AI API key configured, tagging disabled")
	}

	tl := timeline.New(timeline.NewRegistry(cfg.Palette), log)
	for _, name := range cfg.Categories {
		if _, err := tl.AddCategory(name); err != nil {
			database.Close()
			return nil, fmt.Errorf("category %q: %w", name, err)
		}
	}
	dispatcher := timeline.NewDispatcher(tagger, db.NewTagCache(database, cfg.AI.CacheTTL), log)
	svc.syncer = timeline.NewSyncer(tl, svc.trello, dispatcher, log)

	var firebase *auth.FirebaseClient
	if cfg.Firebase.APIKey != "" {
		firebase = auth.NewFirebaseClient(cfg.Firebase.AuthURL, cfg.Firebase.APIKey, log)
	}
	var verifier *auth.Verifier
	if cfg.Firebase.ProjectID != "" {
		verifier = auth.NewVerifier(cfg.Firebase.ProjectID, auth.NewCertSource(cfg.Firebase.CertsURL))
	}
	svc.auth = auth.NewService(firebase, verifier, auth.NewAllowlist(cfg.AllowList()))

	return svc, nil
}

func runServer(svc *services) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Syncer:         svc.syncer,
		Auth:           svc.auth,
		AllowedOrigins: svc.cfg.Server.AllowedOrigins,
		Log:            svc.log,
	}
	if svc.summarizer != nil {
		opts.Summarizer = svc.summarizer
	}
	return server.New(opts).Run(ctx, svc.cfg.Server.Addr)
}

func runTUI(svc *services) error {
	session := svc.auth.NewSession()
	if token := svc.cfg.IDToken; token != "" {
		err := svc.auth.Resume(context.Background(), session, token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrNotAllowed):
			svc.log.Info().Msg("resumed session is read-only")
		default:
			svc.log.Warn().Err(err).Msg("could not resume session")
		}
	}

	deps := ui.Deps{
		DB:      svc.db,
		Cards:   svc.trello,
		BoardID: svc.cfg.Trello.BoardID,
		Syncer:  svc.syncer,
		Auth:    svc.auth,
		Session: session,
		Log:     svc.log,
	}
	if svc.summarizer != nil {
		deps.Summarizer = svc.summarizer
	}

	p := tea.NewProgram(ui.NewApp(deps), tea.WithAltScreen())
	_, err := p.Run()
	svc.syncer.Dispatcher().Wait()
	return err
}
