package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ignatij/agendaflow/internal/config"
	internal_http "github.com/ignatij/agendaflow/internal/http"
	"github.com/ignatij/agendaflow/internal/log"
	"github.com/ignatij/agendaflow/internal/mailer"
	"github.com/ignatij/agendaflow/internal/notify"
	internal_storage "github.com/ignatij/agendaflow/internal/storage"
	"github.com/ignatij/agendaflow/pkg/models"
	"github.com/ignatij/agendaflow/pkg/service"
	"github.com/ignatij/agendaflow/pkg/storage"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("config", config.DefaultConfigPath(), "Path to the TOML configuration file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Process every participant once and print the run log",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			if fast, _ := cmd.Flags().GetBool("fast"); fast {
				cfg.Pacing = config.PacingConfig{}
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := runOnce(ctx, cfg, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	runCmd.Flags().Bool("fast", false, "Skip the pauses between steps")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the live event stream",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			if port, _ := cmd.Flags().GetInt("port"); port > 0 {
				cfg.Web.Port = port
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides the config file)")

	participantsCmd := &cobra.Command{
		Use:   "participants",
		Short: "List the configured participants",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			engine, store, err := newEngine(cfg)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer store.Close()
			listParticipants(engine.Participants())
		},
	}

	rootCmd.AddCommand(runCmd, serveCmd, participantsCmd)
}

func loadConfig(cmd *cobra.Command) *config.Config {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving config flag: %v", err)
		os.Exit(1)
	}
	cfg, err := config.Load(config.ExpandPath(path))
	if err != nil {
		log.GetLogger().Errorf("Failed to load config from %s: %v", path, err)
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.General.LogLevel != "" {
		log.SetLevel(cfg.General.LogLevel)
	}
	log.GetLogger().Debugf("Loaded config from %s (storage: %s)", path, cfg.Storage.Driver)
	return cfg
}

// newEngine opens the configured store, seeds it with the roster and builds
// the engine on top of it. The caller owns the returned store.
func newEngine(cfg *config.Config) (*service.Engine, storage.Store, error) {
	store, err := internal_storage.OpenStore(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	m, err := newMailer(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	engine := service.NewEngine(store, m, log.GetLogger(),
		service.WithPacing(cfg.EnginePacing()),
		service.WithStepTimeout(cfg.StepTimeout()),
	)
	if err := engine.Participants().Seed(cfg.Roster()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to seed participants: %w", err)
	}
	return engine, store, nil
}

func newMailer(cfg *config.Config) (service.Mailer, error) {
	if !cfg.SMTP.Enabled {
		return mailer.NewSimulated(log.GetLogger()), nil
	}
	m, err := mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, log.GetLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to configure SMTP mailer: %w", err)
	}
	return m, nil
}

// forwardToSlack starts the Slack forwarder when a webhook is configured. The
// returned func stops the subscription and waits for pending posts.
func forwardToSlack(ctx context.Context, cfg *config.Config, engine *service.Engine) func() {
	if cfg.Slack.WebhookURL == "" {
		return func() {}
	}
	events, unsubscribe := engine.SubscribeLossless()
	forwarder := notify.NewSlackForwarder(cfg.Slack.WebhookURL, log.GetLogger())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		forwarder.Forward(ctx, events)
		// Forward stops early on cancellation; drain so the stream can close.
		for range events {
		}
	}()
	return func() {
		unsubscribe()
		wg.Wait()
	}
}

// runOnce executes a single run and prints every log line and toast to w.
func runOnce(ctx context.Context, cfg *config.Config, w io.Writer) error {
	engine, store, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	events, unsubscribe := engine.SubscribeLossless()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printEvents(w, events)
	}()
	stopSlack := forwardToSlack(ctx, cfg, engine)

	startedAt := time.Now()
	summary, runErr := engine.Run(ctx)
	unsubscribe()
	wg.Wait()
	stopSlack()

	fmt.Fprintf(w, "\nRun %s %s: %d processed, %d messages sent (started %s, took %s)\n",
		summary.RunID, summary.Status, summary.Processed, summary.MessagesSent,
		humanize.Time(startedAt), summary.Duration.Round(time.Millisecond))
	return runErr
}

// printEvents writes log lines and toasts as they arrive until events is closed.
func printEvents(w io.Writer, events <-chan models.Event) {
	for ev := range events {
		switch ev.Type {
		case models.LogResetEvent:
			for _, line := range ev.Lines {
				fmt.Fprintln(w, line)
			}
		case models.LogAppendedEvent:
			fmt.Fprintln(w, ev.Line)
		case models.NotificationEvent:
			fmt.Fprintf(w, "   [%s] %s\n", ev.Notification.Level, ev.Notification.Message)
		}
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	engine, store, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	stopSlack := forwardToSlack(ctx, cfg, engine)
	defer stopSlack()

	err = internal_http.StartServer(ctx, cfg.Addr(), engine)
	// Let an active run observe the cancellation and record its final status
	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if waitErr := engine.Wait(waitCtx); waitErr != nil {
		log.GetLogger().Errorf("Run still active at shutdown: %v", waitErr)
	}
	return err
}

func listParticipants(svc *service.ParticipantService) {
	participants, err := svc.List()
	if err != nil {
		log.GetLogger().Errorf("Failed to list participants: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list participants: %v\n", err)
		os.Exit(1)
	}
	if len(participants) == 0 {
		fmt.Fprintf(os.Stdout, "No participants configured.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Participants:\n")
	for _, p := range participants {
		fmt.Fprintf(os.Stdout, "- %d. %s <%s>, scheduled %s (request: %s, confirmation: %s)\n",
			p.Position, p.Name, p.Email, p.ScheduledAt, p.RequestStatus, p.ConfirmationStatus)
	}
}
