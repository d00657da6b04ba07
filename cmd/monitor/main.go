package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal images

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"

	"github.com/mahesa005/dinacom-steikon-sub000/internal/app"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/domain/schedule"
	domainTelegram "github.com/mahesa005/dinacom-steikon-sub000/internal/domain/telegram"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/infra/config"
	idb "github.com/mahesa005/dinacom-steikon-sub000/internal/infra/database"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/infra/httpapi"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/infra/logger"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/infra/scheduler"
	"github.com/mahesa005/dinacom-steikon-sub000/internal/infra/telegram"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
	commandTimeout  = 5 * time.Minute
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "monitor",
		Short:        "Stunting follow-up examination scheduler",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(remindCmd())
	rootCmd.AddCommand(generateCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// application is the wired object graph shared by every command.
type application struct {
	cfg       *config.AppConfig
	db        *sql.DB
	bot       *telebot.Bot // nil without TELEGRAM_TOKEN
	schedules *app.ScheduleService
	subjects  *app.SubjectService
}

func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	db, err := idb.NewPostgresConnection(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	mainLogger.Info("Database connection established")

	subjectRepo := idb.NewPostgresSubjectRepository(db, cfg.Location)
	scheduleRepo := idb.NewPostgresScheduleRepository(db, cfg.Location)
	txManager := idb.NewTxManager(db)

	a := &application{cfg: cfg, db: db}

	var messenger domainTelegram.Client
	if cfg.RemindersEnabled() {
		a.bot, err = newBot(cfg)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("could not create Telegram bot: %w", err)
		}
		messenger = telegram.NewTelebotAdapter(a.bot)
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN is not set, bot and reminders are disabled")
	}

	a.schedules = app.NewScheduleService(subjectRepo, scheduleRepo, txManager, messenger, logger.Component("schedule"), cfg.Location)
	a.subjects = app.NewSubjectService(subjectRepo, a.schedules, logger.Component("subject"))
	return a, nil
}

func newBot(cfg *config.AppConfig) (*telebot.Bot, error) {
	botLogger := logger.Component("telebot")
	return telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "text": c.Text()})
			}
			entry.Error("Telegram handler error")
		},
	})
}

func (a *application) close() {
	if err := a.db.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close database")
	}
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, the Telegram bot and the maintenance jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the embedded schema before starting")
	return cmd
}

func runServer(ctx context.Context, migrate bool) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	mainLogger := logger.Component("main")

	if migrate {
		if err := idb.Migrate(ctx, a.db); err != nil {
			return err
		}
		mainLogger.Info("Schema applied")
	}

	reminderSpec := ""
	if a.cfg.RemindersEnabled() {
		reminderSpec = a.cfg.CronSpecReminders
	}
	jobs := scheduler.NewMaintenanceScheduler(a.schedules, logger.Component("scheduler"), a.cfg.Location, a.cfg.CronSpecSweep, reminderSpec)
	if err := jobs.Start(); err != nil {
		return fmt.Errorf("could not start maintenance scheduler: %w", err)
	}

	botCtx, stopBot := context.WithCancel(context.Background())
	defer stopBot()
	if a.bot != nil {
		telegram.NewHandlers(botCtx, a.schedules, a.cfg.AdminTelegramID, logger.Component("bot")).Register(a.bot)
		go a.bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	e := httpapi.NewServer(httpapi.NewHandler(a.schedules, a.subjects), logger.Component("http"))
	go func() {
		mainLogger.WithField("addr", a.cfg.HTTPAddr).Info("Starting HTTP server")
		if err := e.Start(a.cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			mainLogger.WithError(err).Fatal("HTTP server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Error("HTTP server shutdown failed")
	}
	if a.bot != nil {
		a.bot.Stop()
	}
	jobs.Stop()
	mainLogger.Info("Application shut down gracefully")
	return nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			if err := idb.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			logger.Component("main").Info("Schema applied")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark SCHEDULED entries whose window has closed as MISSED",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			n, err := a.schedules.SweepMissed(ctx, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "missed: %d\n", n)
			return nil
		},
	}
}

func remindCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send guardian reminders for windows open on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			day := a.schedules.Today()
			if date != "" {
				if day, err = schedule.ParseDate(date, a.cfg.Location); err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			summary, err := a.schedules.DispatchReminders(ctx, day)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "due: %d sent: %d skipped: %d failed: %d\n",
				summary.Due, summary.Sent, summary.Skipped, summary.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to remind for (YYYY-MM-DD, default today)")
	return cmd
}

func generateCmd() *cobra.Command {
	var tierFlag, startFlag string
	cmd := &cobra.Command{
		Use:   "generate <subject-id>",
		Short: "Regenerate the pending schedule of one subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subjectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid subject id: %w", err)
			}
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			subj, err := a.subjects.GetSubject(ctx, subjectID)
			if err != nil {
				return err
			}
			tier := subj.RiskTier
			if tierFlag != "" {
				if tier, err = schedule.ParseRiskTier(tierFlag); err != nil {
					return err
				}
			}
			var start time.Time
			if startFlag != "" {
				if start, err = schedule.ParseDate(startFlag, a.cfg.Location); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
			}

			result, err := a.schedules.GenerateSchedule(ctx, subj.ID, subj.BirthDate, tier, start)
			if err != nil {
				return err
			}
			if !result.Generated {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inserted: %d deleted: %d interval: %d days from %s\n",
				result.Inserted, result.Deleted, result.IntervalDays, result.StartDate)
			return nil
		},
	}
	cmd.Flags().StringVar(&tierFlag, "tier", "", "Risk tier (HIGH, MEDIUM or LOW; default the stored tier)")
	cmd.Flags().StringVar(&startFlag, "start", "", "Start date (YYYY-MM-DD, default today)")
	return cmd
}
