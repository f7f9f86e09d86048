package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/config"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/event"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/lms"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/logger"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/metrics"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/scorm"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/server"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/session"
	"github.com/life-stream-dev/life-stream-go-scorm-session/internal/utils"
)

var (
	configPath  string
	learnerID   string
	courseID    string
	resetStored bool
)

var rootCmd = &cobra.Command{
	Use:           "scorm-session",
	Short:         "Host a SCORM learning session against an embedded LMS",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect the session and serve it over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the stored attempt of a learner as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		return inspect(cmd, cfg)
	},
}

func readConfig() (config.Config, error) {
	cfg, err := config.ReadConfig(configPath)
	if errors.Is(err, config.ErrConfigCreated) {
		return cfg, fmt.Errorf("%w: %s", err, configPath)
	}
	if err != nil {
		return cfg, fmt.Errorf("error occured while reading config: %w", err)
	}
	return cfg, nil
}

func exposedVersions(cfg config.SessionConfig) ([]scorm.Version, error) {
	versions := make([]scorm.Version, 0, len(cfg.ExposedVersions))
	for _, name := range cfg.ExposedVersions {
		v, err := scorm.ParseVersion(name)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}

func newHost(cfg config.Config, store lms.Store) (*lms.Host, error) {
	versions, err := exposedVersions(cfg.Session)
	if err != nil {
		return nil, err
	}
	learner := lms.Learner{ID: cfg.Session.LearnerID, Name: cfg.Session.LearnerName}
	timeout := utils.ParseDurationOr(cfg.Store.OperationTimeout, 0)
	return lms.NewHost(store, learner, cfg.Session.CourseID, versions, timeout), nil
}

func serve(ctx context.Context, cfg config.Config) error {
	loggerCallback := logger.Init(cfg)
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)

	store, err := lms.OpenStore(ctx, cfg.Store)
	if err != nil {
		logger.ErrorF("Error occured while initializing attempt store, details: %v", err)
		cleaner.Shutdown(1)
		return err
	}
	cleaner.Add(lms.NewStoreCloseCallback(store))

	host, err := newHost(cfg, store)
	if err != nil {
		cleaner.Shutdown(1)
		return err
	}

	collector := metrics.NewCollector(metrics.DefaultNamespace)
	sess := session.New(scorm.NewWrapper(host, scorm.WithMetrics(collector)), session.WithMetrics(collector))

	opts := []session.ConnectOption{session.WithDebug(cfg.DebugMode)}
	if cfg.Session.Version != "" {
		opts = append(opts, session.WithVersion(scorm.Version(cfg.Session.Version)))
	}
	if r := sess.Connect(opts...); r.Applied() {
		snapshot := sess.Snapshot()
		logger.InfoF("Session connected, version=%s learner=%q status=%s", snapshot.ScormVersion, snapshot.LearnerName, snapshot.CompletionStatus)
	} else {
		logger.WarnF("Session not connected at startup (%s), content runs without an LMS", r)
	}
	cleaner.Add(session.NewShutdownCallback(sess))

	srv := server.NewServer(cfg.HTTP, sess, collector)
	cleaner.Add(server.NewShutdownCallback(srv))

	if err := srv.ListenAndServe(); err != nil {
		logger.ErrorF("HTTP server error: %v", err)
		cleaner.Shutdown(1)
		return err
	}
	// the cleaner exits the process once shutdown completes
	select {}
}

func inspect(cmd *cobra.Command, cfg config.Config) error {
	if learnerID != "" {
		cfg.Session.LearnerID = learnerID
	}
	if courseID != "" {
		cfg.Session.CourseID = courseID
	}

	ctx := cmd.Context()
	store, err := lms.OpenStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	host, err := newHost(cfg, store)
	if err != nil {
		return err
	}
	if resetStored {
		if err := host.ResetAttempt(ctx); err != nil {
			return fmt.Errorf("reset attempt: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "attempt of %s in %s removed\n", cfg.Session.LearnerID, cfg.Session.CourseID)
		return nil
	}

	attempt, err := host.LoadAttempt(ctx)
	if err != nil {
		return fmt.Errorf("load attempt of %s in %s: %w", cfg.Session.LearnerID, cfg.Session.CourseID, err)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(attempt)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "configuration file (.json, .yaml or .yml)")
	inspectCmd.Flags().StringVar(&learnerID, "learner", "", "learner id (defaults to session.learner_id)")
	inspectCmd.Flags().StringVar(&courseID, "course", "", "course id (defaults to session.course_id)")
	inspectCmd.Flags().BoolVar(&resetStored, "reset", false, "delete the stored attempt instead of printing it")
	rootCmd.AddCommand(serveCmd, inspectCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
