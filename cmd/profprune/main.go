// Package main is the CLI entry point for profprune.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/profprune/internal/config"
	"github.com/eliteGoblin/profprune/internal/domain"
	"github.com/eliteGoblin/profprune/internal/infra"
	"github.com/eliteGoblin/profprune/internal/policy"
	"github.com/eliteGoblin/profprune/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "profprune",
	Short: "Remove stale local user profiles from Windows hosts",
	Long: `profprune enumerates the local user profiles on a target host, keeps the
ones you name, the built-in service accounts and anything currently loaded,
and removes the rest after confirmation.

Every run writes an audit log and is recorded in an encrypted history.`,
	Version:      Version,
	SilenceUsage: true,
}

var removeCmd = &cobra.Command{
	Use:   "remove [host]",
	Short: "Remove every profile not on the keep list",
	Long: `Lists the profiles on host, classifies them against the keep list and
removes the eligible ones. Profiles of SYSTEM, LOCAL SERVICE, NETWORK SERVICE
and currently loaded profiles are never removed.

The host is prompted for when omitted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemove,
}

var listCmd = &cobra.Command{
	Use:   "list [host]",
	Short: "List the profiles on a host",
	Long:  `Shows every profile on host. Use --export to save the inventory as a snapshot file.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runList,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past runs",
	Long:  `Shows the most recent runs from the encrypted history, or the full results of one run with --run.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions <host>",
	Short: "List terminal sessions on a host",
	Long: `Lists Remote Desktop / console sessions on host. With --logoff, logs off
every session of that user so their profile can be removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessions,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	RunE:  runVersion,
}

var (
	configPath string
	logDirFlag string
	dataDir    string
	verbose    bool

	keepNames    []string
	keepFile     string
	assumeYes    bool
	dryRun       bool
	sourceFlag   string
	snapshotFlag string

	exportPath   string
	historyLimit int
	historyRunID string
	logoffUser   string
	jsonOutput   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <data-dir>/profprune.yaml)")
	rootCmd.PersistentFlags().StringVar(&logDirFlag, "log-dir", "", "Directory for per-run audit logs")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for history database and key")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose diagnostic logging on stderr")

	for _, cmd := range []*cobra.Command{removeCmd, listCmd} {
		cmd.Flags().StringVar(&sourceFlag, "source", "", "Inventory source: wmi or snapshot")
		cmd.Flags().StringVar(&snapshotFlag, "snapshot", "", "Snapshot file or directory of <host>.yaml files")
	}

	removeCmd.Flags().StringArrayVarP(&keepNames, "keep", "k", nil, "Profile name to keep (repeatable)")
	removeCmd.Flags().StringVar(&keepFile, "keep-file", "", "File with one profile name per line")
	removeCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	removeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without removing anything")

	listCmd.Flags().StringVar(&exportPath, "export", "", "Write the inventory to this snapshot file")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Number of runs to show (default from config)")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "Show the results of one run")

	sessionsCmd.Flags().StringVar(&logoffUser, "logoff", "", "Log off every session of this user")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(verbose)
	defer func() { _ = logger.Sync() }()

	prompter := infra.NewConsolePrompter(os.Stdin, os.Stdout)
	reporter := infra.NewConsoleReporter(os.Stdout)

	host, err := resolveHost(args, prompter)
	if err != nil {
		return err
	}

	keep, err := collectKeepNames(cfg)
	if err != nil {
		return err
	}

	inventory, err := newInventory(cfg, logger)
	if err != nil {
		return err
	}

	execMode := infra.DetectExecMode()
	if !dryRun && cfg.Source == config.SourceWMI && !execMode.Elevated {
		reporter.Warn("not running elevated; profile deletion will likely fail with access denied")
	}

	startedAt := time.Now()
	sink, err := infra.NewFileLogSink(cfg.LogDir, host, startedAt)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("failed to close session log", zap.Error(err))
		}
	}()

	var store domain.RunStore
	runStore, created, err := infra.OpenRunStore(cfg.DataDir)
	if err != nil {
		reporter.Warn(fmt.Sprintf("run history unavailable: %v", err))
	} else {
		if created {
			logger.Info("created history key", zap.String("data_dir", cfg.DataDir))
		}
		store = runStore
		defer runStore.Close()
	}

	ws := infra.DetectWorkstation()
	pruner := usecase.NewPruner(inventory, sink, prompter, reporter, store, logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	report, err := pruner.Run(ctx, usecase.RunRequest{
		Host:        host,
		KeepNames:   keep,
		DryRun:      dryRun,
		AssumeYes:   assumeYes,
		Workstation: ws.Hostname,
		Operator:    ws.Operator,
	})
	if errors.Is(err, domain.ErrCancelled) {
		fmt.Println("cancelled, nothing removed")
		return nil
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range report.Skipped {
		if r.Reason.Kind == domain.ReasonRemovalFailed {
			failed++
		}
	}

	fmt.Println()
	if report.DryRun {
		fmt.Printf("Dry run: %d profile(s) would be removed from %s\n", len(report.Plan.ToRemove), host)
	} else {
		fmt.Printf("Removed %d profile(s) from %s, skipped %d (%d failed)\n",
			len(report.Removed), host, len(report.Skipped), failed)
	}
	fmt.Printf("Audit log: %s\n", sink.Path())
	fmt.Printf("Run ID: %s\n", report.RunID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(verbose)
	defer func() { _ = logger.Sync() }()

	host, err := resolveHost(args, infra.NewConsolePrompter(os.Stdin, os.Stdout))
	if err != nil {
		return err
	}

	inventory, err := newInventory(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	profiles, err := inventory.ListProfiles(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInventoryUnavailable, host, err)
	}

	infra.NewConsoleReporter(os.Stdout).Profiles("Profiles on "+host, profiles)

	if exportPath != "" {
		if err := infra.WriteSnapshot(exportPath, infra.SnapshotFromProfiles(host, profiles)); err != nil {
			return fmt.Errorf("failed to export snapshot: %w", err)
		}
		fmt.Printf("\nSnapshot written to %s\n", exportPath)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, _, err := infra.OpenRunStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer store.Close()

	if historyRunID != "" {
		return showRun(store, historyRunID)
	}

	limit := historyLimit
	if limit <= 0 {
		limit = cfg.HistoryLimit
	}
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tHOST\tOPERATOR\tREMOVED\tSKIPPED\tFAILED\tMODE")
	for _, r := range runs {
		mode := "remove"
		if r.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Host, r.Operator,
			r.RemovedCount, r.SkippedCount, r.FailedCount, mode)
	}
	return w.Flush()
}

func showRun(store domain.RunStore, id string) error {
	run, err := store.GetRun(id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s against %s\n", run.ID, run.Host)
	fmt.Printf("  Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Printf("  Finished: %s\n", run.FinishedAt.Local().Format(time.DateTime))
	fmt.Printf("  From:     %s (%s)\n", run.Workstation, run.Operator)
	fmt.Printf("  Dry run:  %t\n", run.DryRun)
	fmt.Printf("  Profiles: %d before, %d after\n", run.BeforeCount, run.AfterCount)

	results, err := usecase.DecodeRunResults(*run)
	if err != nil {
		return err
	}
	reporter := infra.NewConsoleReporter(os.Stdout)
	if run.DryRun {
		reporter.Profiles("Would remove", results.WouldRemove)
	}
	reporter.Results("Removed", results.Removed)
	reporter.Results("Skipped", results.Skipped)
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	logger := createLogger(verbose)
	defer func() { _ = logger.Sync() }()

	host := strings.TrimSpace(args[0])
	if host == "" {
		return domain.ErrEmptyHost
	}
	manager := infra.NewSessionManager(logger)

	if logoffUser != "" {
		ids, err := manager.LogoffUser(host, logoffUser)
		for _, id := range ids {
			fmt.Printf("Logged off session %d (%s)\n", id, logoffUser)
		}
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Printf("No sessions of %s on %s\n", logoffUser, host)
		}
		return nil
	}

	sessions, err := manager.ListSessions(host)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tSTATION\tSTATE")
	for _, s := range sessions {
		user := s.UserName
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, user, s.Station, s.State)
	}
	return w.Flush()
}

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func versionInfo() buildInfo {
	return buildInfo{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		data, err := json.Marshal(versionInfo())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintf(out, "profprune %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
	return nil
}

// loadConfig layers config file, .env, environment and flags over mode defaults.
func loadConfig() (*config.Config, error) {
	execMode := infra.DetectExecMode()
	defaults := config.Defaults(execMode.DataDir, execMode.LogDir)
	if dataDir != "" {
		defaults.DataDir = dataDir
		defaults.LogDir = filepath.Join(dataDir, "logs")
	}

	loader := config.Loader{
		Path:     configPath,
		EnvFiles: []string{".env", filepath.Join(defaults.DataDir, ".env")},
	}
	cfg, err := loader.Load(defaults)
	if err != nil {
		return nil, err
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logDirFlag != "" {
		cfg.LogDir = logDirFlag
	}
	if sourceFlag != "" {
		cfg.Source = sourceFlag
	}
	if snapshotFlag != "" {
		cfg.SnapshotPath = snapshotFlag
		if sourceFlag == "" {
			cfg.Source = config.SourceSnapshot
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newInventory(cfg *config.Config, logger *zap.Logger) (domain.InventorySource, error) {
	switch cfg.Source {
	case config.SourceSnapshot:
		if cfg.SnapshotPath == "" {
			return nil, errors.New("snapshot source needs --snapshot or snapshot_path")
		}
		return infra.NewSnapshotInventory(cfg.SnapshotPath, infra.NewProcessSessionProbe(), logger), nil
	default:
		return infra.NewWMIInventory(cfg.WMINamespace, logger), nil
	}
}

func collectKeepNames(cfg *config.Config) ([]string, error) {
	lists := [][]string{cfg.DefaultKeep, keepNames}
	if keepFile != "" {
		f, err := os.Open(keepFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open keep file: %w", err)
		}
		defer f.Close()
		fromFile, err := policy.ParseKeepList(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read keep file %s: %w", keepFile, err)
		}
		lists = append(lists, fromFile)
	}
	return policy.MergeKeepNames(lists...), nil
}

func resolveHost(args []string, input domain.InputProvider) (string, error) {
	var host string
	if len(args) > 0 {
		host = args[0]
	} else {
		answer, err := input.Prompt("Target host")
		if err != nil {
			return "", fmt.Errorf("failed to read host: %w", err)
		}
		host = answer
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", domain.ErrEmptyHost
	}
	return host, nil
}

// signalContext cancels on Ctrl-C so pending deletions are not started.
func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Warn("received interrupt, stopping after current profile")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func createLogger(verbose bool) *zap.Logger {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zapCfg.Encoding = "console"
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.EncoderConfig.TimeKey = "time"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
