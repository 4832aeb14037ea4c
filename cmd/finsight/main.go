// Package main provides the finsight CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"finsight/internal/assistant"
	"finsight/internal/config"
	"finsight/internal/dataset"
	"finsight/internal/executor"
	"finsight/internal/intent"
	"finsight/internal/logging"
	"finsight/internal/policy"
	"finsight/internal/session"
	"finsight/internal/store"
	"finsight/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string
	userID     string

	// Logger for non-interactive commands
	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "finsight - financial operations assistant",
	Long: `finsight is a demo financial operations assistant.

It turns natural-language requests into deterministic actions over an
in-memory invoice dataset: filtering, failure explanations, support
tickets, and compliance reports. Permissions are derived from a Datalog
rule table, so what each role may do is declared, not coded.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The chat UI owns the terminal; skip zap there.
		if cmd.Name() == "finsight" {
			return nil
		}
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// app bundles everything a command needs after boot.
type app struct {
	cfg       *config.Config
	data      *dataset.Store
	store     *store.LocalStore
	assistant *assistant.Assistant
	watcher   *dataset.Watcher
}

// boot loads config and wires the pipeline.
func boot() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}

	if err := logging.Initialize("."); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging unavailable: %v\n", err)
	}
	logging.Configure(cfg.Logging.Level, cfg.Logging.Format)
	logging.Boot("finsight starting (data=%s)", cfg.Data.Dir)

	data, err := dataset.Load(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	local, err := store.NewLocalStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	// Tickets created in earlier runs live in the store, not in the sample
	// files; merge them back so the dataset reflects all durable state.
	persisted, perr := local.Tickets("")
	if perr != nil {
		logging.Get(logging.CategoryStore).Warn("Could not read persisted tickets: %v", perr)
	} else if n := data.HydrateTickets(persisted); n > 0 {
		logging.Boot("Restored %d tickets from %s", n, cfg.Storage.DatabasePath)
	}

	gate, err := policy.NewGateWithRulesFile(cfg.Policy.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build permission gate: %w", err)
	}

	resolver := intent.NewResolver(intent.Anchor(cfg.Dates.Anchor), nil)
	exec := executor.New(data, local, nil)
	sessions := session.NewManager(local)

	a := &app{
		cfg:       cfg,
		data:      data,
		store:     local,
		assistant: assistant.New(data, resolver, gate, exec, sessions),
	}

	if cfg.Data.WatchFiles {
		watcher, werr := dataset.NewWatcher(data)
		if werr != nil {
			logging.Get(logging.CategoryDataset).Warn("Dataset watcher unavailable: %v", werr)
		} else if serr := watcher.Start(context.Background()); serr != nil {
			logging.Get(logging.CategoryDataset).Warn("Dataset watcher failed to start: %v", serr)
		} else {
			a.watcher = watcher
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	logging.CloseAll()
}

// currentUser resolves the acting user from --user, defaulting to the first
// demo user.
func (a *app) currentUser() (types.User, error) {
	if userID != "" {
		user, ok := a.data.UserByID(userID)
		if !ok {
			return types.User{}, fmt.Errorf("unknown user %q", userID)
		}
		return user, nil
	}
	users := a.data.Users()
	if len(users) == 0 {
		return types.User{}, fmt.Errorf("no users in dataset")
	}
	return users[0], nil
}

// askCmd runs a single utterance through the pipeline and prints the response.
var askCmd = &cobra.Command{
	Use:   "ask [utterance]",
	Short: "Process one request and print the response",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot()
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.currentUser()
		if err != nil {
			return err
		}

		utterance := strings.Join(args, " ")
		logger.Info("processing utterance",
			zap.String("user", user.ID),
			zap.String("utterance", utterance))

		result := a.assistant.ProcessTurn(user, utterance)
		fmt.Println(result.Response)
		if result.Kind == types.ResultDenied || result.Kind == types.ResultInvalid {
			os.Exit(1)
		}
		return nil
	},
}

// ticketsCmd lists support tickets.
var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "List support tickets in the acting user's workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot()
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.currentUser()
		if err != nil {
			return err
		}

		tickets := a.data.Tickets(user.WorkspaceID, "")
		if len(tickets) == 0 {
			fmt.Println("No tickets.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tTITLE")
		for _, t := range tickets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Title)
		}
		return w.Flush()
	},
}

// reportCmd generates a compliance report from the command line.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate and print the compliance report",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot()
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.currentUser()
		if err != nil {
			return err
		}

		result := a.assistant.ProcessTurn(user, "download the compliance report")
		fmt.Println(result.Response)
		if result.Report != nil {
			s := result.Report.Summary
			fmt.Printf("\n  total invoices:     %d\n", s.TotalInvoices)
			fmt.Printf("  processed:          %d\n", s.ProcessedInvoices)
			fmt.Printf("  failed:             %d\n", s.FailedInvoices)
			fmt.Printf("  compliance rate:    %.1f%%\n", s.ComplianceRate)
		}
		if result.Kind == types.ResultDenied {
			os.Exit(1)
		}
		return nil
	},
}

// statusCmd prints dataset and store health.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset, store, and watcher status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot()
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Printf("data dir:   %s\n", a.cfg.Data.Dir)
		fmt.Printf("invoices:   %d\n", len(a.data.Invoices()))
		fmt.Printf("users:      %d\n", len(a.data.Users()))
		fmt.Printf("tickets:    %d\n", len(a.data.Tickets("", "")))

		n, err := a.store.TicketCount()
		if err == nil {
			fmt.Printf("persisted:  %d tickets in %s\n", n, a.cfg.Storage.DatabasePath)
		}
		if a.watcher != nil {
			st := a.watcher.Stats()
			fmt.Printf("watcher:    running (%d reloads, %d errors)\n", st.Reloads, st.Errors)
		} else {
			fmt.Println("watcher:    off")
		}
		return nil
	},
}

// historyCmd prints the acting user's most recent conversation from the store.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the acting user's most recent conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot()
		if err != nil {
			return err
		}
		defer a.close()

		user, err := a.currentUser()
		if err != nil {
			return err
		}

		sessionID, err := a.store.LatestSessionID(user.ID)
		if err != nil {
			return err
		}
		if sessionID == "" {
			fmt.Println("No conversation history.")
			return nil
		}

		turns, err := a.store.SessionTurns(sessionID, 50)
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			fmt.Println("No conversation history.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tRESULT\tUTTERANCE")
		for _, t := range turns {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Timestamp.Format("2006-01-02 15:04"), t.Result, t.Utterance)
		}
		return w.Flush()
	},
}

// usersCmd lists the demo users and their roles.
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List demo users and their roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := boot()
		if err != nil {
			return err
		}
		defer a.close()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tROLE\tWORKSPACE")
		for _, u := range a.data.Users() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Role, u.WorkspaceID)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".finsight/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "override data directory")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "act as this user id")

	rootCmd.AddCommand(askCmd, ticketsCmd, reportCmd, statusCmd, historyCmd, usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
