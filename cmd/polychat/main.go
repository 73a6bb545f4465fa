package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"polychat/internal/chats"
	polychatcli "polychat/internal/cli"
	"polychat/internal/config"
	"polychat/internal/logging"
	"polychat/internal/orchestrator"
	"polychat/internal/prefs"
	"polychat/internal/providers"
	"polychat/internal/registry"
	"polychat/internal/state"
	"polychat/internal/tui"
)

type runtimeDeps struct {
	cfg     *config.Config
	prefs   *prefs.Preferences
	store   *chats.Store
	reg     *registry.Manager
	orc     *orchestrator.Orchestrator
	db      *state.DB
	watcher *prefs.Watcher
}

func (r *runtimeDeps) Close() {
	if r == nil {
		return
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
}

func bootstrapRuntime() (*runtimeDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetupFile(cfg.Paths.DataDir, cfg.Log.Level)

	rt := &runtimeDeps{cfg: cfg}
	rt.prefs = prefs.Load(cfg.Paths.DataDir)

	rt.store, err = chats.Open(cfg.ChatsDir())
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	rt.db, err = state.Open(cfg.Paths.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: input history disabled: %v\n", err)
		rt.db = nil
	}

	timeout := time.Duration(cfg.HTTP.RequestTimeoutSecs) * time.Second
	rt.reg = registry.NewManager()
	rt.orc = orchestrator.New(rt.reg, rt.prefs, timeout, providers.ResolveKey)

	rt.watcher, err = prefs.Watch(rt.prefs.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: preferences watching disabled: %v\n", err)
		rt.watcher = nil
	}

	return rt, nil
}

func restoreTerminalState() {
	fmt.Fprint(os.Stderr, "\x1b[?25h\x1b[0m")
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "polychat",
		Short: "A multi-provider AI chat client for the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrapRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			app := tui.NewAppModel(rt.cfg, rt.prefs, rt.store, rt.reg, rt.orc, rt.db, rt.watcher)
			p := tea.NewProgram(app, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	rootCmd.AddCommand(
		polychatcli.NewProvidersCmd(),
		polychatcli.NewModelsCmd(),
		polychatcli.NewChatsCmd(),
		polychatcli.NewMCPCmd(),
		polychatcli.NewServerCmd(),
		polychatcli.NewConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		restoreTerminalState()
		os.Exit(1)
	}
	restoreTerminalState()
}
