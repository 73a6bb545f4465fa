// Package cli holds the headless subcommands: provider and credential
// management, model refresh, chat inspection and MCP registry upkeep.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"polychat/internal/chats"
	"polychat/internal/config"
	"polychat/internal/mcp"
	"polychat/internal/orchestrator"
	"polychat/internal/prefs"
	"polychat/internal/providers"
	"polychat/internal/registry"
)

func loadPrefs() (*config.Config, *prefs.Preferences, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, prefs.Load(cfg.Paths.DataDir), nil
}

// resolveProviderArg matches a provider argument against the configured
// providers by id first, then by display name.
func resolveProviderArg(p *prefs.Preferences, input string) (*prefs.ProviderPrefs, error) {
	name := strings.ToLower(strings.TrimSpace(input))
	if name == "" {
		return nil, errors.New("provider is required")
	}
	for i := range p.Providers {
		if strings.ToLower(p.Providers[i].ID) == name {
			return &p.Providers[i], nil
		}
	}
	for i := range p.Providers {
		if strings.ToLower(p.Providers[i].Name) == name {
			return &p.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("unknown provider %q", input)
}

func keyStatus(pp prefs.ProviderPrefs) string {
	if providers.HasKey(pp) {
		return "configured"
	}
	return "missing"
}

func NewProvidersCmd() *cobra.Command {
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage model providers and their credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvidersList()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List configured providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvidersList()
		},
	}

	var setKeyValue string
	setKeyCmd := &cobra.Command{
		Use:   "set-key <provider>",
		Short: "Store an API key for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadPrefs()
			if err != nil {
				return err
			}
			pp, err := resolveProviderArg(p, args[0])
			if err != nil {
				return err
			}

			key := strings.TrimSpace(setKeyValue)
			if key == "" {
				fmt.Printf("Enter API key for %s: ", pp.Name)
				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read api key: %w", err)
				}
				key = strings.TrimSpace(line)
			}

			if err := providers.StoreCredential(pp.ID, key); err != nil {
				return fmt.Errorf("store key for %s: %w", pp.Name, err)
			}
			fmt.Printf("Stored API key for %s\n", pp.Name)
			return nil
		},
	}
	setKeyCmd.Flags().StringVar(&setKeyValue, "key", "", "API key value (prompted when omitted)")

	removeKeyCmd := &cobra.Command{
		Use:     "remove-key <provider>",
		Aliases: []string{"rm-key"},
		Short:   "Remove a provider's stored API key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadPrefs()
			if err != nil {
				return err
			}
			pp, err := resolveProviderArg(p, args[0])
			if err != nil {
				return err
			}
			if err := providers.DeleteCredential(pp.ID); err != nil {
				return err
			}
			fmt.Printf("Removed API key for %s\n", pp.Name)
			return nil
		},
	}

	var testTimeout time.Duration
	testCmd := &cobra.Command{
		Use:   "test <provider>",
		Short: "Probe a provider's endpoint and report connectivity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadPrefs()
			if err != nil {
				return err
			}
			pp, err := resolveProviderArg(p, args[0])
			if err != nil {
				return err
			}

			client := providers.NewClient(pp.ID, pp.URL, providers.ResolveKey(*pp), testTimeout)
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()

			res := client.TestConnection(ctx)
			if res.Connected {
				fmt.Printf("%s: connected via %s (%d models)\n", pp.Name, res.Endpoint, res.ModelCount)
				return nil
			}
			fmt.Printf("%s: not connected: %s\n", pp.Name, res.Detail)
			return nil
		},
	}
	testCmd.Flags().DurationVar(&testTimeout, "timeout", 10*time.Second, "Connection test timeout")

	enableCmd := &cobra.Command{
		Use:   "enable <provider>",
		Short: "Enable a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setProviderEnabled(args[0], true)
		},
	}
	disableCmd := &cobra.Command{
		Use:   "disable <provider>",
		Short: "Disable a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setProviderEnabled(args[0], false)
		},
	}

	var addName string
	var addURL string
	addCmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a custom OpenAI-compatible provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadPrefs()
			if err != nil {
				return err
			}

			id := strings.TrimSpace(args[0])
			u, err := url.Parse(strings.TrimSpace(addURL))
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("invalid provider url %q", addURL)
			}
			name := strings.TrimSpace(addName)
			if name == "" {
				name = id
			}

			if err := p.AddCustomProvider(id, name, u.String()); err != nil {
				return err
			}
			fmt.Printf("Added provider %s (%s)\n", name, u.String())
			return nil
		},
	}
	addCmd.Flags().StringVar(&addName, "name", "", "Display name (defaults to the id)")
	addCmd.Flags().StringVar(&addURL, "url", "", "Base URL of the OpenAI-compatible API")
	_ = addCmd.MarkFlagRequired("url")

	removeCmd := &cobra.Command{
		Use:     "remove <provider>",
		Aliases: []string{"rm"},
		Short:   "Remove a custom provider",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadPrefs()
			if err != nil {
				return err
			}
			pp, err := resolveProviderArg(p, args[0])
			if err != nil {
				return err
			}
			id, name := pp.ID, pp.Name
			if err := p.RemoveProvider(id); err != nil {
				return err
			}
			fmt.Printf("Removed provider %s\n", name)
			return nil
		},
	}

	providersCmd.AddCommand(listCmd, setKeyCmd, removeKeyCmd, testCmd, enableCmd, disableCmd, addCmd, removeCmd)
	return providersCmd
}

func runProvidersList() error {
	_, p, err := loadPrefs()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tURL\tENABLED\tKEY")
	for _, pp := range p.Providers {
		enabled := "no"
		if pp.Enabled {
			enabled = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", pp.ID, pp.Name, pp.URL, enabled, keyStatus(pp))
	}
	return w.Flush()
}

func setProviderEnabled(arg string, enabled bool) error {
	_, p, err := loadPrefs()
	if err != nil {
		return err
	}
	pp, err := resolveProviderArg(p, arg)
	if err != nil {
		return err
	}
	if err := p.SetProviderEnabled(pp.ID, enabled); err != nil {
		return err
	}
	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	fmt.Printf("%s provider %s\n", verb, pp.Name)
	return nil
}

func NewModelsCmd() *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and refresh the available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsList()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List per-provider model flags from the preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModelsList()
		},
	}

	var refreshTimeout time.Duration
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch models from every enabled provider, one at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, p, err := loadPrefs()
			if err != nil {
				return err
			}

			reg := registry.NewManager()
			orc := orchestrator.New(reg, p, refreshTimeout, providers.ResolveKey)

			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout*time.Duration(len(p.Providers)+1))
			defer cancel()

			result, outcomes, err := orc.RunCycle(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, outcome := range outcomes {
				status := "ok"
				if outcome.Err != nil {
					status = outcome.Err.Error()
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", outcome.ProviderID, outcome.BotCount, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(outcomes) == 0 {
				fmt.Println("No enabled providers. Use `polychat providers set-key <provider>` first.")
				return nil
			}
			if result.Selection.Found {
				fmt.Printf("Selected model: %s (%s)\n", result.Selection.Bot.Name, result.Selection.Bot.Provider)
			}
			return nil
		},
	}
	refreshCmd.Flags().DurationVar(&refreshTimeout, "timeout", 30*time.Second, "Per-provider fetch timeout")

	enableCmd := &cobra.Command{
		Use:   "enable <provider> <model>",
		Short: "Enable a model for completions and the picker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setModelFlag(args[0], args[1], true)
		},
	}
	disableCmd := &cobra.Command{
		Use:   "disable <provider> <model>",
		Short: "Hide a model from completions and the picker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setModelFlag(args[0], args[1], false)
		},
	}

	modelsCmd.AddCommand(listCmd, refreshCmd, enableCmd, disableCmd)
	return modelsCmd
}

func setModelFlag(providerArg, model string, enabled bool) error {
	_, p, err := loadPrefs()
	if err != nil {
		return err
	}
	pp, err := resolveProviderArg(p, providerArg)
	if err != nil {
		return err
	}
	if err := p.SetModelEnabled(pp.ID, model, enabled); err != nil {
		return err
	}
	verb := "Disabled"
	if enabled {
		verb = "Enabled"
	}
	fmt.Printf("%s model %s for %s\n", verb, model, pp.Name)
	return nil
}

func runModelsList() error {
	_, p, err := loadPrefs()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tENABLED")
	printed := 0
	for _, pp := range p.Providers {
		for _, m := range pp.Models {
			enabled := "no"
			if m.Enabled {
				enabled = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", pp.ID, m.Name, enabled)
			printed++
		}
	}
	if printed == 0 {
		fmt.Println("No models recorded yet. Run `polychat models refresh`.")
		return nil
	}
	return w.Flush()
}

func NewChatsCmd() *cobra.Command {
	chatsCmd := &cobra.Command{
		Use:   "chats",
		Short: "Inspect persisted chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatsList()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List chats, most recently used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatsList()
		},
	}

	deleteCmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a chat and its file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openChatStore()
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}
			if err := store.Delete(id); err != nil {
				return err
			}
			fmt.Printf("Deleted chat %d\n", id)
			return nil
		},
	}

	var exportOut string
	exportCmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a chat transcript as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openChatStore()
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat id %q", args[0])
			}
			chat, err := store.Get(id)
			if err != nil {
				return err
			}

			content := renderChatMarkdown(chat)
			if strings.TrimSpace(exportOut) == "" {
				fmt.Print(content)
				return nil
			}
			if err := os.WriteFile(exportOut, []byte(content), 0o644); err != nil {
				return err
			}
			fmt.Printf("Exported chat %d to %s\n", id, exportOut)
			return nil
		},
	}
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (stdout when omitted)")

	chatsCmd.AddCommand(listCmd, deleteCmd, exportCmd)
	return chatsCmd
}

func openChatStore() (*chats.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return chats.Open(cfg.ChatsDir())
}

func runChatsList() error {
	store, err := openChatStore()
	if err != nil {
		return err
	}

	all := store.All()
	if len(all) == 0 {
		fmt.Println("No chats yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMODEL\tMESSAGES\tLAST USED")
	for _, c := range all {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n",
			c.ID, c.Title, c.BotID, len(c.Messages),
			c.AccessedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func renderChatMarkdown(chat *chats.Chat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", chat.Title)
	for _, msg := range chat.Messages {
		speaker := "Assistant"
		if msg.From == chats.SenderUser {
			speaker = "User"
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", speaker, msg.Text)
	}
	return b.String()
}

func NewMCPCmd() *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage the MCP server registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPShow()
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show configured MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPShow()
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate an MCP registry file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := mcpConfigPath()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				path = args[0]
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if _, err := mcp.Parse(raw); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s is valid\n", path)
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample MCP registry when none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := mcpConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			data, err := json.MarshalIndent(mcp.Sample(), "", "  ")
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote sample registry to %s\n", path)
			return nil
		},
	}

	mcpCmd.AddCommand(showCmd, validateCmd, initCmd)
	return mcpCmd
}

func mcpConfigPath() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.Paths.DataDir, "mcp_servers.json"), nil
}

func runMCPShow() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	reg := mcp.Load(cfg.Paths.DataDir)

	if len(reg.Servers) == 0 {
		fmt.Println("No MCP servers configured. Run `polychat mcp init` for a sample.")
		return nil
	}

	globally := "off"
	if reg.Enabled {
		globally = "on"
	}
	fmt.Printf("MCP globally %s\n\n", globally)

	names := make([]string, 0, len(reg.Servers))
	for name := range reg.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTRANSPORT\tTARGET\tENABLED")
	for _, name := range names {
		srv := reg.Servers[name]
		transport := "stdio"
		target := srv.Command
		if srv.URL != "" {
			transport = srv.TransportType
			target = srv.URL
		}
		enabled := "no"
		if srv.Enabled {
			enabled = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, transport, target, enabled)
	}
	return w.Flush()
}

func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return toml.NewEncoder(os.Stdout).Encode(cfg)
		},
	}
}
