package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"polychat/internal/config"
	"polychat/internal/localserver"
)

func newServerClient(timeout time.Duration) (*localserver.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return localserver.New(cfg.ServerPort(), timeout), nil
}

// NewServerCmd groups the subcommands talking to the companion local model
// server.
func NewServerCmd() *cobra.Command {
	var timeout time.Duration

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Query the companion local model server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerStatus(timeout)
		},
	}
	serverCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Ping the server and report its status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerStatus(timeout)
		},
	}

	var searchQuery string
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List featured models, or search with --query",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newServerClient(timeout)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			var models []localserver.Model
			if searchQuery != "" {
				models, err = client.SearchModels(ctx, searchQuery)
			} else {
				models, err = client.FeaturedModels(ctx)
			}
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Println("No models found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tAUTHOR\tSIZE\tFILES")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", m.ID, m.Name, m.Author, m.Size, len(m.Files))
			}
			return w.Flush()
		},
	}
	modelsCmd.Flags().StringVar(&searchQuery, "query", "", "Search term")

	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "List downloaded model files",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newServerClient(timeout)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			files, err := client.DownloadedFiles(ctx)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("No downloaded files.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tMODEL\tNAME\tSIZE\tDOWNLOADED")
			for _, f := range files {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					f.FileID, f.ModelID, f.Name, f.SizeBytes,
					f.DownloadedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	downloadsCmd := &cobra.Command{
		Use:   "downloads",
		Short: "List pending downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newServerClient(timeout)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			pending, err := client.PendingDownloads(ctx)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("No pending downloads.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "FILE\tMODEL\tPROGRESS\tSTATE")
			for _, d := range pending {
				state := "downloading"
				if d.Paused {
					state = "paused"
				}
				fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\n", d.FileID, d.ModelID, d.Progress, state)
			}
			return w.Flush()
		},
	}

	downloadCmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Start downloading a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerAction(timeout, args[0], "start", func(c *localserver.Client, ctx context.Context, id string) error {
				return c.StartDownload(ctx, id)
			})
		},
	}
	pauseCmd := &cobra.Command{
		Use:   "pause <file-id>",
		Short: "Pause a pending download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerAction(timeout, args[0], "pause", func(c *localserver.Client, ctx context.Context, id string) error {
				return c.PauseDownload(ctx, id)
			})
		},
	}
	cancelCmd := &cobra.Command{
		Use:   "cancel <file-id>",
		Short: "Cancel a pending download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerAction(timeout, args[0], "cancel", func(c *localserver.Client, ctx context.Context, id string) error {
				return c.CancelDownload(ctx, id)
			})
		},
	}
	deleteCmd := &cobra.Command{
		Use:   "delete-file <file-id>",
		Short: "Delete a downloaded model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerAction(timeout, args[0], "delete", func(c *localserver.Client, ctx context.Context, id string) error {
				return c.DeleteFile(ctx, id)
			})
		},
	}

	serverCmd.AddCommand(statusCmd, modelsCmd, filesCmd, downloadsCmd, downloadCmd, pauseCmd, cancelCmd, deleteCmd)
	return serverCmd
}

func runServerStatus(timeout time.Duration) error {
	client, err := newServerClient(timeout)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_ = client.Ping(ctx)
	status, detail := client.Status()
	if detail != "" {
		fmt.Printf("Server status: %s (%s)\n", status, detail)
		return nil
	}
	fmt.Printf("Server status: %s\n", status)
	return nil
}

func runServerAction(timeout time.Duration, fileID, verb string, action func(*localserver.Client, context.Context, string) error) error {
	client, err := newServerClient(timeout)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := action(client, ctx, fileID); err != nil {
		return err
	}
	fmt.Printf("Requested %s for %s\n", verb, fileID)
	return nil
}
