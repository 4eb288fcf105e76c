// Package cli implements the txledger command line client.
package cli

import (
	"fmt"
	"os"

	"github.com/dvloznov/txledger/internal/client"
	"github.com/dvloznov/txledger/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// DefaultServer is used when neither --server nor TXLEDGER_SERVER is set.
const DefaultServer = "http://localhost:8080"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server   string
	LogLevel string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "txledger",
		Short: "Client for the txledger transactions API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := logger.ParseLevel(opts.LogLevel); err != nil {
				return err
			}
			if opts.Server == "" {
				return fmt.Errorf("--server must not be empty")
			}
			return nil
		},
	}

	server := os.Getenv("TXLEDGER_SERVER")
	if server == "" {
		server = DefaultServer
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "API base URL (env TXLEDGER_SERVER)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewJobsCommand(opts))

	return cmd
}

func (o *RootOptions) client() *client.Client {
	return client.New(o.Server, nil)
}

// newLogger writes to the command's stderr.
func (o *RootOptions) newLogger(cmd *cobra.Command) zerolog.Logger {
	log, err := logger.NewConsole(cmd.ErrOrStderr(), o.LogLevel)
	if err != nil {
		return zerolog.Nop()
	}
	return log
}
