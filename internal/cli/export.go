package cli

import (
	"fmt"
	"time"

	"github.com/dvloznov/txledger/internal/export"
	"github.com/spf13/cobra"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Dest        string
	PageSize    int
	MaxRetries  int
	CreateTable bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}
	defaults := export.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy every transaction to a file, Cloud Storage or BigQuery",
		Long: `Walk the full listing and write every transaction to a destination.

Destinations:
  -                            NDJSON on stdout
  ./out.ndjson, file:///path   NDJSON file
  gs://bucket/object           NDJSON object in Cloud Storage
  bq://project.dataset.table   rows streamed into BigQuery

Listing requests that hit lock contention on the server are retried with
exponential backoff.

Examples:
  txledger export --dest - --page-size 100
  txledger export --dest gs://ledger-exports/2025-02-18.ndjson
  txledger export --dest bq://my-project.ledger.transactions --create-table`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dest, "dest", "", "destination (required)")
	_ = cmd.MarkFlagRequired("dest")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", defaults.PageSize, "records fetched per request")
	cmd.Flags().IntVar(&opts.MaxRetries, "max-retries", defaults.MaxRetries, "retries per page on lock contention")
	cmd.Flags().BoolVar(&opts.CreateTable, "create-table", false, "create the BigQuery table if missing")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := opts.newLogger(cmd)

	sink, err := export.Open(ctx, opts.Dest, export.OpenOptions{CreateTable: opts.CreateTable})
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}

	start := time.Now()
	exporter := export.New(opts.client(), export.Options{
		PageSize:   opts.PageSize,
		MaxRetries: opts.MaxRetries,
		Backoff:    export.DefaultOptions().Backoff,
	}, log)

	n, err := exporter.Export(ctx, sink)
	if closeErr := sink.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close destination: %w", closeErr)
	}
	if err != nil {
		log.Error().Err(err).Int("exported", n).Msg("export failed")
		return err
	}

	log.Info().
		Int("exported", n).
		Str("dest", opts.Dest).
		Dur("elapsed", time.Since(start)).
		Msg("export complete")
	return nil
}
