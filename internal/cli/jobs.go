package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// JobsOptions holds flags for the jobs subcommands.
type JobsOptions struct {
	*RootOptions
	Dest     string
	PageSize int
	Status   string
	Limit    int
	Wait     bool
	Poll     time.Duration
}

// NewJobsCommand creates the jobs command group for server-side exports.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JobsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run exports on the server in the background",
		Long: `Submit and inspect export jobs executed by the API server.

Unlike "export", the server walks its own store and writes to the
destination with its own credentials.

Examples:
  txledger jobs submit --dest gs://ledger-exports/snapshot.ndjson --wait
  txledger jobs get 3f2b8c1e-...
  txledger jobs list --status failed`,
	}

	submit := &cobra.Command{
		Use:           "submit",
		Short:         "Submit an export job",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobsSubmit(opts, cmd)
		},
	}
	submit.Flags().StringVar(&opts.Dest, "dest", "", "destination on the server (required)")
	_ = submit.MarkFlagRequired("dest")
	submit.Flags().IntVar(&opts.PageSize, "page-size", 0, "records per page (server default when 0)")
	submit.Flags().BoolVar(&opts.Wait, "wait", false, "poll until the job completes or fails")
	submit.Flags().DurationVar(&opts.Poll, "poll", time.Second, "poll interval for --wait")

	get := &cobra.Command{
		Use:           "get <job-id>",
		Short:         "Show one export job",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.client().GetExport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderJobs(cmd.OutOrStdout(), []dto.ExportJob{job})
			return nil
		},
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List export jobs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := opts.client().ListExports(cmd.Context(), opts.Status, opts.Limit)
			if err != nil {
				return err
			}
			renderJobs(cmd.OutOrStdout(), jobs)
			return nil
		},
	}
	list.Flags().StringVar(&opts.Status, "status", "", "filter by status (pending|running|retrying|completed|failed)")
	list.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of jobs")

	cmd.AddCommand(submit, get, list)
	return cmd
}

func runJobsSubmit(opts *JobsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	c := opts.client()

	job, err := c.SubmitExport(ctx, opts.Dest, opts.PageSize)
	if err != nil {
		return err
	}
	log := opts.newLogger(cmd)
	log.Info().Str("job_id", job.JobID).Str("dest", job.Dest).Msg("export job submitted")

	for opts.Wait && job.Status != "completed" && job.Status != "failed" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.Poll):
		}
		if job, err = c.GetExport(ctx, job.JobID); err != nil {
			return err
		}
	}

	renderJobs(cmd.OutOrStdout(), []dto.ExportJob{job})
	if job.Status == "failed" {
		return fmt.Errorf("export job %s failed: %s", job.JobID, job.Error)
	}
	return nil
}

func renderJobs(w io.Writer, jobs []dto.ExportJob) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job", "Status", "Dest", "Exported", "Retries", "Created", "Error"})
	table.SetAutoWrapText(false)

	for _, j := range jobs {
		table.Append([]string{
			j.JobID,
			j.Status,
			j.Dest,
			strconv.Itoa(j.Exported),
			fmt.Sprintf("%d/%d", j.RetryCount, j.MaxRetries),
			formatTime(domain.FromMillis(j.CreatedAt)),
			j.Error,
		})
	}
	table.Render()
}
