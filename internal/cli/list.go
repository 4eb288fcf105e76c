package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dvloznov/txledger/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Cursor   string
	PageSize int
	All      bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions in creation order",
		Long: `List one page of transactions ordered by creation time, oldest first.

The next page cursor is printed below the table. Pass it back with --cursor
to continue, or use --all to follow cursors to the end.

Examples:
  txledger list --page-size 20
  txledger list --cursor MTczOTg3NTY2OTM3NiwxMDAx`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "resume after this cursor")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 0, "records per page (server default when 0)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "follow cursors until the last page")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	c := opts.client()
	out := cmd.OutOrStdout()

	cursor := opts.Cursor
	var items []domain.Transaction
	for {
		page, err := c.List(cmd.Context(), cursor, opts.PageSize)
		if err != nil {
			return err
		}
		items = append(items, page.Items...)
		cursor = page.NextCursor

		if !opts.All || !page.HasNext {
			break
		}
	}

	renderTable(out, items)
	if cursor != "" {
		fmt.Fprintf(out, "next cursor: %s\n", cursor)
	}
	return nil
}

func renderTable(w io.Writer, items []domain.Transaction) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Created", "From", "To", "Amount", "Currency", "Type", "Status", "Remark"})
	table.SetAutoWrapText(false)

	for _, tx := range items {
		table.Append([]string{
			tx.ID,
			formatTime(tx.CreateTime),
			strconv.FormatInt(tx.FromAccountID, 10),
			strconv.FormatInt(tx.ToAccountID, 10),
			strconv.FormatInt(tx.Amount, 10),
			tx.Currency,
			strconv.Itoa(tx.Type),
			strconv.Itoa(tx.Status),
			tx.Remark,
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "", "Total", strconv.Itoa(len(items))})
	table.Render()
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("2006-01-02 15:04:05.000")
}
