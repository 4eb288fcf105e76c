package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// WriteOptions holds the record fields shared by create and update.
type WriteOptions struct {
	*RootOptions
	Token      string
	From       int64
	To         int64
	Amount     int64
	Currency   string
	Remark     string
	Type       int
	Status     int
	Actor      int64
	CreateTime string // RFC 3339, empty for now
}

func (o *WriteOptions) bindFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&o.From, "from", 0, "debited account id (required)")
	cmd.Flags().Int64Var(&o.To, "to", 0, "credited account id (required)")
	cmd.Flags().Int64Var(&o.Amount, "amount", 0, "amount in minor units (required)")
	cmd.Flags().StringVar(&o.Currency, "currency", "", "ISO 4217 currency code (required)")
	cmd.Flags().StringVar(&o.Remark, "remark", "", "free text remark")
	cmd.Flags().IntVar(&o.Type, "type", 0, "business type code")
	cmd.Flags().IntVar(&o.Status, "status", 0, "business status code")
	cmd.Flags().Int64Var(&o.Actor, "actor", 0, "user id recorded as creator and updater")
	cmd.Flags().StringVar(&o.CreateTime, "create-time", "", "creation time in RFC 3339, defaults to now on the server")
	for _, name := range []string{"from", "to", "amount", "currency"} {
		_ = cmd.MarkFlagRequired(name)
	}
}

func (o *WriteOptions) request() (dto.WriteRequest, error) {
	req := dto.WriteRequest{
		SerialNumber:  o.Token,
		FromAccountID: &o.From,
		ToAccountID:   &o.To,
		Amount:        &o.Amount,
		Currency:      o.Currency,
		Remark:        o.Remark,
		Type:          &o.Type,
		Status:        &o.Status,
		Creator:       &o.Actor,
		Updater:       &o.Actor,
	}
	if o.CreateTime != "" {
		ts, err := time.Parse(time.RFC3339Nano, o.CreateTime)
		if err != nil {
			return dto.WriteRequest{}, fmt.Errorf("invalid --create-time: %w", err)
		}
		req.CreateTime = ts.UnixMilli()
	}
	return req, nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a transaction",
		Long: `Create a transaction and print it as JSON.

The --token flag is the idempotency token. Repeating a create with the same
token returns the existing record. A random token is generated when omitted.

Examples:
  txledger create --from 1 --to 2 --amount 1250 --currency EUR
  txledger create --token order-42 --from 1 --to 2 --amount 99 --currency USD`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Token == "" {
				opts.Token = uuid.NewString()
			}
			req, err := opts.request()
			if err != nil {
				return err
			}

			tx, created, err := opts.client().Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !created {
				log := opts.newLogger(cmd)
				log.Info().Str("id", tx.ID).Str("token", opts.Token).Msg("token already used, returning existing record")
			}
			return printJSON(cmd.OutOrStdout(), tx)
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "idempotency token (default: random UUID)")
	opts.bindFlags(cmd)

	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "update <id>",
		Short:         "Replace the fields of a transaction",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request()
			if err != nil {
				return err
			}
			tx, err := opts.client().Update(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tx)
		},
	}

	opts.bindFlags(cmd)

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <id>",
		Short:         "Print a transaction as JSON",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := rootOpts.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tx)
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a transaction",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootOpts.client().Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func printJSON(w io.Writer, tx domain.Transaction) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.FromDomain(tx))
}
