package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/txledger/internal/domain"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// TransactionRow is the BigQuery shape of an exported record.
type TransactionRow struct {
	TransactionNo string              `bigquery:"transaction_no"`  // REQUIRED
	FromAccountID int64               `bigquery:"from_account_id"` // REQUIRED
	ToAccountID   int64               `bigquery:"to_account_id"`   // REQUIRED
	Amount        int64               `bigquery:"amount"`          // REQUIRED, minor units
	Currency      string              `bigquery:"currency"`        // REQUIRED
	Remark        bigquery.NullString `bigquery:"remark"`          // NULLABLE
	Type          int64               `bigquery:"type"`
	Status        int64               `bigquery:"status"`

	CreateTS time.Time              `bigquery:"create_ts"` // REQUIRED
	UpdateTS bigquery.NullTimestamp `bigquery:"update_ts"` // NULLABLE

	Creator int64 `bigquery:"creator"`
	Updater int64 `bigquery:"updater"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// NewTransactionRow maps a record to a row.
func NewTransactionRow(tx domain.Transaction, exportedAt time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionNo: tx.ID,
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Remark:        bigquery.NullString{StringVal: tx.Remark, Valid: tx.Remark != ""},
		Type:          int64(tx.Type),
		Status:        int64(tx.Status),
		CreateTS:      tx.CreateTime,
		Creator:       tx.Creator,
		Updater:       tx.Updater,
		ExportedTS:    exportedAt,
	}
	if !tx.UpdateTime.IsZero() {
		row.UpdateTS = bigquery.NullTimestamp{Timestamp: tx.UpdateTime, Valid: true}
	}
	return row
}

// rowPutter is the part of *bigquery.Inserter the sink needs.
type rowPutter interface {
	Put(ctx context.Context, src interface{}) error
}

// BigQuerySink streams rows into a table with the insertAll API.
type BigQuerySink struct {
	client *bigquery.Client
	putter rowPutter
	now    func() time.Time
}

// NewBigQuerySink targets project.dataset.table. When create is set the
// table is created from the TransactionRow schema if it does not exist.
func NewBigQuerySink(ctx context.Context, projectID, datasetID, tableID string, create bool, opts ...option.ClientOption) (*BigQuerySink, error) {
	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuerySink: bigquery client: %w", err)
	}

	table := client.DatasetInProject(projectID, datasetID).Table(tableID)
	if create {
		if err := ensureTable(ctx, table); err != nil {
			client.Close()
			return nil, err
		}
	}

	return &BigQuerySink{client: client, putter: table.Inserter(), now: time.Now}, nil
}

func ensureTable(ctx context.Context, table *bigquery.Table) error {
	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("infer schema: %w", err)
	}
	err = table.Create(ctx, &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "create_ts"},
	})
	var apiErr *googleapi.Error
	if err != nil && !(errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict) {
		return fmt.Errorf("create table %s: %w", table.FullyQualifiedName(), err)
	}
	return nil
}

// WriteBatch implements Sink.
func (s *BigQuerySink) WriteBatch(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	exportedAt := s.now().UTC()
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, NewTransactionRow(tx, exportedAt))
	}

	if err := s.putter.Put(ctx, rows); err != nil {
		return fmt.Errorf("BigQuerySink: inserting rows: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *BigQuerySink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// ParseTableRef splits bq://project.dataset.table.
func ParseTableRef(ref string) (project, dataset, table string, err error) {
	if !strings.HasPrefix(ref, "bq://") {
		return "", "", "", fmt.Errorf("invalid BigQuery table reference: %s", ref)
	}
	parts := strings.Split(strings.TrimPrefix(ref, "bq://"), ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("BigQuery reference must be bq://project.dataset.table: %s", ref)
	}
	return parts[0], parts[1], parts[2], nil
}

var _ Sink = (*BigQuerySink)(nil)
