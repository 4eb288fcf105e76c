// Package service composes the identifier registry, the cursor codec and the
// record store into the operation set used by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/cursor"
	"github.com/dvloznov/txledger/internal/domain"
	"github.com/dvloznov/txledger/internal/idregistry"
	"github.com/dvloznov/txledger/internal/store"
	"github.com/rs/zerolog"
)

// Page size bounds accepted by ListRecords. The upper bound can be lowered
// or raised per service with WithMaxPageSize.
const (
	MinPageSize = 1
	MaxPageSize = 100
)

// TransactionService is the contract between the outer layers and the core.
type TransactionService interface {
	CreateRecord(ctx context.Context, token string, tx domain.Transaction) (string, error)
	UpdateRecord(ctx context.Context, tx domain.Transaction) error
	DeleteRecord(ctx context.Context, id string) error
	ListRecords(ctx context.Context, c *domain.Cursor, pageSize int) (domain.Page, error)
	GetRecord(ctx context.Context, id string) (domain.Transaction, error)
	ExistsByToken(ctx context.Context, token string) bool
	ExistsByID(ctx context.Context, id string) bool
	DecodeCursor(token string) (domain.Cursor, error)
	EncodeCursor(last *domain.Transaction) string
}

// Transactions implements TransactionService on top of an in-memory store.
type Transactions struct {
	ids     *idregistry.Registry
	store   *store.Store
	log     zerolog.Logger
	maxPage int
}

// New creates a Transactions service.
func New(ids *idregistry.Registry, st *store.Store, log zerolog.Logger) *Transactions {
	return &Transactions{
		ids:     ids,
		store:   st,
		log:     log.With().Str("component", "service").Logger(),
		maxPage: MaxPageSize,
	}
}

// WithMaxPageSize sets the largest page ListRecords accepts. Values below
// MinPageSize are ignored.
func (s *Transactions) WithMaxPageSize(n int) *Transactions {
	if n >= MinPageSize {
		s.maxPage = n
	}
	return s
}

// CreateRecord resolves token to an identifier and stores tx under it.
// Submitting a token whose record is already stored returns the existing
// identifier without storing a second copy.
func (s *Transactions) CreateRecord(ctx context.Context, token string, tx domain.Transaction) (string, error) {
	id, ok := s.ids.IssueOrGet(token)
	if !ok {
		return "", apperr.New(apperr.Argument, "idempotency token is required")
	}
	tx.ID = id

	err := s.store.Create(ctx, tx)
	if err == nil {
		s.log.Debug().Str("id", id).Msg("record created")
		return id, nil
	}
	if errors.Is(err, apperr.ErrDuplicate) && s.store.Exists(id) {
		s.log.Debug().Str("id", id).Msg("idempotent create replay")
		return id, nil
	}
	return "", fmt.Errorf("CreateRecord: %w", err)
}

// UpdateRecord replaces the record identified by tx.ID.
func (s *Transactions) UpdateRecord(ctx context.Context, tx domain.Transaction) error {
	if err := s.store.Update(ctx, tx); err != nil {
		return fmt.Errorf("UpdateRecord: %w", err)
	}
	return nil
}

// DeleteRecord removes the record identified by id.
func (s *Transactions) DeleteRecord(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("DeleteRecord: %w", err)
	}
	return nil
}

// ListRecords returns one page after c. A nil cursor starts at the beginning.
func (s *Transactions) ListRecords(ctx context.Context, c *domain.Cursor, pageSize int) (domain.Page, error) {
	if pageSize < MinPageSize || pageSize > s.maxPage {
		return domain.Page{}, apperr.New(apperr.Argument, "page size must be between %d and %d, got %d", MinPageSize, s.maxPage, pageSize)
	}
	from := domain.InitialCursor
	if c != nil {
		from = *c
	}
	page, err := s.store.List(from, pageSize)
	if err != nil {
		return domain.Page{}, fmt.Errorf("ListRecords: %w", err)
	}
	return page, nil
}

// GetRecord returns the record identified by id.
func (s *Transactions) GetRecord(_ context.Context, id string) (domain.Transaction, error) {
	tx, ok := s.store.Get(id)
	if !ok {
		return domain.Transaction{}, apperr.ForID(apperr.NotFound, id)
	}
	return tx, nil
}

// ExistsByToken reports whether token resolved to a stored record. It never
// issues an identifier.
func (s *Transactions) ExistsByToken(_ context.Context, token string) bool {
	id, ok := s.ids.Lookup(token)
	return ok && s.store.Exists(id)
}

// ExistsByID reports whether a record is stored under id.
func (s *Transactions) ExistsByID(_ context.Context, id string) bool {
	return s.store.Exists(id)
}

// DecodeCursor parses a pagination token.
func (s *Transactions) DecodeCursor(token string) (domain.Cursor, error) {
	return cursor.Decode(token)
}

// EncodeCursor returns the token positioned at last, or "" for nil.
func (s *Transactions) EncodeCursor(last *domain.Transaction) string {
	return cursor.EncodeRecord(last)
}

var _ TransactionService = (*Transactions)(nil)
