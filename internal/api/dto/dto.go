// Package dto holds the JSON shapes exchanged over the transactions API.
package dto

import (
	"strings"

	"github.com/dvloznov/txledger/internal/domain"
)

// MaxCurrencyLen is the longest accepted currency code.
const MaxCurrencyLen = 3

// Transaction is the wire form of a record. Times are epoch milliseconds.
type Transaction struct {
	TransactionNo string `json:"transactionNo"`
	FromAccountID int64  `json:"fromAccountId"`
	ToAccountID   int64  `json:"toAccountId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Remark        string `json:"remark,omitempty"`
	Type          int    `json:"type"`
	Status        int    `json:"status"`
	CreateTime    int64  `json:"createTime"`
	Creator       int64  `json:"creator"`
	UpdateTime    int64  `json:"updateTime"`
	Updater       int64  `json:"updater"`
}

// FromDomain converts a stored record to its wire form.
func FromDomain(tx domain.Transaction) Transaction {
	return Transaction{
		TransactionNo: tx.ID,
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Remark:        tx.Remark,
		Type:          tx.Type,
		Status:        tx.Status,
		CreateTime:    domain.Millis(tx.CreateTime),
		Creator:       tx.Creator,
		UpdateTime:    domain.Millis(tx.UpdateTime),
		Updater:       tx.Updater,
	}
}

// ToDomain converts the wire form back to a record.
func (t Transaction) ToDomain() domain.Transaction {
	return domain.Transaction{
		ID:            t.TransactionNo,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        t.Amount,
		Currency:      t.Currency,
		Remark:        t.Remark,
		Type:          t.Type,
		Status:        t.Status,
		CreateTime:    domain.FromMillis(t.CreateTime),
		Creator:       t.Creator,
		UpdateTime:    domain.FromMillis(t.UpdateTime),
		Updater:       t.Updater,
	}
}

// WriteRequest is the body of create and update calls. Pointer fields are
// required; nil means the client omitted them.
type WriteRequest struct {
	SerialNumber  string `json:"serialNumber,omitempty"`
	FromAccountID *int64 `json:"fromAccountId"`
	ToAccountID   *int64 `json:"toAccountId"`
	Amount        *int64 `json:"amount"`
	Currency      string `json:"currency"`
	Remark        string `json:"remark,omitempty"`
	Status        *int   `json:"status"`
	Type          *int   `json:"type"`
	Creator       *int64 `json:"creator"`
	CreateTime    int64  `json:"createTime,omitempty"`
	Updater       *int64 `json:"updater"`
	UpdateTime    int64  `json:"updateTime,omitempty"`
}

// Validate returns a field → message map of problems, or nil. The serial
// number is only required when requireSerial is set (create).
func (r WriteRequest) Validate(requireSerial bool) map[string]string {
	details := make(map[string]string)

	if requireSerial && strings.TrimSpace(r.SerialNumber) == "" {
		details["serialNumber"] = "must not be blank"
	}
	if r.FromAccountID == nil {
		details["fromAccountId"] = "must not be null"
	}
	if r.ToAccountID == nil {
		details["toAccountId"] = "must not be null"
	}
	switch {
	case r.Amount == nil:
		details["amount"] = "must not be null"
	case *r.Amount <= 0:
		details["amount"] = "must be greater than 0"
	}
	switch {
	case strings.TrimSpace(r.Currency) == "":
		details["currency"] = "must not be blank"
	case len(r.Currency) > MaxCurrencyLen:
		details["currency"] = "size must be between 0 and 3"
	}
	if r.Status == nil {
		details["status"] = "must not be null"
	}
	if r.Type == nil {
		details["type"] = "must not be null"
	}
	if r.Creator == nil {
		details["creator"] = "must not be null"
	}
	if r.Updater == nil {
		details["updater"] = "must not be null"
	}

	if len(details) == 0 {
		return nil
	}
	return details
}

// ToDomain builds a record from a validated request. nowMillis fills an
// absent update time.
func (r WriteRequest) ToDomain(id string, nowMillis int64) domain.Transaction {
	t := Transaction{
		TransactionNo: id,
		Currency:      r.Currency,
		Remark:        r.Remark,
		CreateTime:    r.CreateTime,
		UpdateTime:    r.UpdateTime,
	}
	if r.FromAccountID != nil {
		t.FromAccountID = *r.FromAccountID
	}
	if r.ToAccountID != nil {
		t.ToAccountID = *r.ToAccountID
	}
	if r.Amount != nil {
		t.Amount = *r.Amount
	}
	if r.Status != nil {
		t.Status = *r.Status
	}
	if r.Type != nil {
		t.Type = *r.Type
	}
	if r.Creator != nil {
		t.Creator = *r.Creator
	}
	if r.Updater != nil {
		t.Updater = *r.Updater
	}
	if t.UpdateTime == 0 {
		t.UpdateTime = nowMillis
	}
	return t.ToDomain()
}

// TransactionData wraps a single record in a response.
type TransactionData struct {
	Transaction Transaction `json:"transaction"`
}

// Pagination describes where the next page starts.
type Pagination struct {
	HasNext    bool   `json:"hasNext"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PageData is one page of records.
type PageData struct {
	Items      []Transaction `json:"items"`
	Pagination Pagination    `json:"pagination"`
}

// FromPage converts a store page to its wire form.
func FromPage(p domain.Page) PageData {
	items := make([]Transaction, 0, len(p.Items))
	for _, tx := range p.Items {
		items = append(items, FromDomain(tx))
	}
	return PageData{
		Items:      items,
		Pagination: Pagination{HasNext: p.HasNext, NextCursor: p.NextCursor},
	}
}

// Envelope is the top-level success body.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// OK wraps data in a success envelope.
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Code: 200, Message: "success", Data: data}
}
