package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/api/handlers"
	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/idregistry"
	"github.com/dvloznov/txledger/internal/service"
	"github.com/dvloznov/txledger/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	svc := service.New(
		idregistry.New(idregistry.DefaultStart),
		store.New(store.DefaultOptions(), zerolog.Nop()),
		zerolog.Nop(),
	)
	mux := http.NewServeMux()
	handlers.NewTransactionsHandler(svc, 20, zerolog.Nop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client())
}

func ptr[T any](v T) *T { return &v }

func writeRequest(serial string, amount int64, createTime int64) dto.WriteRequest {
	return dto.WriteRequest{
		SerialNumber:  serial,
		FromAccountID: ptr(int64(10)),
		ToAccountID:   ptr(int64(20)),
		Amount:        ptr(amount),
		Currency:      "EUR",
		Status:        ptr(0),
		Type:          ptr(1),
		Creator:       ptr(int64(3)),
		Updater:       ptr(int64(3)),
		CreateTime:    createTime,
	}
}

func TestClient_Lifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	tx, created, err := c.Create(ctx, writeRequest("s-1", 100, 1000))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "1001", tx.ID)

	again, created, err := c.Create(ctx, writeRequest("s-1", 100, 1000))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, tx.ID, again.ID)

	got, err := c.Get(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, int64(1000), got.CreateTime.UnixMilli())

	upd := writeRequest("", 900, 0)
	updated, err := c.Update(ctx, tx.ID, upd)
	require.NoError(t, err)
	assert.Equal(t, int64(900), updated.Amount)

	require.NoError(t, c.Delete(ctx, tx.ID))

	_, err = c.Get(ctx, tx.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestClient_List(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i, serial := range []string{"a", "b", "c"} {
		_, _, err := c.Create(ctx, writeRequest(serial, 100, int64(i+1)*1000))
		require.NoError(t, err)
	}

	page, err := c.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasNext)

	rest, err := c.List(ctx, page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.False(t, rest.HasNext)
	assert.Equal(t, "1003", rest.Items[0].ID)
}

func TestClient_ErrorKinds(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.List(ctx, "afadsfjla", 5)
	assert.Equal(t, apperr.Cursor, apperr.KindOf(err))

	_, _, err = c.Create(ctx, writeRequest("", 100, 0))
	assert.Equal(t, apperr.Argument, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "serialNumber")

	err = c.Delete(ctx, "4242")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).List(context.Background(), "", 5)
	assert.Equal(t, apperr.System, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "502")
}
