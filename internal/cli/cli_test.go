package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/api/handlers"
	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/export"
	"github.com/dvloznov/txledger/internal/idregistry"
	"github.com/dvloznov/txledger/internal/jobs/inmemory"
	"github.com/dvloznov/txledger/internal/service"
	"github.com/dvloznov/txledger/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	svc := service.New(
		idregistry.New(idregistry.DefaultStart),
		store.New(store.DefaultOptions(), zerolog.Nop()),
		zerolog.Nop(),
	)
	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.QueueOptions{BufferSize: 4, Workers: 1}, jobStore, zerolog.Nop())
	open := func(ctx context.Context, dest string) (export.Sink, error) {
		return export.Open(ctx, dest, export.OpenOptions{})
	}
	require.NoError(t, queue.Start(context.Background(),
		export.JobHandler(export.ServiceLister{Pager: svc}, open, export.DefaultOptions(), zerolog.Nop())))
	t.Cleanup(func() { _ = queue.Close() })

	mux := http.NewServeMux()
	handlers.NewTransactionsHandler(svc, 20, zerolog.Nop()).Register(mux)
	handlers.NewExportsHandler(queue, jobStore, zerolog.Nop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv.URL
}

func execute(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--server", server, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func createArgs(token string, amount string) []string {
	return []string{"create", "--token", token, "--from", "1", "--to", "2", "--amount", amount, "--currency", "EUR"}
}

func decodeTransaction(t *testing.T, out string) dto.Transaction {
	t.Helper()
	var tx dto.Transaction
	require.NoError(t, json.Unmarshal([]byte(out), &tx))
	return tx
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"create", "get", "update", "delete", "list", "export", "jobs"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	t.Setenv("TXLEDGER_SERVER", "")
	cmd := NewRootCommand()

	server := cmd.PersistentFlags().Lookup("server")
	require.NotNil(t, server)
	assert.Equal(t, DefaultServer, server.DefValue)

	level := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, level)
	assert.Equal(t, "info", level.DefValue)
}

func TestServerFromEnv(t *testing.T) {
	t.Setenv("TXLEDGER_SERVER", "http://ledger.internal:9000")
	cmd := NewRootCommand()
	assert.Equal(t, "http://ledger.internal:9000", cmd.PersistentFlags().Lookup("server").DefValue)
}

func TestInvalidLogLevel(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-level", "loud", "list"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestCreateGetDelete(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, server, append(createArgs("order-1", "1250"), "--remark", "rent", "--create-time", "2025-02-18T10:00:00.123Z")...)
	require.NoError(t, err)
	created := decodeTransaction(t, out)
	assert.Equal(t, "1001", created.TransactionNo)
	assert.Equal(t, int64(1250), created.Amount)
	assert.Equal(t, "rent", created.Remark)
	assert.Equal(t, int64(1739872800123), created.CreateTime)

	out, err = execute(t, server, "get", "1001")
	require.NoError(t, err)
	assert.Equal(t, created, decodeTransaction(t, out))

	out, err = execute(t, server, "delete", "1001")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1001\n", out)

	_, err = execute(t, server, "get", "1001")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreate_ReplaysSameToken(t *testing.T) {
	server := newTestServer(t)

	out, err := execute(t, server, createArgs("order-7", "100")...)
	require.NoError(t, err)
	first := decodeTransaction(t, out)

	out, err = execute(t, server, createArgs("order-7", "999")...)
	require.NoError(t, err)
	second := decodeTransaction(t, out)

	assert.Equal(t, first.TransactionNo, second.TransactionNo)
	assert.Equal(t, int64(100), second.Amount)
}

func TestCreate_GeneratesToken(t *testing.T) {
	server := newTestServer(t)

	args := []string{"create", "--from", "1", "--to", "2", "--amount", "5", "--currency", "USD"}
	out, err := execute(t, server, args...)
	require.NoError(t, err)
	assert.Equal(t, "1001", decodeTransaction(t, out).TransactionNo)

	out, err = execute(t, server, args...)
	require.NoError(t, err)
	assert.Equal(t, "1002", decodeTransaction(t, out).TransactionNo)
}

func TestCreate_ValidationError(t *testing.T) {
	server := newTestServer(t)

	_, err := execute(t, server, createArgs("order-1", "-5")...)
	require.Error(t, err)
	assert.Equal(t, apperr.Argument, apperr.KindOf(err))

	_, err = execute(t, server, "create", "--from", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestUpdate(t *testing.T) {
	server := newTestServer(t)

	_, err := execute(t, server, createArgs("order-1", "100")...)
	require.NoError(t, err)

	out, err := execute(t, server, "update", "1001", "--from", "1", "--to", "3", "--amount", "200", "--currency", "GBP")
	require.NoError(t, err)
	updated := decodeTransaction(t, out)
	assert.Equal(t, int64(3), updated.ToAccountID)
	assert.Equal(t, "GBP", updated.Currency)

	_, err = execute(t, server, "update", "4242", "--from", "1", "--to", "3", "--amount", "200", "--currency", "GBP")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestList(t *testing.T) {
	server := newTestServer(t)
	for i, ts := range []string{"2025-02-18T10:00:00Z", "2025-02-18T10:00:01Z", "2025-02-18T10:00:02Z"} {
		args := append(createArgs("order-"+string(rune('a'+i)), "100"), "--create-time", ts)
		_, err := execute(t, server, args...)
		require.NoError(t, err)
	}

	out, err := execute(t, server, "list", "--page-size", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "1001")
	assert.Contains(t, out, "1002")
	assert.NotContains(t, out, "1003")
	assert.Contains(t, out, "2025-02-18 10:00:00.000")
	require.Contains(t, out, "next cursor: ")

	cursor := strings.TrimSpace(out[strings.Index(out, "next cursor: ")+len("next cursor: "):])
	out, err = execute(t, server, "list", "--page-size", "2", "--cursor", cursor)
	require.NoError(t, err)
	assert.Contains(t, out, "1003")
	assert.NotContains(t, out, "1001")
	assert.NotContains(t, out, "next cursor")

	out, err = execute(t, server, "list", "--page-size", "1", "--all")
	require.NoError(t, err)
	for _, id := range []string{"1001", "1002", "1003"} {
		assert.Contains(t, out, id)
	}
	assert.NotContains(t, out, "next cursor")
}

func TestList_BadCursor(t *testing.T) {
	server := newTestServer(t)

	_, err := execute(t, server, "list", "--cursor", "afadsfjla")
	require.Error(t, err)
	assert.Equal(t, apperr.Cursor, apperr.KindOf(err))
}

func TestExport_ToFile(t *testing.T) {
	server := newTestServer(t)
	for _, token := range []string{"a", "b", "c"} {
		_, err := execute(t, server, createArgs(token, "100")...)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "export.ndjson")
	_, err := execute(t, server, "export", "--dest", path, "--page-size", "2")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	seen := map[string]bool{}
	for _, line := range lines {
		var tx dto.Transaction
		require.NoError(t, json.Unmarshal([]byte(line), &tx))
		seen[tx.TransactionNo] = true
	}
	assert.Equal(t, map[string]bool{"1001": true, "1002": true, "1003": true}, seen)
}

func TestExport_RequiresDest(t *testing.T) {
	_, err := execute(t, newTestServer(t), "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dest")
}

func TestJobs_SubmitWaitAndList(t *testing.T) {
	server := newTestServer(t)
	for _, token := range []string{"a", "b"} {
		_, err := execute(t, server, createArgs(token, "100")...)
		require.NoError(t, err)
	}

	path := filepath.Join(t.TempDir(), "server.ndjson")
	out, err := execute(t, server, "jobs", "submit", "--dest", path, "--wait", "--poll", "5ms")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	out, err = execute(t, server, "jobs", "list", "--status", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, path)
}

func TestJobs_Errors(t *testing.T) {
	server := newTestServer(t)

	_, err := execute(t, server, "jobs", "submit", "--dest", "-")
	require.Error(t, err)
	assert.Equal(t, apperr.Argument, apperr.KindOf(err))

	_, err = execute(t, server, "jobs", "get", "missing")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestInfoLogsGoToStderr(t *testing.T) {
	server := newTestServer(t)
	run := func(args ...string) (string, string) {
		cmd := NewRootCommand()
		var out, errOut bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs(append([]string{"--server", server, "--log-level", "info"}, args...))
		require.NoError(t, cmd.Execute())
		return out.String(), errOut.String()
	}

	_, stderr := run(createArgs("order-1", "100")...)
	assert.NotContains(t, stderr, "token already used")

	out, stderr := run(createArgs("order-1", "100")...)
	assert.Equal(t, "1001", decodeTransaction(t, out).TransactionNo)
	assert.Contains(t, stderr, "token already used")

	path := filepath.Join(t.TempDir(), "logged.ndjson")
	_, stderr = run("jobs", "submit", "--dest", path)
	assert.Contains(t, stderr, "export job submitted")
}
