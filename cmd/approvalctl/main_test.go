package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := rootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestDecodeComment(t *testing.T) {
	out, _, err := execute(t, "decode-comment",
		"[ADMIN] [MODE:DONE] [SERVICE:FLIGHT] [BOOKING_AMOUNT:9500] [ACTUAL_PRICE:9800] issued — Attachment: https://files.test/uploads/x/eticket.pdf")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["isAdmin"])
	assert.Equal(t, "DONE", got["mode"])
	assert.Equal(t, "FLIGHT", got["service"])
	assert.Equal(t, 9500.0, got["bookingAmount"])
	assert.Equal(t, 9800.0, got["actualPrice"])
	assert.Equal(t, "/approvals/attachments/eticket.pdf/download", got["attachmentLink"])
}

func TestDecodeComment_RequiresArg(t *testing.T) {
	_, _, err := execute(t, "decode-comment")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/approvals/export.csv", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "flight", r.URL.Query().Get("service"))
		assert.Equal(t, "30", r.URL.Query().Get("days"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("X-Export-Rows", "1")
		fmt.Fprint(w, "Code,Status\nA,approved\n")
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "nested", "out.csv")
	_, stderr, err := execute(t, "export", "--url", srv.URL, "--token", "tok",
		"--service", "flight", "--days", "30", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote 1 rows")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Code,Status\nA,approved\n", string(data))
}

func TestExport_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"success":false,"error":"only admins may reveal actual prices"}`)
	}))
	defer srv.Close()

	_, _, err := execute(t, "export", "--url", srv.URL, "--token", "tok", "--reveal", "--out", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only admins may reveal")
}

func TestExport_RequiresToken(t *testing.T) {
	t.Setenv("APPROVALS_TOKEN", "")
	_, _, err := execute(t, "export", "--url", "http://localhost:1")
	assert.ErrorContains(t, err, "access token")
}
