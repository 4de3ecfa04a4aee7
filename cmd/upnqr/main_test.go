package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/upnqr/internal/upn"
)

func writeRecord(t *testing.T, rec upn.Record) string {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func record() upn.Record {
	return upn.Record{
		DueDate:         "2021-01-31",
		TotalAmount:     "1337.80",
		BankAccount:     "SI56 1234 5678 9012 3456",
		IssuerName:      "Podjetje d.o.o.",
		IssuerAddress:   "Ulica 123",
		IssuerZipCode:   "1000",
		IssuerCity:      "Ljubljana",
		ServiceName:     "Programiranje",
		ReferenceNumber: "SI00 20230922",
	}
}

func TestPayloadAndInspect(t *testing.T) {
	payload, _, err := execute("payload", "--record", writeRecord(t, record()))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(payload, "UPNQR\n"), payload)

	payloadFile := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(payloadFile, []byte(payload), 0o600))

	out, _, err := execute("inspect", "--payload", payloadFile)
	require.NoError(t, err)
	assert.Contains(t, out, "amount     00000133780")
	assert.Contains(t, out, "name       Podjetje d.o.o.")
	assert.Contains(t, out, " ok\n")

	require.NoError(t, os.WriteFile(payloadFile, []byte(strings.Replace(payload, "Podjetje d.o.o.", "Podjetje d.o.o", 1)), 0o600))
	_, _, err = execute("inspect", "--payload", payloadFile)
	assert.ErrorIs(t, err, upn.ErrMalformedPayload)
}

func TestPayloadDatePolicy(t *testing.T) {
	rec := record()
	rec.DueDate = "next week"
	path := writeRecord(t, rec)

	_, _, err := execute("payload", "--record", path)
	require.Error(t, err)

	out, warnings, err := execute("payload", "--record", path, "--lenient")
	require.NoError(t, err)
	assert.Contains(t, out, "UPNQR\n")
	assert.Contains(t, warnings, "warning:")
}

func TestRender(t *testing.T) {
	out := filepath.Join(t.TempDir(), "qr.png")
	stdout, _, err := execute("render", "--record", writeRecord(t, record()), "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "850px")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestExplain(t *testing.T) {
	_, _, err := execute("payload", "--record", writeRecord(t, upn.Record{TotalAmount: "abc"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid record:\n")
	assert.Contains(t, err.Error(), upn.FieldCity)

	plain := errors.New("boom")
	assert.Equal(t, plain, explain(plain))
}

func TestUpArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"compose", "-f", "dc.yml", "up", "--build", "-d", "api"},
		upArgs("dc.yml", true, false, []string{"api"}))
	assert.Equal(t,
		[]string{"compose", "-f", "dc.yml", "up"},
		upArgs("dc.yml", false, true, nil))
}
