package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requestJSON = `{
  "billTo": {"name": "Acme", "address": "1 Main St"},
  "items": [{"name": "Widget", "unitPrice": 200, "units": 4}],
  "invoiceNumber": "213223444",
  "invoiceDate": "2024-03-01",
  "dueDate": "2024-03-31"
}`

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestRenderCmd_File(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "request.json")
	out := filepath.Join(dir, "out.pdf")
	require.NoError(t, os.WriteFile(in, []byte(requestJSON), 0o600))

	_, stderr, err := execute(t, "", "render", in, "-o", out, "--number", "213223444-7")
	require.NoError(t, err)
	assert.Contains(t, stderr, "total 800.00")

	pdf, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestRenderCmd_StdinToStdout(t *testing.T) {
	stdout, _, err := execute(t, requestJSON, "render", "-", "-o", "-", "--uncompressed")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "%PDF-"))
	assert.Contains(t, stdout, "213223444")
}

func TestRenderCmd_InvalidRequest(t *testing.T) {
	_, _, err := execute(t, `{"billTo":{"name":"Acme","address":"x"},"items":[],"invoiceNumber":"1","invoiceDate":"yesterday","dueDate":"2024-01-01"}`,
		"render", "-", "-o", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "items")
	assert.Contains(t, err.Error(), "invoiceDate")
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "create-user", "issue-key", "render"})
}
