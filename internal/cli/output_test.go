package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/schema"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"record": "20200101_000000"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONNoHTMLEscape(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success("a<b>&c"))
	assert.Contains(t, buf.String(), `"a<b>&c"`)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]any{"candidates": []string{"a", "b"}}
	err := formatter.Error("AMBIGUOUS_MATCH", "2 records match", details)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "AMBIGUOUS_MATCH", resp.Error.Code)
	assert.Equal(t, "2 records match", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	require.NoError(t, formatter.Error("RECORD_NOT_FOUND", "no record matches", map[string]string{"store": "/x"}))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [RECORD_NOT_FOUND]: no record matches")
	assert.Contains(t, errOut.String(), "Details:")
}

func TestOutputFormatter_TextErrorQuiet(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("FAILED", "boom", "hidden"))
	assert.Contains(t, buf.String(), "Error [FAILED]: boom")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Scanning %s", "ccl_data")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Scanning ccl_data")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestTable_Write(t *testing.T) {
	buf := &bytes.Buffer{}
	tbl := Table{
		Header: []string{"ID", "PARAMS"},
		Rows: [][]string{
			{"20200101_000000", `{"nside":128}`},
			{"20200101_000000_1", `{"nside":256}`},
		},
	}
	require.NoError(t, tbl.Write(buf))
	assert.Equal(t,
		"ID                 PARAMS\n"+
			"20200101_000000    {\"nside\":128}\n"+
			"20200101_000000_1  {\"nside\":256}\n",
		buf.String())

	buf.Reset()
	require.NoError(t, Table{Header: []string{"ID"}}.Write(buf))
	assert.Empty(t, buf.String())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "x"))))
}

func TestErrorCode(t *testing.T) {
	notFound := &cache.Error{Code: cache.ErrCodeRecordNotFound, Message: "no record"}
	assert.Equal(t, "RECORD_NOT_FOUND", errorCode(WrapExitError(ExitFailure, "get failed", notFound)))
	assert.Equal(t, "INVALID_PARAMS", errorCode(&schema.Error{Definition: "#CCL", Message: "bad"}))
	assert.Equal(t, "COMMAND_ERROR", errorCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, "FAILED", errorCode(errors.New("plain")))
}

func TestWrapLookupError(t *testing.T) {
	assert.Equal(t, ExitCommandError, wrapLookupError("get", &schema.Error{Message: "bad"}).Code)
	assert.Equal(t, ExitFailure, wrapLookupError("get", errors.New("io")).Code)
}
