package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTestConfig = `{
	"trial_collection": "trial",
	"trial_identifier": "protocol_no",
	"trial_status_key": {
		"key_name": "status",
		"open_to_accrual_values": ["open to accrual"]
	},
	"ctml_collection_mappings": {
		"clinical": {
			"query_collection": "clinical",
			"id_field": "sample_id",
			"trial_key_mappings": {
				"gender": {"sample_key": "gender", "sample_value": "nomap"}
			}
		}
	},
	"projections": {
		"clinical": ["sample_id", "gender"]
	},
	"trial_match_sorting": [
		{"tier": {"1": 50}}
	]
}`

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateValidConfig(t *testing.T) {
	path := writeTestConfig(t, validTestConfig)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "configuration valid")
}

func TestValidateValidConfigJSON(t *testing.T) {
	path := writeTestConfig(t, validTestConfig)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateInvalidConfig(t *testing.T) {
	// No clinical mapping; the schema requires one parent collection.
	path := writeTestConfig(t, `{
		"trial_status_key": {"key_name": "status", "open_to_accrual_values": ["open"]},
		"ctml_collection_mappings": {},
		"projections": {},
		"trial_match_sorting": []
	}`)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "CONFIG_INVALID")
}

func TestValidateNonExistentFile(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/config.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateWithMapping(t *testing.T) {
	cfgPath := writeTestConfig(t, validTestConfig)
	mappingPath := filepath.Join(t.TempDir(), "oncotree.json")
	require.NoError(t, os.WriteFile(mappingPath, []byte(`{
		"Melanoma": ["Melanoma"]
	}`), 0o644))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{cfgPath, "--mapping", mappingPath})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), data["mapping_terms"])
}

func TestOutputFormatter_ErrorText(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Error("STORE_UNAVAILABLE", "cannot open store", nil))
	assert.Contains(t, buf.String(), "Error [STORE_UNAVAILABLE]: cannot open store")
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	f.VerboseLog("loaded %d trials", 3)
	assert.Empty(t, out.String())
	assert.Contains(t, diag.String(), "loaded 3 trials")
}
