package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"entitysvc/core"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const entitiesYAML = `
service: testcenter
entities:
  - name: country
    fields:
      - name: code
        type: string
        unique: true
        required: true
  - name: user
    table: users
    fields:
      - name: name
        type: string
        unique: true
      - name: age
        type: integer
      - name: country
        kind: relation
        related_type: country
`

// setupEnv points the CLI at a temporary metadata file and database
func setupEnv(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	metaFile := filepath.Join(dir, "entities.yaml")
	require.NoError(t, os.WriteFile(metaFile, []byte(entitiesYAML), 0o644))

	t.Setenv("ENTITYSVC_STORAGE_DRIVER", "sqlite")
	t.Setenv("ENTITYSVC_DATA_DIR", dir)
	t.Setenv("ENTITYSVC_SQLITE_PATH", filepath.Join(dir, "entitysvc.db"))
	t.Setenv("ENTITYSVC_METADATA_FILE", metaFile)
}

// run executes the root command and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--no-color", "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

// runJSON executes the root command with --json and decodes the result
func runJSON(t *testing.T, args ...string) map[string]any {
	t.Helper()
	out, err := run(t, append([]string{"--json"}, args...)...)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	return doc
}

func TestRootCmd_Structure(t *testing.T) {
	root := NewRootCmd()
	assert.Equal(t, "entitysvc", root.Use)

	for _, name := range []string{"json", "yaml", "config", "no-color", "quiet", "log-level", "permissive"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing persistent flag %s", name)
	}

	subcommands := make(map[string]bool)
	for _, c := range root.Commands() {
		subcommands[c.Name()] = true
	}
	for _, name := range []string{"exec", "describe", "schema"} {
		assert.True(t, subcommands[name], "missing subcommand %s", name)
	}

	exec, _, err := root.Find([]string{"exec"})
	require.NoError(t, err)
	for _, name := range []string{"param", "id", "name", "filter", "sort", "limit"} {
		assert.NotNil(t, exec.Flags().Lookup(name), "missing exec flag %s", name)
	}
}

func TestRootCmd_JSONAndYAMLExclusive(t *testing.T) {
	_, err := run(t, "--json", "--yaml", "describe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr string
	}{
		{name: "empty", pairs: nil, want: map[string]any{}},
		{name: "pairs", pairs: []string{"name=ana", "age=31"}, want: map[string]any{"name": "ana", "age": "31"}},
		{name: "value with equals", pairs: []string{"note=a=b"}, want: map[string]any{"note": "a=b"}},
		{name: "empty value", pairs: []string{"country="}, want: map[string]any{"country": ""}},
		{name: "missing separator", pairs: []string{"name"}, wantErr: "expected key=value"},
		{name: "missing key", pairs: []string{"=x"}, wantErr: "expected key=value"},
		{name: "duplicate", pairs: []string{"a=1", "a=2"}, wantErr: "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecFlags_Parameters(t *testing.T) {
	f := &execFlags{id: "42", name: "ana", filter: "age > 1", sort: "name", limit: 3}

	read, err := f.parameters(core.ActionRead)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{core.KeyID: "42", core.KeyName: "ana"}, read)

	list, err := f.parameters(core.ActionList)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{core.KeyFilter: "age > 1", core.KeySort: "name", core.KeyLimit: 3}, list)

	create, err := f.parameters(core.ActionCreate)
	require.NoError(t, err)
	assert.Empty(t, create)

	_, err = (&execFlags{}).parameters(core.ActionDelete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires --id")
}

func TestExec_EndToEnd(t *testing.T) {
	setupEnv(t)

	country := runJSON(t, "exec", "country:testcenter", "create", "--param", "code=PT")
	countryID := country["entity"].(map[string]any)["id"].(string)
	require.NotEmpty(t, countryID)

	created := runJSON(t, "exec", "user:testcenter", "Create",
		"--param", "name=ana", "--param", "age=31", "--param", "country="+countryID)
	user := created["entity"].(map[string]any)
	assert.Equal(t, "Create", created["action"])
	assert.Equal(t, "user:testcenter", user["_type"])
	assert.Equal(t, float64(31), user["age"])
	assert.Equal(t, countryID, user["country"])
	userID := user["id"].(string)

	read := runJSON(t, "exec", "user:testcenter", "Read", "--name", "ana")
	assert.Equal(t, userID, read["entity"].(map[string]any)["id"])

	updated := runJSON(t, "exec", "user:testcenter", "Update", "--id", userID, "--param", "age=32")
	assert.Equal(t, float64(32), updated["entity"].(map[string]any)["age"])

	runJSON(t, "exec", "user:testcenter", "Create", "--param", "name=bruno", "--param", "age=45")

	list := runJSON(t, "exec", "user:testcenter", "List", "--filter", "age > 40 or name = 'ana'", "--sort", "!age")
	entities := list["entities"].([]any)
	require.Len(t, entities, 2)
	assert.Equal(t, "bruno", entities[0].(map[string]any)["name"])

	count := runJSON(t, "exec", "user:testcenter", "Count", "--filter", "country = '"+countryID+"'")
	assert.Equal(t, float64(1), count["count"])

	deleted := runJSON(t, "exec", "user:testcenter", "Delete", "--id", userID)
	assert.Equal(t, true, deleted["deleted"])

	_, err := run(t, "exec", "user:testcenter", "Read", "--id", userID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestExec_Errors(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "exec", "user:testcenter", "Frobnicate")
	assert.ErrorIs(t, err, core.ErrUnknownAction)

	_, err = run(t, "exec", "user:testcenter", "Create", "--param", "height=2")
	assert.ErrorIs(t, err, core.ErrUnknownField)

	_, err = run(t, "--permissive", "exec", "user:testcenter", "Create", "--param", "name=ana", "--param", "height=2")
	assert.NoError(t, err)

	_, err = run(t, "exec", "planet:testcenter", "List")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "planet:testcenter")
}

func TestExec_TextOutput(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "exec", "country:testcenter", "Create", "--param", "code=PT")
	require.NoError(t, err)
	_, err = run(t, "exec", "country:testcenter", "Create", "--param", "code=ES")
	require.NoError(t, err)

	out, err := run(t, "exec", "country:testcenter", "List", "--sort", "code")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "ES")
	assert.Contains(t, lines[2], "PT")
	assert.Equal(t, "2 row(s)", lines[3])

	out, err = run(t, "exec", "country:testcenter", "Count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestDescribe(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "--json", "describe")
	require.NoError(t, err)
	var keys []string
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	assert.Equal(t, []string{"country:testcenter", "user:testcenter"}, keys)

	out, err = run(t, "--yaml", "describe", "user:testcenter")
	require.NoError(t, err)
	var desc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &desc))
	assert.Equal(t, "user", desc["name"])
	assert.Equal(t, "users", desc["table"])

	out, err = run(t, "describe", "user:testcenter")
	require.NoError(t, err)
	assert.Contains(t, out, "user:testcenter (table users)")
	assert.Contains(t, out, "-> country:testcenter")
}

func TestSchema(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "schema", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "users"`)
	assert.Contains(t, out, `REFERENCES "country"("id")`)

	out, err = run(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema applied for 2 entity type(s)")

	out, err = run(t, "--json", "schema")
	require.NoError(t, err)
	assert.JSONEq(t, `{"applied":["country:testcenter","user:testcenter"]}`, out)
}
