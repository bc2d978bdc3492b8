package tree

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thromel/pmemtree/pkg/pmem"
)

func writeSchemaFile(t *testing.T, keys string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(keys), 0o644))
	return path
}

func TestSchemaFromFileAndJSONRoundTrip(t *testing.T) {
	path := writeSchemaFile(t, `["region","site","sensor"]`)

	s, err := NewSchemaFromFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"region", "site", "sensor"}, s.Keys)

	str, err := s.JSONStr()
	require.NoError(t, err)

	s2, err := NewSchemaFromJSON(strings.NewReader(str))
	require.NoError(t, err)
	require.Equal(t, s.Keys, s2.Keys)
}

func TestSchemaRejectsEmpty(t *testing.T) {
	_, err := NewSchemaFromJSON(strings.NewReader("[]"))
	require.Error(t, err)
	require.True(t, pmem.IsUserError(err))
}

func TestProcessInsertKeyRejectsWrongArity(t *testing.T) {
	s := &Schema{Keys: []string{"a", "b"}}
	_, err := s.ProcessInsertKey(StringDict{"a": "1"})
	require.Error(t, err)
	require.True(t, pmem.IsUserError(err))
}

func TestProcessInsertKeyRejectsMissingKey(t *testing.T) {
	s := &Schema{Keys: []string{"a", "b"}}
	_, err := s.ProcessInsertKey(StringDict{"a": "1", "c": "2"})
	require.Error(t, err)
	require.True(t, pmem.IsUserError(err))
}

func TestProcessInsertKeyReturnsSchemaOrder(t *testing.T) {
	s := &Schema{Keys: []string{"a", "b"}}
	kv, err := s.ProcessInsertKey(StringDict{"b": "2", "a": "1"})
	require.NoError(t, err)
	require.Equal(t, []KV{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, kv)
}
