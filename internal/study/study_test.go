package study

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const meta = `{
  "column_names_to_labels": {"GENDER": "Gender", "Q1": "Bought"},
  "variable_value_labels": {"GENDER": {"1": "Men", "2": "Women"}, "Q1": {"1": "Yes", "2": "No"}}
}`

const sidecar = `{"config": {
  "filters": [{"code": "GENDER", "values": [1]}],
  "cross_variables": [{"label": "Gender", "codes": ["GENDER"]}],
  "section_variables": []
}}`

func writeStudyFiles(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wave.csv"), []byte("GENDER,Q1\n1,1\n2,2\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wave.meta.json"), []byte(meta), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wave.sidecar.json"), []byte(sidecar), 0o644))
}

func TestSaveLoadList(t *testing.T) {
	root := t.TempDir()
	a := New("beta", "wave.csv", filepath.Join(root, "beta"))
	a.Category = "food"
	require.NoError(t, a.Save())
	b := New("alpha", "other.csv", filepath.Join(root, "alpha"))
	require.NoError(t, b.Save())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	got, err := Open(root, "beta")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "food", got.Category)
	assert.Equal(t, filepath.Join(root, "beta"), got.RootDir())

	all, err := List(root)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.Equal(t, "beta", all[1].Name)

	_, err = Open(root, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, name := range []string{"", ".", "..", "../beta", "a/b", `a\b`} {
		_, err = Open(filepath.Join(root, "alpha"), name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}

	none, err := List(filepath.Join(root, "nope"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReadAppliesSidecar(t *testing.T) {
	dir := t.TempDir()
	writeStudyFiles(t, dir)
	s := New("w", "wave.csv", dir)
	s.SidecarPath = "wave.sidecar.json"

	d, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, 2, d.Dataset.Rows(), "filter keeps men only")
	assert.Equal(t, "Bought", d.Metadata.Label("Q1"))
	cb, ok := d.Config.CrossBreak("Gender")
	require.True(t, ok)
	assert.Equal(t, []string{"GENDER"}, cb.Codes)
}

func TestReadMissingData(t *testing.T) {
	s := New("w", "nothing.csv", t.TempDir())
	_, err := s.Read()
	assert.Error(t, err)
}
