package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuffixedName(t *testing.T) {
	assert.Equal(t, "notes.pdf", SuffixedName("notes.pdf", 0))
	assert.Equal(t, "notes_2.pdf", SuffixedName("notes.pdf", 2))
	assert.Equal(t, "README_1", SuffixedName("README", 1))
}

func TestCreateUnique(t *testing.T) {
	dir := t.TempDir()
	name := "quiz_data_user_7_20240510_140309.csv"

	f, got, err := CreateUnique(dir, name)
	require.NoError(t, err)
	_, _ = f.WriteString("first")
	require.NoError(t, f.Close())
	assert.Equal(t, name, got)

	f, got, err = CreateUnique(dir, name)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "quiz_data_user_7_20240510_140309_1.csv", got)

	content, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "first", string(content), "never overwritten")

	_, _, err = CreateUnique(filepath.Join(dir, "missing"), name)
	assert.Error(t, err)
}
