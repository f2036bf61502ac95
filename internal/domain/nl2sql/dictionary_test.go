package nl2sql

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDescribeDictionary(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "dict.csv", "\ufeffColumn Header,Business Header,Definition,Example\n"+
		"county,County,\"County where the vehicle is registered\",King\n"+
		"base_msrp,Base MSRP,Lowest manufacturer suggested retail price,84999\n")

	got := DescribeDictionary(path)
	assert.True(t, strings.HasPrefix(got, "This is the data dictionary."))
	assert.Contains(t, got, "- Column 'county' (also called 'County'): County where the vehicle is registered. Example: King\n")
	assert.Contains(t, got, "- Column 'base_msrp' (also called 'Base MSRP')")
}

func TestDescribeDictionary_MissingFile(t *testing.T) {
	t.Parallel()

	got := DescribeDictionary(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Equal(t, "Data dictionary file not found. Proceeding without it.", got)
}

func TestDescribeDictionary_MissingColumn(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "dict.csv", "Column Header,Definition\ncounty,County\n")
	got := DescribeDictionary(path)
	assert.True(t, strings.HasPrefix(got, "Error reading data dictionary: "), got)
	assert.Contains(t, got, "Business Header")
}

func TestDescribeDictionary_Directory(t *testing.T) {
	t.Parallel()

	got := DescribeDictionary(t.TempDir())
	assert.True(t, strings.HasPrefix(got, "Error reading data dictionary: "), got)
}

func TestDescribeDictionary_BundledFile(t *testing.T) {
	t.Parallel()

	got := DescribeDictionary(filepath.Join("..", "..", "..", "data", "data_dictionary.csv"))
	assert.Contains(t, got, "- Column 'county'")
	assert.Contains(t, got, "- Column 'base_msrp'")
}
