package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHCL(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTableConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadTableConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	assert.Equal(t, DefaultTableConfig(), cfg)
}

func TestLoadTableConfig(t *testing.T) {
	path := writeHCL(t, `
table "cash" {
  small_blind    = 5
  big_blind      = 10
  starting_stack = 1000
  seats          = 3
}
`)
	cfg, err := LoadTableConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cash", cfg.Name)
	assert.Equal(t, 5, cfg.SmallBlind)
	assert.Equal(t, 10, cfg.BigBlind)
	assert.Equal(t, 1000, cfg.StartingStack)
	assert.Equal(t, 3, cfg.Seats)
}

func TestLoadTableConfigFillsDefaults(t *testing.T) {
	path := writeHCL(t, `
table "partial" {
  small_blind = 2
  big_blind   = 4
}
`)
	cfg, err := LoadTableConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.SmallBlind)
	assert.Equal(t, 4, cfg.BigBlind)
	assert.Equal(t, DefaultTableConfig().StartingStack, cfg.StartingStack)
	assert.Equal(t, DefaultTableConfig().Seats, cfg.Seats)
}

func TestLoadTableConfigFirstBlockWins(t *testing.T) {
	path := writeHCL(t, `
table "first" {
  small_blind = 1
  big_blind   = 2
}

table "second" {
  small_blind = 50
  big_blind   = 100
}
`)
	cfg, err := LoadTableConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.Name)
	assert.Equal(t, 2, cfg.BigBlind)
}

func TestLoadTableConfigEmptyFileUsesDefaults(t *testing.T) {
	cfg, err := LoadTableConfig(writeHCL(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultTableConfig(), cfg)
}

func TestLoadTableConfigMalformed(t *testing.T) {
	_, err := LoadTableConfig(writeHCL(t, `table "x" {`))
	assert.Error(t, err)
}

func TestTableConfigValidate(t *testing.T) {
	valid := TableConfig{Name: "t", SmallBlind: 1, BigBlind: 2, StartingStack: 200, Seats: 5}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*TableConfig)
	}{
		{"zero small blind", func(c *TableConfig) { c.SmallBlind = 0 }},
		{"big blind not above small", func(c *TableConfig) { c.BigBlind = 1 }},
		{"stack below big blind", func(c *TableConfig) { c.StartingStack = 1 }},
		{"too few seats", func(c *TableConfig) { c.Seats = 1 }},
		{"too many seats", func(c *TableConfig) { c.Seats = 6 }},
	}
	for _, tc := range cases {
		cfg := valid
		tc.mutate(&cfg)
		assert.Error(t, cfg.Validate(), tc.name)
	}
}
