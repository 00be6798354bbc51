package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteList(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"single", []string{"BU1"}, "'BU1'"},
		{"multiple", []string{"BU1", "BU2", "BU3"}, "'BU1','BU2','BU3'"},
		{"empty entries stripped", []string{"BU1", "", "BU2", ""}, "'BU1','BU2'"},
		{"all empty", []string{"", ""}, ""},
		{"nil", nil, ""},
		{"embedded quote escaped", []string{"O'BU"}, "'O''BU'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteList(tt.values))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"BU1", "BU2", "BU3"}, SplitList("BU1, BU2 ,BU3"))
	assert.Equal(t, []string{"TRAX"}, SplitList(",TRAX,,"))
	assert.Nil(t, SplitList(""))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			WatchRoot:      "in",
			ArchiveDir:     "arc",
			ErrorDir:       "err",
			Extensions:     []string{".csv"},
			RetryThreshold: 3,
			PollInterval:   time.Second,
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.WatchRoot = ""
	assert.Error(t, c.Validate())

	c = base()
	c.RetryThreshold = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Concurrent = true
	c.MaxConcurrentFiles = 0
	assert.Error(t, c.Validate())
}

func TestAllowsBusinessUnit(t *testing.T) {
	c := &Config{BusinessUnits: []string{"BU1", "BU2"}}
	assert.True(t, c.AllowsBusinessUnit("BU1"))
	assert.False(t, c.AllowsBusinessUnit("BU9"))
	assert.False(t, c.AllowsBusinessUnit(""))
}

func TestAcceptsExtension(t *testing.T) {
	c := &Config{Extensions: []string{".csv", ".dat", ".xml"}}
	assert.True(t, c.AcceptsExtension(".csv"))
	assert.True(t, c.AcceptsExtension(".CSV"))
	assert.False(t, c.AcceptsExtension(".pdf"))
}
