package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealops/internal/batch"
)

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"assign", "propagate", "audit", "purge", "seed", "deactivate-owner", "report"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestMissingDatabaseURLFailsBeforeDataAccess(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"propagate"})
	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL")
	assert.Empty(t, out.String())
}

func TestDeactivateOwnerRequiresID(t *testing.T) {
	rootCmd.SetArgs([]string{"deactivate-owner"})
	err := rootCmd.ExecuteContext(context.Background())
	assert.Error(t, err)
}

func TestResultLines(t *testing.T) {
	var r batch.Result
	r.AddUpdated()
	r.AddFailure("crm_d9", assert.AnError)
	lines := resultLines(r)
	require.Len(t, lines, 2)
	assert.Equal(t, "updated=1 skipped=0 failed=1", lines[0])
	assert.Contains(t, lines[1], "failed crm_d9")
}
