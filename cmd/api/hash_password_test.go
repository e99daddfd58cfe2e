package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/k8s-test-service/internal/auth"
)

func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHashPassword_FromArgument(t *testing.T) {
	out, err := runRoot(t, "", "hash-password", "--cost", "4", "s3cret")
	require.NoError(t, err)

	hashed := strings.TrimSpace(out)
	assert.NoError(t, auth.ComparePassword(hashed, "s3cret"))
	cost, err := auth.HashCost(hashed)
	require.NoError(t, err)
	assert.Equal(t, 4, cost)
}

func TestHashPassword_FromStdin(t *testing.T) {
	out, err := runRoot(t, "piped\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePassword(strings.TrimSpace(out), "piped"))
}

func TestHashPassword_Rejects(t *testing.T) {
	_, err := runRoot(t, "", "hash-password", "--cost", "4")
	assert.Error(t, err)

	_, err = runRoot(t, "", "hash-password", "--cost", "99", "pw")
	assert.Error(t, err)

	_, err = runRoot(t, "", "hash-password", "a", "b")
	assert.Error(t, err)
}
