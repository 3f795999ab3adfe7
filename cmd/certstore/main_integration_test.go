//go:build integration

package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/octopilot/certstore/internal/certtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The binary path is provided via CERTSTORE_BINARY, e.g. after `go build -o dist/certstore ./cmd/certstore`.
func requireBinary(t *testing.T) string {
	t.Helper()
	bin := os.Getenv("CERTSTORE_BINARY")
	if bin == "" {
		t.Skip("CERTSTORE_BINARY env var not set")
	}
	abs, err := filepath.Abs(bin)
	require.NoError(t, err)
	return abs
}

func certstore(t *testing.T, bin string, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	t.Logf("certstore %s\n%s", strings.Join(args, " "), out)
	return string(out), err
}

func TestIntegration_DirectoryStore(t *testing.T) {
	bin := requireBinary(t)
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not found, skipping")
	}

	certDir := filepath.Join(t.TempDir(), "extra")
	env := []string{
		"HOME=" + t.TempDir(),
		"CERTSTORE_PLATFORM=linux",
		"CERTSTORE_LINUX_CERT_DIR=" + certDir,
		"CERTSTORE_UPDATE_COMMAND=true",
	}
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "testsrv Root CA"})
	p := ca.WriteFile(t, t.TempDir(), "testsrv.root-ca.crt")

	out, err := certstore(t, bin, env, "status", p)
	require.NoError(t, err)
	assert.Equal(t, "not installed", strings.TrimSpace(out))

	_, err = certstore(t, bin, env, "install", p)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(certDir, "testsrv.root-ca.crt"))

	out, err = certstore(t, bin, env, "status", p)
	require.NoError(t, err)
	assert.Equal(t, "installed", strings.TrimSpace(out))

	_, err = certstore(t, bin, env, "delete", p)
	require.NoError(t, err)

	out, err = certstore(t, bin, env, "status", p)
	require.NoError(t, err)
	assert.Equal(t, "not installed", strings.TrimSpace(out))
}

func TestIntegration_FailureExitCode(t *testing.T) {
	bin := requireBinary(t)

	out, err := certstore(t, bin, []string{"HOME=" + t.TempDir()}, "install", filepath.Join(t.TempDir(), "missing.crt"))
	require.Error(t, err)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, out, "couldn't install certificate")
}
