package truststore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/octopilot/certstore/internal/certificate"
	"github.com/octopilot/certstore/internal/certtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirStore(t *testing.T) (*Store, *certtest.FakeRunner, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "extra")
	fake := &certtest.FakeRunner{}
	s := New(Config{Platform: "linux", LinuxCertDir: dir, TempDir: t.TempDir()}, WithRunner(fake))
	return s, fake, dir
}

func TestDirBackend_InstallThenIsInstalled(t *testing.T) {
	ctx := context.Background()
	s, fake, dir := newDirStore(t)
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "testsrv Root CA"})
	src := ca.WriteFile(t, t.TempDir(), "testsrv.root-ca.crt")

	installed, err := s.IsInstalled(ctx, certificate.Path(src))
	require.NoError(t, err)
	assert.False(t, installed)

	require.NoError(t, s.Install(ctx, certificate.Path(src)))

	data, err := os.ReadFile(filepath.Join(dir, "testsrv.root-ca.crt"))
	require.NoError(t, err)
	assert.Equal(t, ca.PEM, string(data))
	assert.Equal(t, []string{"update-ca-certificates"}, fake.Calls())

	installed, err = s.IsInstalled(ctx, certificate.Path(src))
	require.NoError(t, err)
	assert.True(t, installed)

	// Matching is by serial number, so PEM input finds the same file.
	installed, err = s.IsInstalled(ctx, certificate.PEM(ca.PEM))
	require.NoError(t, err)
	assert.True(t, installed)
	assert.Len(t, fake.Calls(), 1)
}

func TestDirBackend_InstallFromPEMUsesSubjectName(t *testing.T) {
	s, _, dir := newDirStore(t)
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})

	require.NoError(t, s.Install(context.Background(), certificate.PEM(ca.PEM)))
	assert.FileExists(t, filepath.Join(dir, "example-ca.crt"))
}

func TestDirBackend_InstallNormalizesPEM(t *testing.T) {
	ctx := context.Background()
	s, _, dir := newDirStore(t)
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})
	messy := "\n" + strings.ReplaceAll(ca.PEM, "\n", "\r\n")

	require.NoError(t, s.Install(ctx, certificate.PEM(messy)))

	data, err := os.ReadFile(filepath.Join(dir, "example-ca.crt"))
	require.NoError(t, err)
	assert.Equal(t, ca.PEM, string(data))

	installed, err := s.IsInstalled(ctx, certificate.PEM(messy))
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestDirBackend_InstallOverwritesSameName(t *testing.T) {
	ctx := context.Background()
	s, _, dir := newDirStore(t)
	first := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})
	second := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})

	require.NoError(t, s.Install(ctx, certificate.PEM(first.PEM)))
	require.NoError(t, s.Install(ctx, certificate.PEM(second.PEM)))

	data, err := os.ReadFile(filepath.Join(dir, "example-ca.crt"))
	require.NoError(t, err)
	assert.Equal(t, second.PEM, string(data))

	installed, err := s.IsInstalled(ctx, certificate.PEM(first.PEM))
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestDirBackend_DeleteThenIsInstalled(t *testing.T) {
	ctx := context.Background()
	s, fake, dir := newDirStore(t)
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})
	other := certtest.NewCA(t, certtest.Subject{CommonName: "Other CA"})

	require.NoError(t, s.Install(ctx, certificate.PEM(other.PEM)))
	require.NoError(t, s.Install(ctx, certificate.PEM(ca.PEM)))
	require.NoError(t, s.Delete(ctx, certificate.PEM(ca.PEM)))

	assert.NoFileExists(t, filepath.Join(dir, "example-ca.crt"))
	assert.FileExists(t, filepath.Join(dir, "other-ca.crt"))
	assert.Len(t, fake.Calls(), 3)

	installed, err := s.IsInstalled(ctx, certificate.PEM(ca.PEM))
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestDirBackend_DeleteNotInstalled(t *testing.T) {
	ctx := context.Background()
	s, fake, dir := newDirStore(t)
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})

	// Directory does not exist yet.
	require.NoError(t, s.Delete(ctx, certificate.PEM(ca.PEM)))

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, s.Delete(ctx, certificate.PEM(ca.PEM)))
	assert.Empty(t, fake.Calls())
}

func TestDirBackend_SkipsUnparsableFiles(t *testing.T) {
	ctx := context.Background()
	s, _, dir := newDirStore(t)
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a cert"), 0o644))
	require.NoError(t, s.Install(ctx, certificate.PEM(ca.PEM)))

	installed, err := s.IsInstalled(ctx, certificate.PEM(ca.PEM))
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestDirBackend_MatchesDERFiles(t *testing.T) {
	s, _, dir := newDirStore(t)
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})
	require.NoError(t, os.MkdirAll(dir, 0o755))
	ca.WriteDER(t, dir, "example.der")

	installed, err := s.IsInstalled(context.Background(), certificate.PEM(ca.PEM))
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestDirBackend_DescriptorSerialNumber(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newDirStore(t)
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA", Serial: 0xabcdef})
	other := certtest.NewCA(t, certtest.Subject{CommonName: "Other CA"})
	require.NoError(t, s.Install(ctx, certificate.PEM(ca.PEM)))

	// The explicit serial number wins over the one in the supplied PEM.
	installed, err := s.IsInstalled(ctx, certificate.Descriptor{PEM: other.PEM, SerialNumber: "ABCDEF"})
	require.NoError(t, err)
	assert.True(t, installed)
}

func TestDirBackend_UpdateFailure(t *testing.T) {
	s, fake, _ := newDirStore(t)
	fake.Default = certtest.Reply{ExitCode: 1}
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})

	err := s.Install(context.Background(), certificate.PEM(ca.PEM))
	require.Error(t, err)
	assert.ErrorIs(t, err, certtest.ErrCommandFailed)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpInstall, opErr.Op)
}

func TestDirBackend_CustomUpdateCommand(t *testing.T) {
	fake := &certtest.FakeRunner{}
	s := New(Config{
		Platform:      "linux",
		LinuxCertDir:  t.TempDir(),
		UpdateCommand: "trust extract-compat",
	}, WithRunner(fake))
	ca := certtest.NewCA(t, certtest.Subject{CommonName: "Example CA"})

	require.NoError(t, s.Install(context.Background(), certificate.PEM(ca.PEM)))
	assert.Equal(t, []string{"trust extract-compat"}, fake.Calls())
}

func TestDirBackend_NoNameIsInputError(t *testing.T) {
	s, fake, _ := newDirStore(t)
	anon := certtest.NewCA(t, certtest.Subject{})

	err := s.Install(context.Background(), certificate.PEM(anon.PEM))
	assert.ErrorIs(t, err, certificate.ErrNoName)
	assert.Empty(t, fake.Calls())
}
