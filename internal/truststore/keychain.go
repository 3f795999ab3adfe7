package truststore

import (
	"context"
	"strings"

	"github.com/octopilot/certstore/internal/certificate"
	"github.com/octopilot/certstore/internal/runner"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const securityBin = "security"

// KeychainBackend manages a macOS keychain through the security tool. Entries
// are matched by SHA-1 fingerprint, membership by scanning the PEM dump.
type KeychainBackend struct {
	Runner   runner.Runner
	Keychain string
	Logger   *zap.Logger
}

func (b *KeychainBackend) Install(ctx context.Context, id *certificate.Identity) error {
	p, err := id.EnsurePath()
	if err != nil {
		return err
	}
	_, err = b.Runner.Run(ctx, runner.Command{
		Name:     securityBin,
		Args:     []string{"add-trusted-cert", "-d", "-r", "trustRoot", "-k", b.keychain(), p},
		Elevated: true,
	})
	return err
}

func (b *KeychainBackend) Delete(ctx context.Context, id *certificate.Identity) error {
	fingerprint, err := id.Fingerprint()
	if err != nil {
		return errors.Wrap(err, "computing fingerprint")
	}

	installed, err := b.IsInstalled(ctx, id)
	if err != nil {
		return err
	}
	if !installed {
		b.log().Debug("certificate not in keychain, nothing to delete", zap.String("fingerprint", fingerprint))
		return nil
	}

	_, err = b.Runner.Run(ctx, runner.Command{
		Name:     securityBin,
		Args:     []string{"delete-certificate", "-Z", fingerprint, b.keychain()},
		Elevated: true,
	})
	return err
}

// IsInstalled dumps every certificate visible to the security tool and looks
// for the target's PEM body in the output. A keychain other than the default
// is named explicitly, since it may not be on the search list.
func (b *KeychainBackend) IsInstalled(ctx context.Context, id *certificate.Identity) (bool, error) {
	target, err := keychainNeedle(id)
	if err != nil {
		return false, err
	}
	args := []string{"find-certificate", "-a", "-p"}
	if b.keychain() != DefaultKeychain {
		args = append(args, b.keychain())
	}
	res, err := b.Runner.Run(ctx, runner.Command{Name: securityBin, Args: args})
	if err != nil {
		return false, errors.Wrap(err, "listing keychain certificates")
	}
	dump := strings.ReplaceAll(string(res.Stdout), "\r", "")
	return strings.Contains(dump, target), nil
}

// keychainNeedle is the certificate re-encoded the way security prints it,
// so that input with different line wrapping or CRLF endings still matches.
func keychainNeedle(id *certificate.Identity) (string, error) {
	cert, err := id.Certificate()
	if err != nil {
		return "", err
	}
	pemText := strings.ReplaceAll(id.Codec().ToPEM(cert), "\r", "")
	return strings.TrimSpace(pemText), nil
}

func (b *KeychainBackend) keychain() string {
	if b.Keychain == "" {
		return DefaultKeychain
	}
	return b.Keychain
}

func (b *KeychainBackend) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
