package truststore

import (
	"context"

	"github.com/octopilot/certstore/internal/certificate"
	"github.com/octopilot/certstore/internal/runner"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	certutilBin   = "certutil"
	certutilStore = "root"
)

// CertutilBackend manages the current user's Root store on Windows, where
// entries are addressed by serial number.
type CertutilBackend struct {
	Runner runner.Runner
	Logger *zap.Logger
}

func (b *CertutilBackend) Install(ctx context.Context, id *certificate.Identity) error {
	p, err := id.EnsurePath()
	if err != nil {
		return err
	}
	_, err = b.Runner.Run(ctx, runner.Command{
		Name: certutilBin,
		Args: []string{"-addstore", "-user", "-f", certutilStore, p},
	})
	return err
}

// Delete verifies first so that an absent certificate is a no-op. Once the
// serial number is known to be present, a failing -delstore is a hard error.
func (b *CertutilBackend) Delete(ctx context.Context, id *certificate.Identity) error {
	installed, err := b.IsInstalled(ctx, id)
	if err != nil {
		return err
	}
	if !installed {
		b.log().Debug("certificate not in store, nothing to delete")
		return nil
	}

	sn, err := id.SerialNumber()
	if err != nil {
		return err
	}
	_, err = b.Runner.Run(ctx, runner.Command{
		Name: certutilBin,
		Args: []string{"-delstore", "-user", certutilStore, sn},
	})
	return err
}

// IsInstalled treats any failure of -verifystore as "not installed": certutil
// exits nonzero whenever the serial number is absent.
func (b *CertutilBackend) IsInstalled(ctx context.Context, id *certificate.Identity) (bool, error) {
	sn, err := id.SerialNumber()
	if err != nil {
		return false, errors.Wrap(err, "resolving serial number")
	}
	_, err = b.Runner.Run(ctx, runner.Command{
		Name: certutilBin,
		Args: []string{"-verifystore", "-user", certutilStore, sn},
	})
	if err != nil {
		b.log().Debug("verifystore failed, treating as not installed", zap.String("serial", sn), zap.Error(err))
		return false, nil
	}
	return true, nil
}

func (b *CertutilBackend) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
