package truststore

import (
	"context"

	"github.com/octopilot/certstore/internal/certificate"
	"github.com/octopilot/certstore/internal/runner"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Backend manipulates one platform's trust anchor set.
type Backend interface {
	// Install adds the certificate. Installing an already present certificate
	// overwrites it.
	Install(ctx context.Context, id *certificate.Identity) error
	// Delete removes the certificate. A certificate that is not installed is
	// not an error.
	Delete(ctx context.Context, id *certificate.Identity) error
	// IsInstalled reports whether the certificate is currently trusted.
	IsInstalled(ctx context.Context, id *certificate.Identity) (bool, error)
}

// Platform identifies a family of trust store mechanisms.
type Platform string

const (
	PlatformLinux   Platform = "linux"
	PlatformWindows Platform = "windows"
	PlatformDarwin  Platform = "darwin"
)

// noExec lists GOOS values where trust store utilities cannot be spawned.
var noExec = map[string]bool{
	"js":      true,
	"wasip1":  true,
	"ios":     true,
	"android": true,
}

// NewBackend returns the backend for a GOOS value. Anything that is neither
// Windows nor macOS gets the directory convention.
func NewBackend(goos string, cfg Config, r runner.Runner, log *zap.Logger) Backend {
	switch {
	case goos == string(PlatformWindows):
		return &CertutilBackend{Runner: r, Logger: log}
	case goos == string(PlatformDarwin):
		return &KeychainBackend{Runner: r, Keychain: cfg.Keychain, Logger: log}
	case noExec[goos]:
		return unsupportedBackend{platform: goos}
	default:
		return &DirBackend{Dir: cfg.LinuxCertDir, UpdateCommand: cfg.UpdateCommand, Runner: r, Logger: log}
	}
}

type unsupportedBackend struct {
	platform string
}

func (b unsupportedBackend) Install(context.Context, *certificate.Identity) error {
	return b.err()
}

func (b unsupportedBackend) Delete(context.Context, *certificate.Identity) error {
	return b.err()
}

func (b unsupportedBackend) IsInstalled(context.Context, *certificate.Identity) (bool, error) {
	return false, b.err()
}

func (b unsupportedBackend) err() error {
	return errors.Wrap(ErrNotImplemented, b.platform)
}
