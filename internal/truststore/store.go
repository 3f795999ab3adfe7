// Package truststore installs, removes and looks up certificates in the host's
// trusted root store. Store normalizes caller input and hands it to the
// Backend for the running platform.
package truststore

import (
	"context"
	"runtime"

	"github.com/octopilot/certstore/internal/certificate"
	"github.com/octopilot/certstore/internal/runner"
	"go.uber.org/zap"
)

const (
	DefaultLinuxCertDir  = "/usr/share/ca-certificates/extra/"
	DefaultKeychain      = "/Library/Keychains/System.keychain"
	DefaultUpdateCommand = "update-ca-certificates"
)

// Config selects and parameterizes the backend.
type Config struct {
	// Platform is a GOOS value; empty or "auto" means the running one.
	Platform      string
	LinuxCertDir  string
	Keychain      string
	UpdateCommand string
	// TempDir receives scratch files for backends that need a path.
	TempDir string
}

// Store is safe for concurrent use; every call works on its own Identity.
type Store struct {
	backend Backend
	runner  runner.Runner
	codec   certificate.Codec
	tempDir string
	logger  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithBackend bypasses platform selection.
func WithBackend(b Backend) Option {
	return func(s *Store) { s.backend = b }
}

// WithRunner replaces the process runner handed to the selected backend.
func WithRunner(r runner.Runner) Option {
	return func(s *Store) { s.runner = r }
}

// WithCodec replaces the X.509 codec.
func WithCodec(c certificate.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New builds a Store whose backend is chosen once, from cfg.Platform.
func New(cfg Config, opts ...Option) *Store {
	s := &Store{
		codec:   certificate.X509Codec{},
		tempDir: cfg.TempDir,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = runner.Exec{Logger: s.logger}
	}
	if s.backend == nil {
		s.backend = NewBackend(cfg.platform(), cfg, s.runner, s.logger)
	}
	return s
}

func (c Config) platform() string {
	if c.Platform == "" || c.Platform == "auto" {
		return runtime.GOOS
	}
	return c.Platform
}

// Install adds the certificate to the trusted roots.
func (s *Store) Install(ctx context.Context, in certificate.Input) error {
	return s.do(OpInstall, in, func(id *certificate.Identity) error {
		return s.backend.Install(ctx, id)
	})
}

// Delete removes the certificate from the trusted roots. Deleting a
// certificate that is not installed succeeds.
func (s *Store) Delete(ctx context.Context, in certificate.Input) error {
	return s.do(OpDelete, in, func(id *certificate.Identity) error {
		return s.backend.Delete(ctx, id)
	})
}

// IsInstalled reports whether the certificate is among the trusted roots.
func (s *Store) IsInstalled(ctx context.Context, in certificate.Input) (bool, error) {
	var installed bool
	err := s.do(OpIsInstalled, in, func(id *certificate.Identity) error {
		var err error
		installed, err = s.backend.IsInstalled(ctx, id)
		return err
	})
	return installed, err
}

func (s *Store) do(op Op, in certificate.Input, fn func(*certificate.Identity) error) error {
	id := certificate.New(in, certificate.WithCodec(s.codec), certificate.WithTempDir(s.tempDir))
	if id.Empty() {
		return &OpError{Op: op, Err: ErrInvalidInput}
	}

	defer func() {
		if err := id.Cleanup(); err != nil {
			s.logger.Warn("temp file cleanup failed", zap.String("op", string(op)), zap.Error(err))
		}
	}()

	if err := id.Resolve(); err != nil {
		return &OpError{Op: op, Err: err}
	}

	log := s.logger.With(zap.String("op", string(op)))
	if sn, err := id.SerialNumber(); err == nil {
		log = log.With(zap.String("serial", sn))
	}
	log.Debug("running trust store operation")

	if err := fn(id); err != nil {
		log.Debug("trust store operation failed", zap.Error(err))
		return &OpError{Op: op, Err: err}
	}
	return nil
}
