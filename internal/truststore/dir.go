package truststore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/octopilot/certstore/internal/certificate"
	"github.com/octopilot/certstore/internal/runner"
	"github.com/pkg/errors"
	smallstep "github.com/smallstep/truststore"
	"go.uber.org/zap"
)

// DirBackend keeps trust anchors as <name>.crt files in a directory and
// regenerates the system bundle after every change (Debian/Ubuntu layout).
type DirBackend struct {
	Dir           string
	UpdateCommand string
	Runner        runner.Runner
	Logger        *zap.Logger
}

func (b *DirBackend) Install(ctx context.Context, id *certificate.Identity) error {
	name, err := id.Name()
	if err != nil {
		return errors.Wrap(err, "deriving file name")
	}
	cert, err := id.Certificate()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(b.dir(), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", b.dir())
	}
	target := filepath.Join(b.dir(), name+".crt")
	// Written in canonical form: update-ca-certificates and the directory scan
	// both expect the file to start with the PEM header.
	if err := os.WriteFile(target, []byte(id.Codec().ToPEM(cert)), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", target)
	}
	b.log().Debug("wrote trust anchor", zap.String("path", target))

	return b.update(ctx)
}

func (b *DirBackend) Delete(ctx context.Context, id *certificate.Identity) error {
	target, err := b.find(id)
	if err != nil {
		return err
	}
	if target == "" {
		b.log().Debug("certificate not found, nothing to delete", zap.String("dir", b.dir()))
		return nil
	}
	if err := os.Remove(target); err != nil {
		return errors.Wrapf(err, "removing %s", target)
	}
	b.log().Debug("removed trust anchor", zap.String("path", target))

	return b.update(ctx)
}

func (b *DirBackend) IsInstalled(_ context.Context, id *certificate.Identity) (bool, error) {
	target, err := b.find(id)
	return target != "", err
}

// find returns the first file, in name order, whose certificate has the same
// serial number as id. It returns "" when there is none.
func (b *DirBackend) find(id *certificate.Identity) (string, error) {
	want, err := id.SerialNumber()
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(b.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "listing %s", b.dir())
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(b.dir(), e.Name())
		cert, err := smallstep.ReadCertificate(p)
		if err != nil {
			b.log().Debug("skipping unreadable file", zap.String("path", p), zap.Error(err))
			continue
		}
		if strings.EqualFold(id.Codec().SerialNumber(cert), want) {
			return p, nil
		}
	}
	return "", nil
}

func (b *DirBackend) update(ctx context.Context) error {
	fields := strings.Fields(b.UpdateCommand)
	if len(fields) == 0 {
		fields = []string{DefaultUpdateCommand}
	}
	_, err := b.Runner.Run(ctx, runner.Command{Name: fields[0], Args: fields[1:]})
	if err != nil {
		return errors.Wrap(err, "regenerating certificate bundle")
	}
	return nil
}

func (b *DirBackend) dir() string {
	if b.Dir == "" {
		return DefaultLinuxCertDir
	}
	return b.Dir
}

func (b *DirBackend) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}
