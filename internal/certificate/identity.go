// Package certificate normalizes the different ways a caller can hand over a
// certificate (path, PEM text, descriptor, parsed certificate) into a single
// Identity that trust store backends operate on.
package certificate

import (
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrNoName is returned when neither the path nor the subject yields a name.
	ErrNoName = errors.New("cannot derive certificate name")
	// ErrNoSerialNumber is returned when no serial number was supplied or parsed.
	ErrNoSerialNumber = errors.New("cannot derive certificate serial number")
	// ErrNoPEM is returned when an operation needs certificate contents and there are none.
	ErrNoPEM = errors.New("certificate contents are not available")
)

// derivationError reports which derived field failed while keeping the
// underlying failure as its cause.
type derivationError struct {
	field error
	cause error
}

func derivationFailed(field, cause error) error {
	return &derivationError{field: field, cause: cause}
}

func (e *derivationError) Error() string { return e.field.Error() + ": " + e.cause.Error() }

func (e *derivationError) Is(target error) bool { return target == e.field }

func (e *derivationError) Cause() error { return e.cause }

func (e *derivationError) Unwrap() error { return e.cause }

var (
	recognizedExtensions = []string{".crt", ".cer", ".pem"}
	nonWordRuns          = regexp.MustCompile(`\W+`)
)

// Identity is one certificate regardless of how it was supplied. It is built
// per operation and must not be shared between goroutines.
type Identity struct {
	// Path is the certificate file given by the caller, if any.
	Path string
	// PEM is the certificate text. Once set it is never replaced.
	PEM string
	// TempPath is a scratch file holding PEM, created by EnsurePath.
	TempPath string

	codec   Codec
	tempDir string

	serialNumber string

	name     string
	nameErr  error
	nameDone bool

	cert     *x509.Certificate
	certErr  error
	certDone bool
}

// Option configures an Identity.
type Option func(*Identity)

// WithCodec replaces the default X509Codec.
func WithCodec(c Codec) Option {
	return func(id *Identity) { id.codec = c }
}

// WithTempDir sets where EnsurePath creates scratch files.
func WithTempDir(dir string) Option {
	return func(id *Identity) { id.tempDir = dir }
}

// New normalizes in. A nil input yields an empty identity, which fails
// validation.
func New(in Input, opts ...Option) *Identity {
	id := &Identity{codec: X509Codec{}}
	for _, o := range opts {
		o(id)
	}

	switch v := in.(type) {
	case Path:
		id.Path = string(v)
	case PEM:
		id.PEM = string(v)
	case Descriptor:
		id.Path = v.Path
		id.PEM = v.PEM
		id.serialNumber = v.SerialNumber
	case Parsed:
		if v.Certificate != nil {
			id.PEM = id.codec.ToPEM(v.Certificate)
			id.cert = v.Certificate
			id.certDone = true
		}
	}
	return id
}

// Codec returns the codec used to derive fields of this identity.
func (id *Identity) Codec() Codec {
	return id.codec
}

// Empty reports whether neither a path nor PEM contents were supplied.
func (id *Identity) Empty() bool {
	return id.Path == "" && id.PEM == ""
}

// EnsureLoaded reads Path into PEM when PEM is not set yet.
func (id *Identity) EnsureLoaded() error {
	if id.PEM != "" || id.Path == "" {
		return nil
	}
	data, err := os.ReadFile(id.Path)
	if err != nil {
		return errors.Wrapf(err, "reading certificate %s", id.Path)
	}
	pemText, err := toPEM(data)
	if err != nil {
		return errors.Wrapf(err, "decoding certificate %s", id.Path)
	}
	id.PEM = pemText
	return nil
}

// Resolve loads the contents and parses the certificate so that derived
// fields are available before a backend runs.
func (id *Identity) Resolve() error {
	if err := id.EnsureLoaded(); err != nil {
		return err
	}
	_, err := id.Certificate()
	return err
}

// Certificate returns the parsed certificate, parsing PEM at most once.
func (id *Identity) Certificate() (*x509.Certificate, error) {
	if id.certDone {
		return id.cert, id.certErr
	}
	if err := id.EnsureLoaded(); err != nil {
		return nil, err
	}
	if id.PEM == "" {
		return nil, ErrNoPEM
	}
	id.cert, id.certErr = id.codec.Parse(id.PEM)
	id.certDone = true
	return id.cert, id.certErr
}

// SerialNumber returns the supplied serial number, or the one parsed from the
// certificate.
func (id *Identity) SerialNumber() (string, error) {
	if id.serialNumber != "" {
		return id.serialNumber, nil
	}
	cert, err := id.Certificate()
	if err != nil {
		return "", derivationFailed(ErrNoSerialNumber, err)
	}
	sn := id.codec.SerialNumber(cert)
	if sn == "" {
		return "", ErrNoSerialNumber
	}
	id.serialNumber = sn
	return sn, nil
}

// Name returns the label used for on-disk file names: the file name without
// its certificate extension, or the subject CN (then O) slugified.
func (id *Identity) Name() (string, error) {
	if !id.nameDone {
		id.name, id.nameErr = id.deriveName()
		id.nameDone = true
	}
	return id.name, id.nameErr
}

func (id *Identity) deriveName() (string, error) {
	if id.Path != "" {
		if name := nameFromPath(id.Path); name != "" {
			return name, nil
		}
	}
	cert, err := id.Certificate()
	if err != nil {
		return "", derivationFailed(ErrNoName, err)
	}
	labels := []string{cert.Subject.CommonName}
	if len(cert.Subject.Organization) > 0 {
		labels = append(labels, cert.Subject.Organization[0])
	}
	for _, label := range labels {
		if name := slugify(label); name != "" {
			return name, nil
		}
	}
	return "", ErrNoName
}

func nameFromPath(p string) string {
	base := filepath.Base(p)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, known := range recognizedExtensions {
		if ext == known && len(base) > len(ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return base
}

func slugify(s string) string {
	s = nonWordRuns.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// Fingerprint hashes the DER bytes of the parsed certificate.
func (id *Identity) Fingerprint() (string, error) {
	cert, err := id.Certificate()
	if err != nil {
		return "", err
	}
	return id.codec.Fingerprint(cert.Raw), nil
}

// EnsurePath returns a filesystem path holding the certificate. When only PEM
// contents are known a uniquely named scratch file is written; Cleanup removes it.
func (id *Identity) EnsurePath() (string, error) {
	if id.Path != "" {
		return id.Path, nil
	}
	if id.TempPath != "" {
		return id.TempPath, nil
	}
	if id.PEM == "" {
		return "", ErrNoPEM
	}

	dir := id.tempDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("temp-%d-%s.crt", time.Now().UnixNano(), uuid.NewString())
	p := filepath.Join(dir, name)

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", errors.Wrap(err, "creating temp certificate file")
	}
	id.TempPath = p
	if _, err := f.WriteString(id.PEM); err != nil {
		f.Close()
		return "", errors.Wrap(err, "writing temp certificate file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "closing temp certificate file")
	}
	return p, nil
}

// Cleanup removes the scratch file created by EnsurePath, if any.
func (id *Identity) Cleanup() error {
	if id.TempPath == "" {
		return nil
	}
	p := id.TempPath
	id.TempPath = ""
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing temp certificate file %s", p)
	}
	return nil
}
