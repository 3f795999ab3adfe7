package certificate

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"strings"

	"github.com/pkg/errors"
)

const (
	pemBeginMarker = "-----BEGIN CERTIFICATE-----"
	pemBlockType   = "CERTIFICATE"
)

// ErrInvalidCertificate is returned when data cannot be decoded as an X.509 certificate.
var ErrInvalidCertificate = errors.New("invalid certificate")

// Codec turns certificate text into structured certificates and back.
type Codec interface {
	Parse(pemText string) (*x509.Certificate, error)
	ToPEM(cert *x509.Certificate) string
	SerialNumber(cert *x509.Certificate) string
	Fingerprint(der []byte) string
}

// X509Codec is the Codec backed by crypto/x509.
type X509Codec struct{}

var _ Codec = X509Codec{}

func (X509Codec) Parse(pemText string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemText)))
	if block == nil {
		return nil, errors.Wrap(ErrInvalidCertificate, "no PEM block found")
	}
	if block.Type != pemBlockType {
		return nil, errors.Wrapf(ErrInvalidCertificate, "unexpected PEM block type %q", block.Type)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidCertificate, "parse: %v", err)
	}
	return cert, nil
}

func (X509Codec) ToPEM(cert *x509.Certificate) string {
	return encodePEM(cert.Raw)
}

// SerialNumber renders the serial as lower-case hex of its big-endian bytes,
// the form certutil accepts for store lookups.
func (X509Codec) SerialNumber(cert *x509.Certificate) string {
	if cert == nil || cert.SerialNumber == nil {
		return ""
	}
	return hex.EncodeToString(cert.SerialNumber.Bytes())
}

// Fingerprint is the upper-case SHA-1 thumbprint used by keychain and certutil tooling.
func (X509Codec) Fingerprint(der []byte) string {
	sum := sha1.Sum(der)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func encodePEM(der []byte) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: pemBlockType, Bytes: der}))
}

// IsPEM reports whether s carries a PEM certificate header.
func IsPEM(s string) bool {
	return strings.Contains(s, pemBeginMarker)
}

// toPEM accepts file contents in either PEM or DER form.
func toPEM(data []byte) (string, error) {
	if IsPEM(string(data)) {
		return string(data), nil
	}
	cert, err := x509.ParseCertificate(data)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidCertificate, "neither PEM nor DER: %v", err)
	}
	return encodePEM(cert.Raw), nil
}
