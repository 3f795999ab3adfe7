package certificate

import "crypto/x509"

// Input is one of Path, PEM, Descriptor or Parsed.
type Input interface {
	isInput()
}

// Path is a filesystem location of a certificate file (PEM or DER).
type Path string

// PEM is certificate text carrying a BEGIN CERTIFICATE block.
type PEM string

// Descriptor carries whichever fields the caller already knows.
type Descriptor struct {
	Path         string
	PEM          string
	SerialNumber string
}

// Parsed wraps a certificate that has already been decoded.
type Parsed struct {
	Certificate *x509.Certificate
}

func (Path) isInput()       {}
func (PEM) isInput()        {}
func (Descriptor) isInput() {}
func (Parsed) isInput()     {}

// FromString classifies s as PEM text when it contains the certificate
// header, and as a path otherwise.
func FromString(s string) Input {
	if IsPEM(s) {
		return PEM(s)
	}
	return Path(s)
}

// FromBytes decodes b as a string and classifies it like FromString.
func FromBytes(b []byte) Input {
	return FromString(string(b))
}
