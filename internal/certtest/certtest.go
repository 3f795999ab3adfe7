// Package certtest provides certificates and a recording command runner for
// tests of the trust store packages.
package certtest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// CA is a generated self-signed root.
type CA struct {
	Certificate *x509.Certificate
	PEM         string
}

// Subject controls the generated CA's subject and serial number.
type Subject struct {
	CommonName   string
	Organization string
	Serial       int64
}

// NewCA generates a self-signed CA certificate.
func NewCA(t testing.TB, s Subject) CA {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial := big.NewInt(s.Serial)
	if s.Serial == 0 {
		serial, err = rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
		require.NoError(t, err)
		serial.Add(serial, big.NewInt(1))
	}

	name := pkix.Name{CommonName: s.CommonName}
	if s.Organization != "" {
		name.Organization = []string{s.Organization}
	}

	tpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               name,
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return CA{
		Certificate: cert,
		PEM:         string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})),
	}
}

// WriteFile writes the CA's PEM into dir/name and returns the full path.
func (ca CA) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(ca.PEM), 0o644))
	return p
}

// WriteDER writes the CA in DER form into dir/name and returns the full path.
func (ca CA) WriteDER(t testing.TB, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, ca.Certificate.Raw, 0o644))
	return p
}
