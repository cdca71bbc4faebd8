package gateway

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// generateSelfSignedCert creates a self-signed EC certificate/key pair
// for commonName, valid for the duration of a test run.
func generateSelfSignedCert(t *testing.T, commonName string) (certPEM, keyPEM []byte) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		t.Fatalf("marshaling key: %v", err)
	}
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

// writeCertsDir lays out dir the way Config.CertificatesPath expects:
// user.crt/user.key (client keypair) and server.crt (pinned server cert).
func writeCertsDir(t *testing.T, dir string, clientCertPEM, clientKeyPEM, serverCertPEM []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "user.crt"), clientCertPEM, 0o600); err != nil {
		t.Fatalf("writing user.crt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "user.key"), clientKeyPEM, 0o600); err != nil {
		t.Fatalf("writing user.key: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "server.crt"), serverCertPEM, 0o600); err != nil {
		t.Fatalf("writing server.crt: %v", err)
	}
}
