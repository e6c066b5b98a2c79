// Package ca loads the certificate authority used to sign MITM leaf certificates.
package ca

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ExpiryWarning is how long before expiry Load starts warning.
const ExpiryWarning = 30 * 24 * time.Hour

var (
	ErrExpired     = errors.New("certificate authority has expired")
	ErrNotYetValid = errors.New("certificate authority is not valid yet")
)

// Load reads a PEM encoded key pair and checks its validity window.
// The returned certificate has Leaf set.
func Load(keyPath, certPath string, logger *zap.Logger) (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA key pair: %w", err)
	}
	if err := Check(&cert, time.Now(), logger); err != nil {
		return nil, err
	}
	return &cert, nil
}

// Check parses the leaf if needed and validates it against now.
func Check(cert *tls.Certificate, now time.Time, logger *zap.Logger) error {
	if cert.Leaf == nil {
		if len(cert.Certificate) == 0 {
			return errors.New("certificate authority has no certificate")
		}
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return fmt.Errorf("failed to parse CA certificate: %w", err)
		}
		cert.Leaf = leaf
	}

	leaf := cert.Leaf
	switch {
	case now.After(leaf.NotAfter):
		return fmt.Errorf("%w on %s", ErrExpired, leaf.NotAfter.Format(time.RFC3339))
	case now.Before(leaf.NotBefore):
		return fmt.Errorf("%w until %s", ErrNotYetValid, leaf.NotBefore.Format(time.RFC3339))
	}

	if !leaf.IsCA {
		logger.Warn("Certificate is not marked as a CA, clients may reject generated certificates",
			zap.String("subject", leaf.Subject.String()))
	}
	if remaining := leaf.NotAfter.Sub(now); remaining < ExpiryWarning {
		logger.Warn("Certificate authority expires soon",
			zap.String("subject", leaf.Subject.String()),
			zap.Time("expires_at", leaf.NotAfter),
			zap.Duration("remaining", remaining))
	}
	return nil
}
