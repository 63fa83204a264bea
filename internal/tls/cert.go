// SPDX-License-Identifier: MIT

// Package tls prepares the certificate the daemon serves HTTPS with,
// generating a self-signed pair when asked to.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 365 * 24 * time.Hour

// Config selects the certificate pair.
type Config struct {
	CertPath string
	KeyPath  string
	// SelfSigned generates the pair when either file is missing.
	SelfSigned bool
	// Hosts are extra DNS names or IPs for generated certificates.
	Hosts    []string
	Validity time.Duration
	Logger   zerolog.Logger
}

// ServerConfig returns a TLS 1.2+ server configuration for the pair in cfg,
// generating it first when cfg.SelfSigned is set and the pair is incomplete.
func ServerConfig(cfg Config) (*cryptotls.Config, error) {
	if cfg.CertPath == "" || cfg.KeyPath == "" {
		return nil, errors.New("tls: cert and key paths are required")
	}
	certOK, keyOK := fileExists(cfg.CertPath), fileExists(cfg.KeyPath)
	if !certOK || !keyOK {
		if !cfg.SelfSigned {
			return nil, fmt.Errorf("tls: certificate pair incomplete (cert=%t key=%t)", certOK, keyOK)
		}
		if certOK || keyOK {
			cfg.Logger.Warn().
				Bool("cert_exists", certOK).
				Bool("key_exists", keyOK).
				Str("event", "tls.regenerate").
				Msg("incomplete certificate pair, regenerating both")
		}
		validity := cfg.Validity
		if validity <= 0 {
			validity = DefaultValidity
		}
		if err := GenerateSelfSigned(cfg.CertPath, cfg.KeyPath, validity, cfg.Hosts); err != nil {
			return nil, err
		}
		cfg.Logger.Info().
			Str("cert", cfg.CertPath).
			Str("event", "tls.generated").
			Dur("validity", validity).
			Msg("self-signed certificate generated")
	}

	pair, err := cryptotls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("tls: load key pair: %w", err)
	}
	return &cryptotls.Config{
		MinVersion:   cryptotls.VersionTLS12,
		Certificates: []cryptotls.Certificate{pair},
	}, nil
}

// GenerateSelfSigned writes an ECDSA P-256 certificate valid for localhost
// and hosts. Both files are replaced atomically; the key is written 0600.
func GenerateSelfSigned(certPath, keyPath string, validity time.Duration, hosts []string) error {
	for _, p := range []string{certPath, keyPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return fmt.Errorf("create cert directory: %w", err)
		}
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial number: %w", err)
	}

	ips, names := subjectAltNames(hosts)
	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"mediamix self-signed"},
			CommonName:   "mediamix",
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           ips,
		DNSNames:              names,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	privBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes})
	if err := renameio.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write key: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := renameio.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	return nil
}

// subjectAltNames splits hosts into IPs and DNS names, always including
// localhost, deduplicated and in first-seen order.
func subjectAltNames(hosts []string) ([]net.IP, []string) {
	all := append([]string{"localhost", "127.0.0.1", "::1"}, hosts...)
	var ips []net.IP
	var names []string
	seen := make(map[string]bool, len(all))
	for _, h := range all {
		if h == "" {
			continue
		}
		if ip := net.ParseIP(h); ip != nil {
			h = ip.String()
			if !seen[h] {
				ips = append(ips, ip)
			}
		} else if !seen[h] {
			names = append(names, h)
		}
		seen[h] = true
	}
	return slices.Clip(ips), slices.Clip(names)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
