package link

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"log/slog"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
)

type config struct {
	logger    *slog.Logger
	tlsConfig *tls.Config
	keepAlive time.Duration
	idle      time.Duration
}

// Option configures a Client or Server.
type Option func(*config)

func defaultConfig() config {
	return config{
		logger:    slog.Default(),
		keepAlive: 10 * time.Second,
		idle:      30 * time.Second,
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTLSConfig replaces the default TLS setup: a self-signed certificate
// for servers, and no certificate verification for clients.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(c *config) {
		c.tlsConfig = tlsConfig
	}
}

// WithKeepAlive sets the keep-alive period and the idle timeout after which
// a silent peer is considered gone.
func WithKeepAlive(period, idle time.Duration) Option {
	return func(c *config) {
		if period > 0 && idle > period {
			c.keepAlive = period
			c.idle = idle
		}
	}
}

func (c config) quicConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod: c.keepAlive,
		MaxIdleTimeout:  c.idle,
	}
}

func clientTLSConfig() *tls.Config {
	return &tls.Config{
		NextProtos:         []string{NextProto},
		InsecureSkipVerify: true, // servers run with self-signed certs
	}
}

// generateTLSConfig generates a self-signed certificate for QUIC
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{NextProto},
	}, nil
}
