// Package cert выпускает самоподписанный TLS-сертификат для локального запуска по HTTPS.
package cert

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sol1corejz/imgify/internal/logger"
)

// Generate создаёт сертификат и приватный ключ в формате PEM.
func Generate(bits int) ([]byte, []byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, nil, fmt.Errorf("serial number: %w", err)
	}

	// создаём шаблон сертификата
	cert := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Imgify"},
			CommonName:   "localhost",
		},
		// разрешаем использование сертификата для localhost, 127.0.0.1 и ::1
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		NotBefore:   time.Now().Add(-time.Minute),
		// время жизни сертификата — 1 год
		NotAfter:    time.Now().AddDate(1, 0, 0),
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, cert, cert, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}

	var certPEM bytes.Buffer
	if err := pem.Encode(&certPEM, &pem.Block{Type: "CERTIFICATE", Bytes: certBytes}); err != nil {
		return nil, nil, err
	}

	var privateKeyPEM bytes.Buffer
	if err := pem.Encode(&privateKeyPEM, &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}); err != nil {
		return nil, nil, err
	}

	return certPEM.Bytes(), privateKeyPEM.Bytes(), nil
}

// Exists проверяет существование сертификата и ключа.
func Exists(certFile, keyFile string) bool {
	_, certErr := os.Stat(certFile)
	_, keyErr := os.Stat(keyFile)
	return certErr == nil && keyErr == nil
}

// Save сохраняет сертификат и ключ в файлы.
func Save(certFile, keyFile string, certPEM, keyPEM []byte) error {
	if err := os.WriteFile(certFile, certPEM, 0600); err != nil {
		return err
	}
	return os.WriteFile(keyFile, keyPEM, 0600)
}

// Ensure выпускает и сохраняет сертификат, если файлов ещё нет.
func Ensure(certFile, keyFile string) error {
	if Exists(certFile, keyFile) {
		logger.Log.Info("Loading existing TLS certificate", zap.String("cert", certFile))
		return nil
	}

	logger.Log.Info("Generating new TLS certificate", zap.String("cert", certFile))
	certPEM, keyPEM, err := Generate(2048)
	if err != nil {
		return err
	}
	return Save(certFile, keyFile, certPEM, keyPEM)
}
