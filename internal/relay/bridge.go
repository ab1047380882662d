package relay

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/syncroom/collab-platform/pkg/logger"
)

// BridgeConfig holds NATS connection settings for the cross-instance
// bridge.
type BridgeConfig struct {
	URL      string
	Subject  string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// Bridge fans frames across relay instances over core NATS so clients on
// different relays see the same stream.
type Bridge struct {
	conn    *nats.Conn
	subject string
	sub     *nats.Subscription
	log     *logger.Logger
}

// ConnectBridge connects to NATS and subscribes the hub to the bridge
// subject.
func ConnectBridge(cfg BridgeConfig, hub *Hub, log *logger.Logger) (*Bridge, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("NATS error", "error", err)
		}),
	}

	if cfg.CAFile != "" && cfg.CertFile != "" && cfg.KeyFile != "" {
		tlsConfig, err := createTLSConfig(cfg.CAFile, cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	b := &Bridge{conn: nc, subject: cfg.Subject, log: log}
	sub, err := nc.Subscribe(cfg.Subject, func(msg *nats.Msg) {
		hub.BroadcastFromBridge(msg.Data)
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Subject, err)
	}
	b.sub = sub
	return b, nil
}

// Publish forwards a locally-originated frame to peer relays.
func (b *Bridge) Publish(data []byte) error {
	return b.conn.Publish(b.subject, data)
}

// IsConnected reports bridge health for readiness checks.
func (b *Bridge) IsConnected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

// Close drains the subscription and closes the connection.
func (b *Bridge) Close() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}

func createTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert: %w", err)
	}

	return &tls.Config{
		RootCAs:      caCertPool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
