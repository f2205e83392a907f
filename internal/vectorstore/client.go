// Package vectorstore keeps pre-computed embeddings in Qdrant so repeated evaluations can
// skip the encoder.
package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ricesearch/rice-eval/internal/pkg/errors"
)

const (
	// CollectionPrefix is prepended to all collection names.
	CollectionPrefix = "rice_eval_"

	// DefaultHost is the default Qdrant host.
	DefaultHost = "localhost"

	// DefaultPort is the default Qdrant gRPC port.
	DefaultPort = 6334

	// DefaultTimeout is the default operation timeout.
	DefaultTimeout = 30 * time.Second

	// payloadText is the payload key holding the embedded text.
	payloadText = "text"
)

// ClientConfig holds configuration for the Qdrant client.
type ClientConfig struct {
	Host    string
	Port    int
	APIKey  string
	UseTLS  bool
	Timeout time.Duration
}

// DefaultClientConfig returns defaults for a local Qdrant.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// Store reads and writes embeddings in one Qdrant collection.
type Store struct {
	client     *qdrant.Client
	config     ClientConfig
	collection string

	mu     sync.RWMutex
	closed bool
}

// New connects to Qdrant. collection is stored with CollectionPrefix.
func New(cfg ClientConfig, collection string) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if collection == "" {
		return nil, errors.ConfigurationError("qdrant collection name is required")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, errors.StoreError("failed to create qdrant client", err)
	}

	return &Store{
		client:     client,
		config:     cfg,
		collection: collectionName(collection),
	}, nil
}

// Close closes the client connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// HealthCheck verifies the Qdrant server is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	reply, err := s.client.HealthCheck(ctx)
	if err != nil {
		return errors.ServiceUnavailableError("qdrant").WithDetail("cause", err.Error())
	}
	if reply.GetTitle() == "" {
		return errors.StoreError("unexpected qdrant health check response", nil)
	}
	return nil
}

// Collection returns the full collection name.
func (s *Store) Collection() string {
	return s.collection
}

var errClosed = errors.StoreError("qdrant client is closed", nil)

func collectionName(name string) string {
	return CollectionPrefix + name
}

// storeErr wraps a Qdrant failure. A missing collection becomes a NotFound error.
func storeErr(op string, err error) error {
	if isNotFound(err) {
		return errors.Wrap(errors.CodeNotFound, fmt.Sprintf("qdrant %s failed: collection not found", op), err)
	}
	return errors.StoreError(fmt.Sprintf("qdrant %s failed", op), err)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
