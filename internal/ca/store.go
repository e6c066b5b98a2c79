package ca

import (
	"crypto/tls"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultStoreSize bounds the number of generated leaf certificates kept in memory.
const DefaultStoreSize = 1000

// Store caches generated leaf certificates per hostname.
// It satisfies goproxy.CertStorage.
type Store struct {
	certs *lru.Cache[string, *tls.Certificate]
}

func NewStore(size int) (*Store, error) {
	if size <= 0 {
		size = DefaultStoreSize
	}
	certs, err := lru.New[string, *tls.Certificate](size)
	if err != nil {
		return nil, err
	}
	return &Store{certs: certs}, nil
}

// Fetch returns the cached certificate for hostname or calls gen and stores
// the result. The least recently used entry is evicted once the store is full.
func (s *Store) Fetch(hostname string, gen func() (*tls.Certificate, error)) (*tls.Certificate, error) {
	if cert, ok := s.certs.Get(hostname); ok {
		return cert, nil
	}

	// Concurrent misses for the same host may both generate; the first one stored wins.
	cert, err := gen()
	if err != nil {
		return nil, err
	}
	if existing, ok, _ := s.certs.PeekOrAdd(hostname, cert); ok {
		return existing, nil
	}
	return cert, nil
}

// Len returns the number of cached certificates.
func (s *Store) Len() int {
	return s.certs.Len()
}
