package util

import (
	"sync"

	"github.com/dolthub/swiss"
)

// SwissSet is a concurrency safe set of 32 byte hashes.
type SwissSet struct {
	mu     sync.Mutex
	m      *swiss.Map[[32]byte, struct{}]
	length int
}

func NewSwissSet(length int) *SwissSet {
	if length < 0 {
		length = 0
	}

	return &SwissSet{
		m: swiss.NewMap[[32]byte, struct{}](uint32(length)), //nolint:gosec
	}
}

func (s *SwissSet) Exists(hash [32]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.m.Get(hash)

	return ok
}

// Put adds the hash and reports whether it was not already present.
func (s *SwissSet) Put(hash [32]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.m.Get(hash); ok {
		return false
	}

	s.m.Put(hash, struct{}{})
	s.length++

	return true
}

func (s *SwissSet) Length() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.length
}
