// Package refdata defines the interface to the instrument reference-data
// collaborator and ships an in-memory implementation for tests and scenarios.
package refdata

import (
	"sync"

	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// Repository resolves instrument reference data.
type Repository interface {
	// ByID returns the instrument with the given id.
	ByID(id int) (types.Instrument, error)
	// BySymbol returns the instrument with the given symbol.
	BySymbol(symbol string) (types.Instrument, error)
}

// Static is a concurrency-safe in-memory Repository.
type Static struct {
	mu       sync.RWMutex
	byID     map[int]types.Instrument
	bySymbol map[string]types.Instrument
}

// NewStatic creates an empty Static repository.
func NewStatic() *Static {
	return &Static{
		byID:     make(map[int]types.Instrument),
		bySymbol: make(map[string]types.Instrument),
	}
}

// Add registers an instrument. Both id and symbol must be unused.
func (s *Static) Add(inst types.Instrument) error {
	if inst.Symbol == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "instrument symbol is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[inst.ID]; ok {
		return errors.Newf(errors.ErrCodeInstrumentExists, "instrument id %d already registered", inst.ID)
	}

	if _, ok := s.bySymbol[inst.Symbol]; ok {
		return errors.Newf(errors.ErrCodeInstrumentExists, "instrument symbol %q already registered", inst.Symbol)
	}

	s.byID[inst.ID] = inst
	s.bySymbol[inst.Symbol] = inst

	return nil
}

// ByID implements Repository.
func (s *Static) ByID(id int) (types.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.byID[id]
	if !ok {
		return types.Instrument{}, errors.Newf(errors.ErrCodeInstrumentNotFound, "instrument id %d not found", id)
	}

	return inst, nil
}

// BySymbol implements Repository.
func (s *Static) BySymbol(symbol string) (types.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.bySymbol[symbol]
	if !ok {
		return types.Instrument{}, errors.Newf(errors.ErrCodeInstrumentNotFound, "instrument %q not found", symbol)
	}

	return inst, nil
}
