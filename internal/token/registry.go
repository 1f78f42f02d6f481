package token

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnsupportedToken = errors.New("token: unsupported")
	ErrInvalidSymbol    = errors.New("token: invalid symbol")
)

// Token describes a supported settlement or payment asset. Amounts elsewhere
// in the system are expressed in base units of Decimals.
type Token struct {
	Symbol   string
	Decimals uint8
}

// Registry is the governance-managed set of supported tokens, injected into
// the ledger and oracle rather than read from shared global state.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

func NewRegistry(tokens ...Token) (*Registry, error) {
	r := &Registry{tokens: make(map[string]Token, len(tokens))}
	for _, t := range tokens {
		if err := r.Add(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Normalize canonicalises a token symbol for lookups.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Add registers a token. Re-adding an existing symbol replaces its metadata.
func (r *Registry) Add(t Token) error {
	symbol := Normalize(t.Symbol)
	if symbol == "" {
		return ErrInvalidSymbol
	}
	t.Symbol = symbol
	r.mu.Lock()
	r.tokens[symbol] = t
	r.mu.Unlock()
	return nil
}

// Remove drops a token from the supported set.
func (r *Registry) Remove(symbol string) {
	r.mu.Lock()
	delete(r.tokens, Normalize(symbol))
	r.mu.Unlock()
}

// Resolve returns the token metadata for a supported symbol.
func (r *Registry) Resolve(symbol string) (Token, error) {
	normalized := Normalize(symbol)
	if normalized == "" {
		return Token{}, ErrInvalidSymbol
	}
	r.mu.RLock()
	t, ok := r.tokens[normalized]
	r.mu.RUnlock()
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnsupportedToken, symbol)
	}
	return t, nil
}

// Supported reports whether the symbol is registered.
func (r *Registry) Supported(symbol string) bool {
	r.mu.RLock()
	_, ok := r.tokens[Normalize(symbol)]
	r.mu.RUnlock()
	return ok
}

// Symbols lists the registered symbols in lexical order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.tokens))
	for s := range r.tokens {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
