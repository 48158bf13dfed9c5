package domain

import (
	"fmt"
	"strings"
)

// Pair identifies a token pair as traded on a venue: TokenIn is spent,
// TokenOut is received.
type Pair struct {
	TokenIn  string
	TokenOut string
}

// ParsePair parses a "WETH/USDC" style symbol into a Pair.
func ParsePair(symbol string) (Pair, error) {
	parts := strings.Split(strings.TrimSpace(symbol), "/")
	if len(parts) != 2 {
		return Pair{}, fmt.Errorf("domain: malformed pair %q", symbol)
	}
	in := strings.ToUpper(strings.TrimSpace(parts[0]))
	out := strings.ToUpper(strings.TrimSpace(parts[1]))
	if in == "" || out == "" {
		return Pair{}, fmt.Errorf("domain: malformed pair %q", symbol)
	}
	if in == out {
		return Pair{}, fmt.Errorf("domain: degenerate pair %q", symbol)
	}
	return Pair{TokenIn: in, TokenOut: out}, nil
}

// String returns the "TOKENIN/TOKENOUT" symbol.
func (p Pair) String() string {
	return p.TokenIn + "/" + p.TokenOut
}

// Base returns the token whose exposure a position in this pair concentrates
// on. Used by the correlation guard.
func (p Pair) Base() string {
	return p.TokenIn
}
