// Package directory resolves restaurant names to coordinates and serves the
// menu the order source picks from. Populated by batch import; the dispatch
// core only reads it.
package directory

import (
	"context"
	"strings"

	"courier-dispatch/internal/geo"
)

type Restaurant struct {
	Name string
	Pos  geo.Point
}

type Directory interface {
	// Lookup resolves a restaurant name (whitespace- and case-insensitive)
	// to its pickup location.
	Lookup(ctx context.Context, name string) (geo.Point, bool, error)
	Restaurants(ctx context.Context) ([]Restaurant, error)
	Menu(ctx context.Context, name string) ([]string, error)
}

// NormalizeName collapses inner whitespace and case-folds, so " Chez  Luigi "
// and "chez luigi" address the same restaurant.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
