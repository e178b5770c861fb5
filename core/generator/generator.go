// Package generator produces random tokens, GUIDs, codes and slugs.
//
// Generators that take a uniqueness scope (table + column) probe the
// database and regenerate on collision. Probes are bounded: after
// maxAttempts collisions the generator gives up with ErrExhausted instead
// of spinning on a near-exhausted value space.
package generator

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/consumedhq/consumed/core/csql"
)

const maxAttempts = 10

// ErrExhausted is returned when a uniqueness probe keeps colliding.
var ErrExhausted = errors.New("generator: value space exhausted")

// Generator creates random identifiers, optionally scoped to a unique column.
type Generator struct {
	DB *csql.DB
}

func randomHex(length int) string {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	return hex.EncodeToString(buf)[:length]
}

// Token returns a 32 character random token string.
func (g *Generator) Token() string {
	return randomHex(32)
}

// Code returns an 8 character upper-case code.
func (g *Generator) Code() string {
	return strings.ToUpper(randomHex(8))
}

// GUIDv4 returns a random UUID in its canonical string form.
func (g *Generator) GUIDv4() string {
	return uuid.New().String()
}

func (g *Generator) exists(ctx context.Context, table, column, value string) (bool, error) {
	query := fmt.Sprintf("SELECT count(*) FROM %s.\"%s\" WHERE %s = $1;", g.DB.Schema, table, column)
	var count int
	if err := g.DB.QueryRowContext(ctx, query, value).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *Generator) unique(ctx context.Context, table, column string, generate func() string) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		value := generate()
		taken, err := g.exists(ctx, table, column, value)
		if err != nil {
			return "", err
		}
		if !taken {
			return value, nil
		}
	}
	return "", ErrExhausted
}

// TokenUnique returns a random token that does not yet exist in the given
// table column.
func (g *Generator) TokenUnique(ctx context.Context, table, column string) (string, error) {
	return g.unique(ctx, table, column, g.Token)
}

// CodeUnique returns a short code that does not yet exist in the given
// table column. Short codes have a small value space, which is exactly why
// the probe is bounded.
func (g *Generator) CodeUnique(ctx context.Context, table, column string) (string, error) {
	return g.unique(ctx, table, column, g.Code)
}

// GUIDv4Unique returns a UUID that does not yet exist in the given table column.
func (g *Generator) GUIDv4Unique(ctx context.Context, table, column string) (string, error) {
	return g.unique(ctx, table, column, g.GUIDv4)
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// asciiFold maps the usual Latin accented characters onto plain ASCII.
var asciiFold = strings.NewReplacer(
	"à", "a", "á", "a", "â", "a", "ä", "a", "ã", "a", "å", "a",
	"è", "e", "é", "e", "ê", "e", "ë", "e",
	"ì", "i", "í", "i", "î", "i", "ï", "i",
	"ò", "o", "ó", "o", "ô", "o", "ö", "o", "õ", "o", "ø", "o",
	"ù", "u", "ú", "u", "û", "u", "ü", "u",
	"ç", "c", "ñ", "n", "ß", "ss", "æ", "ae", "œ", "oe",
)

// Slug normalizes text into a URL slug: quotes stripped, accents folded to
// ASCII, non-word runs collapsed to single hyphens, lowercased.
func Slug(text string) string {
	text = strings.NewReplacer("'", "", "\"", "").Replace(text)
	text = strings.ToLower(text)
	text = asciiFold.Replace(text)
	text = nonWord.ReplaceAllString(text, "-")
	return strings.Trim(text, "-")
}

// SlugUnique returns a slug for the text that does not yet exist in the
// given table column, appending an incrementing numeric suffix on collision.
func (g *Generator) SlugUnique(ctx context.Context, text, table, column string) (string, error) {
	base := Slug(text)
	candidate := base
	for attempt := 0; attempt < maxAttempts; attempt++ {
		taken, err := g.exists(ctx, table, column, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt+1)
	}
	return "", ErrExhausted
}
