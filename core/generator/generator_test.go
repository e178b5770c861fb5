package generator

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	g := &Generator{}
	token := g.Token()
	require.Len(t, token, 32)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), token)
	assert.NotEqual(t, token, g.Token())
}

func TestCode(t *testing.T) {
	g := &Generator{}
	code := g.Code()
	require.Len(t, code, 8)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{8}$`), code)
}

func TestGUIDv4(t *testing.T) {
	g := &Generator{}
	guid := g.GUIDv4()
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`), guid)
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello World", "hello-world"},
		{"Crème Brûlée", "creme-brulee"},
		{"  --What's up?--  ", "whats-up"},
		{"Früh & spät", "fruh-spat"},
		{"already-a-slug", "already-a-slug"},
		{"UPPER  CASE", "upper-case"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Slug(c.in), "slug of %q", c.in)
	}
}
