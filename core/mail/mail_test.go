package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild(t *testing.T) {
	body := Build("Hello {name}, visit {link}.", map[string]string{
		"name": "Anna",
		"link": "https://example.com/reset?token=abc",
	})
	assert.Equal(t, "Hello Anna, visit https://example.com/reset?token=abc.", body)
}

func TestBuildLeavesUnknownMarkers(t *testing.T) {
	body := Build("Hello {name}, {unknown}.", map[string]string{"name": "Anna"})
	assert.Equal(t, "Hello Anna, {unknown}.", body)
}
