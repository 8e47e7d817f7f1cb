package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "'hello'", shellQuote("hello"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
}

func TestExtractDigest(t *testing.T) {
	inspect := `{
  "schemaVersion": 2,
  "mediaType": "application/vnd.docker.distribution.manifest.v2+json",
  "digest": "sha256:abcdef1234567890",
  "size": 1234
}`
	assert.Equal(t, "sha256:abcdef1234567890", extractDigest(inspect))
}

func TestExtractDigestMissing(t *testing.T) {
	assert.Equal(t, "", extractDigest(`{"schemaVersion": 2}`))
}
