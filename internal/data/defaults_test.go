package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amd/madctl/internal/config"
	"github.com/amd/madctl/internal/credentials"
)

func TestDefaultsFromEnvironmentParsesNASNodes(t *testing.T) {
	cfg := config.Configuration{NASNodes: `[{"NAME":"nas1","HOST":"10.0.0.1","PORT":"22","USERNAME":"u","PASSWORD":"p"}]`}

	d := DefaultsFromEnvironment(cfg, credentials.Store{})
	require.Len(t, d.NASNodes, 1)
	assert.Equal(t, "10.0.0.1", d.NASNodes[0].Host)
}

func TestDefaultsFromEnvironmentReadsCredentialStore(t *testing.T) {
	creds := credentials.Store{
		"MAD_AWS_S3": map[string]any{"username": "aws-user", "password": "aws-pass"},
		"MAD_MINIO":  map[string]any{"username": "minio-user", "password": "minio-pass", "minio_endpoint": "http://minio:9000"},
	}

	d := DefaultsFromEnvironment(config.Configuration{}, creds)
	assert.Equal(t, "aws-user", d.AWS.Username)
	assert.Equal(t, "aws-pass", d.AWS.Password)
	assert.Equal(t, "minio-user", d.Minio.Username)
	assert.Equal(t, "http://minio:9000", d.Minio.Endpoint)
}

func TestDefaultsFromEnvironmentFallsBackToConfigurationMinioEndpoint(t *testing.T) {
	d := DefaultsFromEnvironment(config.Configuration{MinioEndpoint: "http://fallback:9000"}, credentials.Store{})
	assert.Equal(t, "http://fallback:9000", d.Minio.Endpoint)
}

func TestDefaultsFromEnvironmentIgnoresMalformedNASNodes(t *testing.T) {
	d := DefaultsFromEnvironment(config.Configuration{NASNodes: "not json"}, credentials.Store{})
	assert.Empty(t, d.NASNodes)
}
