package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptwire/promptwire/pkg/errors"
)

func TestNewManagerValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		config ServerConfig
	}{
		{"missing name", ServerConfig{Command: "server"}},
		{"missing command", ServerConfig{Name: "tools"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(context.Background(), []ServerConfig{tt.config}, nil)
			require.Error(t, err)

			var valErr *errors.ValidationError
			assert.True(t, errors.As(err, &valErr))
		})
	}
}

func TestNewManagerNoServers(t *testing.T) {
	m, err := NewManager(context.Background(), nil, nil)
	require.NoError(t, err)
	defer m.Close()

	assert.Empty(t, m.Tools())
}

func TestInvokeUnknownTool(t *testing.T) {
	m, err := NewManager(context.Background(), nil, nil)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.InvokeTool(context.Background(), "nope", nil)
	require.Error(t, err)

	var notFound *errors.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestDiscoverToolsUnknownServer(t *testing.T) {
	m, err := NewManager(context.Background(), nil, nil)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.DiscoverTools(context.Background(), "ghost")
	assert.Error(t, err)
}
