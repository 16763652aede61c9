package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptwire/promptwire/pkg/errors"
)

func validDescriptor() Descriptor {
	return Descriptor{
		Name:                     "local-kobold",
		Family:                   FamilyGenerate,
		BaseURL:                  "http://localhost:5001",
		MaxNewTokensPropertyName: "max_length",
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Descriptor)
		wantErr bool
	}{
		{"valid", func(d *Descriptor) {}, false},
		{"missing name", func(d *Descriptor) { d.Name = "" }, true},
		{"unknown family", func(d *Descriptor) { d.Family = "grpc" }, true},
		{"missing base url", func(d *Descriptor) { d.BaseURL = "" }, true},
		{"base url without scheme", func(d *Descriptor) { d.BaseURL = "localhost:5001" }, true},
		{"negative timeout", func(d *Descriptor) { d.Timeout = -time.Second }, true},
		{"negative rate", func(d *Descriptor) { d.RequestsPerSecond = -1 }, true},
		{"optional properties absent", func(d *Descriptor) {
			d.ContextSizePropertyName = ""
			d.StreamPropertyName = ""
			d.ParameterObjectName = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDescriptorRequiresMaxNewTokensProperty(t *testing.T) {
	d := validDescriptor()
	d.MaxNewTokensPropertyName = ""

	err := d.Validate()
	require.Error(t, err)

	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Key, "maxNewTokensPropertyName")
}

func TestDescriptorURL(t *testing.T) {
	tests := []struct {
		name   string
		family Family
		path   string
		want   string
	}{
		{"chat default path", FamilyChat, "", "http://localhost:8080/v1/chat/completions"},
		{"completion default path", FamilyCompletion, "", "http://localhost:8080/v1/completions"},
		{"generate default path", FamilyGenerate, "", "http://localhost:8080/api/v1/generate"},
		{"explicit path wins", FamilyChat, "/custom/chat", "http://localhost:8080/custom/chat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			d.Family = tt.family
			d.BaseURL = "http://localhost:8080/"
			d.Path = tt.path
			assert.Equal(t, tt.want, d.URL())
		})
	}
}

func TestDescriptorEffectiveTimeout(t *testing.T) {
	d := validDescriptor()
	assert.Equal(t, DefaultTimeout, d.EffectiveTimeout())

	d.Timeout = 10 * time.Second
	assert.Equal(t, 10*time.Second, d.EffectiveTimeout())
}
