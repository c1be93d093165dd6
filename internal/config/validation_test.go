package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("prompt", "is required")
	assert.Equal(t, "field 'prompt': is required", errs.Error())

	errs.Add("cluster.nodes", "must be between 0 and 64", 100)
	assert.True(t, errs.HasErrors())
	assert.Equal(t, "validation failed: field 'prompt': is required; field 'cluster.nodes': must be between 0 and 64", errs.Error())
	assert.Equal(t, 100, errs[1].Value)
}

func TestValidateOneOf(t *testing.T) {
	assert.NoError(t, ValidateOneOf("cluster.preset", "small", []string{"dgx-a100", "small"}))
	err := ValidateOneOf("cluster.preset", "cray", []string{"dgx-a100", "small"})
	assert.EqualError(t, err, "field 'cluster.preset': must be one of: dgx-a100, small")
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, GetDefaultConfig().Validate())

	cfg := GetDefaultConfig()
	cfg.Sampler.Enabled = false
	cfg.Sampler.Interval = 0
	assert.NoError(t, cfg.Validate(), "interval is only checked when the sampler runs")
}
