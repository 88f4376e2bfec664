package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annelo/envstream/internal/errs"
)

func TestConfigurationError(t *testing.T) {
	err := errs.Config("streaming.load_radius", "must be positive")
	assert.Equal(t, "configuration: streaming.load_radius: must be positive", err.Error())
	assert.True(t, errs.IsConfiguration(err))
	assert.True(t, errs.IsConfiguration(fmt.Errorf("startup: %w", err)))
	assert.False(t, errs.IsConfiguration(errors.New("plain")))

	cause := errors.New("no such file")
	wrapped := errs.WrapConfig("file", "cannot read x.yaml", cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "no such file")
}

func TestGenerationError(t *testing.T) {
	err := &errs.GenerationError{Theme: "sky", Reason: "no piece set, using forest"}
	assert.Equal(t, "generation: theme sky: no piece set, using forest", err.Error())
	assert.False(t, errs.IsConfiguration(err))
}
