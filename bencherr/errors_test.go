package bencherr

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestTaxonomy(t *testing.T) {
	cfg := Configuration("bad ratio %.2f", 1.5)
	mis := DataMismatch("%d embeddings vs %d targets", 100, 99)
	ins := InsufficientData("empty %s partition", "test")

	assert.True(t, IsConfiguration(cfg))
	assert.False(t, IsDataMismatch(cfg))
	assert.True(t, IsDataMismatch(mis))
	assert.False(t, IsInsufficientData(mis))
	assert.True(t, IsInsufficientData(ins))

	assert.Contains(t, mis.Error(), "100 embeddings vs 99 targets")
	assert.Contains(t, mis.Error(), "data mismatch")
}

func TestTaxonomySurvivesWrapping(t *testing.T) {
	err := errors.Wrap(Configuration("unknown task %q", "clustering"), "probe")
	err = fmt.Errorf("evaluate: %w", err)

	assert.True(t, IsConfiguration(err))
	assert.Equal(t, ErrConfiguration, errors.Cause(errors.Unwrap(err)))
}
