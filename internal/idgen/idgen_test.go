package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsV7(t *testing.T) {
	id, err := uuid.Parse(New())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestNewRunPrefix(t *testing.T) {
	a, b := NewRun(), NewRun()
	assert.Regexp(t, `^run-`, a)
	assert.NotEqual(t, a, b)
}
