package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamOrdering(t *testing.T) {
	assert.Equal(t, "fifo", StreamOrdering(StreamSteps))
	assert.Equal(t, "lifo", StreamOrdering(StreamErrors))
}

func TestGetMetaString(t *testing.T) {
	meta := map[string]any{MetaRunID: "run-1", MetaStep: 3}
	assert.Equal(t, "run-1", GetMetaString(meta, MetaRunID))
	assert.Empty(t, GetMetaString(meta, MetaStep), "non-string value")
	assert.Empty(t, GetMetaString(nil, MetaRunID))
}
