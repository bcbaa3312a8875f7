package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIDPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateStreamID(), "stream_"))
	assert.True(t, strings.HasPrefix(GenerateTransportID(), "transport_"))
	assert.True(t, strings.HasPrefix(GenerateProducerID(), "producer_"))
	assert.True(t, strings.HasPrefix(GenerateConsumerID(), "consumer_"))
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenerateID("x")
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
