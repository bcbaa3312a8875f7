package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateStreamID returns a unique stream identifier.
func GenerateStreamID() string {
	return GenerateID("stream")
}

// GenerateTransportID returns a unique transport identifier.
func GenerateTransportID() string {
	return GenerateID("transport")
}

// GenerateProducerID returns a unique producer identifier.
func GenerateProducerID() string {
	return GenerateID("producer")
}

// GenerateConsumerID returns a unique consumer identifier.
func GenerateConsumerID() string {
	return GenerateID("consumer")
}

// GenerateMessageID returns a unique chat message identifier.
func GenerateMessageID() string {
	return GenerateID("msg")
}

// GenerateID returns a prefixed UUID.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
