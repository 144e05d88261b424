package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/canvasblocks/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, ParseBrokers(""))
}

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	_, _, err := CreateChannel(watermill.NopLogger{}, Config{ServiceName: "canvasblocks"})
	require.ErrorIs(t, err, ErrNoBrokers)
}

func TestPartitionKey_UsesCanvasKey(t *testing.T) {
	msg := message.NewMessage(watermill.NewULID(), nil)
	msg.Metadata.Set(events.EventMetadataKey, "notes/main.canvas")

	key, err := PartitionKey(events.Topic, msg)
	require.NoError(t, err)
	assert.Equal(t, "notes/main.canvas", key)
}
