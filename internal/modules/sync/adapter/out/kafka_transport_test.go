package out

import (
	"testing"

	"focuskit/internal/platform/logging"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestKafkaWriterTargetsTheTailedPartition(t *testing.T) {
	t.Parallel()
	transport, err := NewKafkaTransport([]string{"127.0.0.1:9092"}, "focuskit.sync", logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close() })

	tailed := transport.reader.Config().Partition
	for _, partitions := range [][]int{{0}, {0, 1, 2}, {3, 2, 1, 0}} {
		got := transport.writer.Balancer.Balance(kafka.Message{Value: []byte("snapshot")}, partitions...)
		require.Equal(t, tailed, got, "partitions %v", partitions)
	}
}

func TestKafkaTransportRequiresBrokers(t *testing.T) {
	t.Parallel()
	_, err := NewKafkaTransport(nil, "focuskit.sync", logging.Nop())
	require.Error(t, err)
}
