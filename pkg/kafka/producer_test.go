package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"message too large", kafka.MessageSizeTooLarge, false},
		{"invalid message", kafka.InvalidMessage, false},
		{"invalid topic", kafka.InvalidTopic, false},
		{"topic authorization failed", kafka.TopicAuthorizationFailed, false},
		{"leader not available", kafka.LeaderNotAvailable, true},
		{"request timed out", kafka.RequestTimedOut, true},
		{"wrapped broker error", fmt.Errorf("publishing to kafka: %w", kafka.LeaderNotAvailable), true},
		{"wrapped permanent error", fmt.Errorf("publishing to kafka: %w", kafka.MessageSizeTooLarge), false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"plain connection error", errors.New("dial tcp: connection refused"), true},
		{"write errors all transient", kafka.WriteErrors{kafka.LeaderNotAvailable}, true},
		{"write errors with permanent", kafka.WriteErrors{kafka.LeaderNotAvailable, kafka.MessageSizeTooLarge}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
