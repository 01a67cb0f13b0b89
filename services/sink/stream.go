package sink

import (
	"context"
	"encoding/json"

	"sjsage522/placereviewworker/internal/harvest"
	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/services/publisher"
)

// StreamKey is the field every review message is stored under
const StreamKey = "b64_review"

// StreamSink publishes one message per review, then trims the streams
type StreamSink struct {
	pub publisher.Publisher
}

func NewStreamSink(pub publisher.Publisher) *StreamSink {
	return &StreamSink{pub: pub}
}

func (s *StreamSink) Save(ctx context.Context, place string, records []harvest.Record) error {
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := s.pub.Publish(ctx, StreamKey, data); err != nil {
			return err
		}
	}
	if err := s.pub.TrimStreams(ctx); err != nil {
		return err
	}
	logger.ForPublisher().Debug().Str("place", place).Int("messages", len(records)).Msg("reviews published")
	return nil
}
