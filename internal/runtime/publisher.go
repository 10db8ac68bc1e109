package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	errspkg "github.com/drblury/actionflow/internal/runtime/errors"
	"github.com/drblury/actionflow/internal/runtime/events"
	"github.com/drblury/actionflow/internal/runtime/queue"
	"github.com/drblury/actionflow/internal/runtime/results"
)

// NewResponse encodes the envelope answering ev and returns it with the topic
// it belongs on.
func NewResponse(ev events.Event, start, stop time.Time, r results.Result) (topic string, payload []byte, err error) {
	if r == nil {
		return "", nil, errspkg.ErrNilResult
	}
	payload, err = results.Encode(results.NewEnvelope(ev.Context, start, stop, r))
	if err != nil {
		return "", nil, fmt.Errorf("encode %s result: %w", r.Type(), err)
	}
	return queue.ResponseTopicFor(ev.ReturnAddress), payload, nil
}

// PublishResult encodes r and puts it on the response topic of ev.
func PublishResult(ctx context.Context, q queue.Client, ev events.Event, start, stop time.Time, r results.Result) error {
	if q == nil {
		return errspkg.ErrQueueRequired
	}
	topic, payload, err := NewResponse(ev, start, stop, r)
	if err != nil {
		return err
	}
	if err := q.Put(ctx, topic, payload); err != nil {
		return fmt.Errorf("publish response to %s: %w", topic, err)
	}
	return nil
}

// PublishResult publishes through the service queue so actions running
// outside a worker, such as timed jobs, can report results.
func (s *Service) PublishResult(ctx context.Context, ev events.Event, start, stop time.Time, r results.Result) error {
	if s == nil {
		return errors.New("actionflow: service is nil")
	}
	return PublishResult(ctx, s.queue, ev, start, stop, r)
}
