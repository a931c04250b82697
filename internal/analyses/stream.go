package analyses

import (
	"context"
	"errors"
	"io"
	"sync"

	"ideascope-backend/internal/aiservice"
	"ideascope-backend/internal/analyses/schema"
	"ideascope-backend/internal/shared/metrics"
)

var errStreamEnded = errors.New("status stream ended before completion")

// StatusStream yields validated events for one task. The upstream connection
// is closed exactly once: after a complete event, on any error, or when the
// context passed to newStatusStream is done.
type StatusStream struct {
	upstream *aiservice.EventStream
	onReject func(raw []byte)
	stop     func() bool
	once     sync.Once
}

func newStatusStream(ctx context.Context, upstream *aiservice.EventStream, onReject func(raw []byte)) *StatusStream {
	s := &StatusStream{upstream: upstream, onReject: onReject}
	s.stop = context.AfterFunc(ctx, s.closeUpstream)
	return s
}

// Next blocks for the next event. A complete event is the last one; every
// later call returns an error.
func (s *StatusStream) Next(ctx context.Context) (schema.Event, error) {
	frame, err := s.upstream.Recv()
	if err != nil {
		s.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return schema.Event{}, ctxErr
		}
		if errors.Is(err, io.EOF) || errors.Is(err, aiservice.ErrStreamClosed) {
			return schema.Event{}, newError(KindUpstreamUnavailable, errStreamEnded)
		}
		return schema.Event{}, upstreamError(err)
	}

	ev, err := schema.Parse(frame.Data)
	if err != nil {
		s.Close()
		metrics.IncRejectedFrame()
		if s.onReject != nil {
			s.onReject(frame.Data)
		}
		return schema.Event{}, newError(KindValidationFailure, err)
	}
	if ev.IsComplete {
		s.Close()
	}
	return ev, nil
}

// Close releases the upstream connection. Safe to call repeatedly.
func (s *StatusStream) Close() {
	s.closeUpstream()
	s.stop()
}

func (s *StatusStream) closeUpstream() {
	s.once.Do(func() {
		_ = s.upstream.Close()
	})
}
