package aiservice

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

const eventError = "error"

// Frame is one dispatched server-sent event.
type Frame struct {
	Event string
	ID    string
	Data  []byte
}

// EventStream reads server-sent events off an open status response.
// Close is safe to call any number of times from any goroutine.
type EventStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	closed atomic.Bool
	once   sync.Once
	err    error
}

func newEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{body: body, reader: bufio.NewReader(body)}
}

// Recv blocks until the next frame with data is dispatched. An "error"
// event is returned as an error. io.EOF means the server ended the stream.
func (s *EventStream) Recv() (Frame, error) {
	var (
		frame Frame
		data  strings.Builder
		has   bool
	)
	for {
		if s.closed.Load() {
			return Frame{}, ErrStreamClosed
		}
		line, err := s.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if s.closed.Load() {
				return Frame{}, ErrStreamClosed
			}
			if errors.Is(err, io.EOF) {
				return Frame{}, io.EOF
			}
			return Frame{}, fmt.Errorf("%w: read stream: %v", ErrUnavailable, err)
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !has {
				frame = Frame{}
				continue
			}
			frame.Data = []byte(data.String())
			if frame.Event == eventError {
				return Frame{}, classify(0, frame.Data)
			}
			return frame, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			frame.Event = value
		case "id":
			frame.ID = value
		case "data":
			if has {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			has = true
		}
	}
}

// Close releases the underlying connection exactly once.
func (s *EventStream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.err = s.body.Close()
	})
	return s.err
}
