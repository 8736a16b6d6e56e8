package message

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Envelope is the JSON form of a message.
type Envelope struct {
	Notification Notification    `json:"notification"`
	Payload      json.RawMessage `json:"payload"`
}

// maxLineSize bounds a single encoded message on a stream.
const maxLineSize = 4 * 1024 * 1024

// Encode marshals a message into its envelope form.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", m.Notification(), err)
	}
	data, err := json.Marshal(Envelope{Notification: m.Notification(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshaling envelope: %w", err)
	}
	return data, nil
}

// Decode parses an envelope into its concrete message type.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshaling envelope: %w", err)
	}

	var m Message
	switch env.Notification {
	case NotifyModuleReady:
		m = ModuleReady{}
	case NotifyServiceReady:
		m = ServiceReady{}
	case NotifyRequestUpdate:
		var v RequestUpdate
		if err := decodePayload(env, &v); err != nil {
			return nil, err
		}
		m = v
	case NotifyUpdateData:
		var v UpdateData
		if err := decodePayload(env, &v); err != nil {
			return nil, err
		}
		m = v
	case NotifyUpdateError:
		var v UpdateError
		if err := decodePayload(env, &v); err != nil {
			return nil, err
		}
		m = v
	case NotifyUpdateTask:
		var v UpdateTask
		if err := decodePayload(env, &v); err != nil {
			return nil, err
		}
		m = v
	case NotifyTaskUpdated:
		var v TaskUpdated
		if err := decodePayload(env, &v); err != nil {
			return nil, err
		}
		m = v
	case NotifyTaskUpdateError:
		var v TaskUpdateError
		if err := decodePayload(env, &v); err != nil {
			return nil, err
		}
		m = v
	default:
		return nil, fmt.Errorf("unknown notification %q", env.Notification)
	}
	return m, nil
}

func decodePayload(env Envelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("unmarshaling %s payload: %w", env.Notification, err)
	}
	return nil
}

// ReadStream decodes newline-delimited envelopes from r and delivers them on
// out until r is exhausted or ctx is done. Undecodable lines are reported to
// onError and skipped.
func ReadStream(ctx context.Context, r io.Reader, out chan<- Message, onError func(error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		m, err := Decode(line)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading message stream: %w", err)
	}
	return nil
}

// WriteStream encodes messages from in as newline-delimited envelopes until
// in is closed or ctx is done.
func WriteStream(ctx context.Context, w io.Writer, in <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				return nil
			}
			data, err := Encode(m)
			if err != nil {
				return err
			}
			data = append(data, '\n')
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("writing message stream: %w", err)
			}
		}
	}
}
