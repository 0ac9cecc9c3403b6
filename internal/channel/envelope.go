package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Message is the wire frame carried on a channel topic. ID correlates a
// reply or acknowledgment with its request; most broadcast events leave
// it empty.
type Message struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Result is the single internal shape all inbound payloads collapse to.
// Code above the channel never branches on wire shape.
type Result struct {
	OK   bool
	Data json.RawMessage
	Err  string
}

// Decode unmarshals the payload into v, treating failed results and
// malformed data uniformly as errors.
func (r Result) Decode(v any) error {
	if !r.OK {
		if r.Err == "" {
			return fmt.Errorf("request failed")
		}
		return fmt.Errorf("request failed: %s", r.Err)
	}
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Normalize collapses the two inbound payload shapes, a raw JSON
// array/object or a {success, data} envelope, into one Result at the
// channel boundary.
func Normalize(raw []byte) Result {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Result{Err: "empty payload"}
	}
	if !json.Valid(raw) {
		return Result{Err: "malformed payload"}
	}
	var env struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Success != nil {
		if !*env.Success {
			msg := env.Error
			if msg == "" {
				msg = "server reported failure"
			}
			return Result{Err: msg}
		}
		return Result{OK: true, Data: env.Data}
	}
	return Result{OK: true, Data: raw}
}
