package types

import (
	"sort"
	"strconv"
)

// Event is the flat payload of a registry state change. Attribute values are
// strings so the payload maps directly onto JSON, SQL rows and webhooks.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Clone returns a deep copy so sinks can keep the event after the emitter
// reuses its maps.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := &Event{Type: e.Type}
	if e.Attributes != nil {
		out.Attributes = make(map[string]string, len(e.Attributes))
		for k, v := range e.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Attr returns the attribute value for key, or "" when absent.
func (e *Event) Attr(key string) string {
	if e == nil || e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

// Uint parses a numeric attribute. Missing or malformed values yield zero.
func (e *Event) Uint(key string) uint64 {
	v, _ := strconv.ParseUint(e.Attr(key), 10, 64)
	return v
}

// Int parses a signed numeric attribute. Missing or malformed values yield zero.
func (e *Event) Int(key string) int64 {
	v, _ := strconv.ParseInt(e.Attr(key), 10, 64)
	return v
}

// Keys lists the attribute names in sorted order.
func (e *Event) Keys() []string {
	if e == nil {
		return nil
	}
	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
