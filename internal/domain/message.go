package domain

import "fmt"

// Message is a single outbound record destined for the topic.
// It is immutable once built; producers hand it to the dispatcher and
// never see it again.
type Message struct {
	// Payload is the serialized event body.
	Payload []byte

	// Attributes is the key/value metadata sent alongside the payload.
	// Values are always strings; NewMessage enforces this.
	Attributes map[string]string
}

// NewMessage validates and builds a Message from caller-supplied data.
//
// base carries the static attributes applied to every message; attrs are
// the per-call attributes, which win on key collision. Attribute values
// arrive untyped because the host hands us schemaless configuration; any
// non-string value fails with a *ValidationError naming the offending key.
func NewMessage(payload []byte, base map[string]string, attrs map[string]any) (Message, error) {
	perCall, err := ValidateAttributes(attrs)
	if err != nil {
		return Message{}, err
	}

	merged := make(map[string]string, len(base)+len(perCall))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range perCall {
		merged[k] = v
	}

	return Message{Payload: payload, Attributes: merged}, nil
}

// ValidateAttributes checks that every attribute value is a string and
// returns the typed map. A nil or empty map is valid.
func ValidateAttributes(attrs map[string]any) (map[string]string, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		s, ok := v.(string)
		if !ok {
			return nil, &ValidationError{Key: k, Value: v}
		}
		out[k] = s
	}
	return out, nil
}

// Size returns the serialized size of the message: payload bytes plus the
// bytes of every attribute key and value. This is the exact figure counted
// against the batch byte threshold.
func (m Message) Size() int {
	n := len(m.Payload)
	for k, v := range m.Attributes {
		n += len(k) + len(v)
	}
	return n
}

// ValidationError reports an attribute whose value is not a string.
type ValidationError struct {
	Key   string
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("pubship: attribute %q: value must be a string, got %T", e.Key, e.Value)
}
