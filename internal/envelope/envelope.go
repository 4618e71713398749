// Package envelope decodes the logistics provider's webhook body. The
// provider sends one of three shapes depending on the delivery channel:
// a pub/sub style {"message":{"data":"<base64 JSON>"}} wrapper, a JSON
// string containing JSON, or a plain JSON object. Decoding is an ordered
// list of strategies; the first one that parses wins.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

var ErrUndecodable = errors.New("payload does not match any known envelope shape")

type decoder func(body []byte) (map[string]any, bool)

var decoders = []decoder{decodePubSub, decodeQuotedString, decodeObject}

// Decode tries each envelope shape in order and returns the inner payload.
func Decode(body []byte) (map[string]any, error) {
	for _, d := range decoders {
		if payload, ok := d(body); ok {
			return payload, nil
		}
	}
	return nil, ErrUndecodable
}

// decodePubSub handles {"message":{"data":"<base64-encoded JSON>"}}.
func decodePubSub(body []byte) (map[string]any, bool) {
	var wrapper struct {
		Message struct {
			Data string `json:"data"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Message.Data == "" {
		return nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(wrapper.Message.Data)
	if err != nil {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// decodeQuotedString handles a JSON string whose content is itself JSON.
func decodeQuotedString(body []byte) (map[string]any, bool) {
	var inner string
	if err := json.Unmarshal(body, &inner); err != nil {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(inner), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// decodeObject handles an already-parsed JSON object body.
func decodeObject(body []byte) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false
	}
	return payload, true
}
