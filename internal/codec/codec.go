// Package codec encodes the two outbound wire shapes that share the
// telemetry channel (batch arrays and command objects) and decodes the
// server's replies.
package codec

import (
	"encoding/json"
	"fmt"

	"bvp_relay/internal/models"
)

type commandEnvelope struct {
	Command string            `json:"command"`
	Args    map[string]string `json:"args"`
}

// EncodeCommand renders {"command": name, "args": {...}}. Nil args encode as {}.
func EncodeCommand(name string, args map[string]string) ([]byte, error) {
	if args == nil {
		args = map[string]string{}
	}
	b, err := json.Marshal(commandEnvelope{Command: name, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode command %q: %w", name, err)
	}
	return b, nil
}

// Encode is a convenience wrapper around EncodeCommand.
func Encode(cmd models.Command) ([]byte, error) {
	return EncodeCommand(cmd.Name, cmd.Args)
}

// EncodeBatch renders the samples as a plain JSON array in arrival order.
// NaN and infinities cannot be represented and yield an error.
func EncodeBatch(values []float64) ([]byte, error) {
	if values == nil {
		values = []float64{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("encode batch of %d: %w", len(values), err)
	}
	return b, nil
}

// DecodeMessage extracts a mode list from a server reply. Any payload that
// is not an object with a "modes" array of strings decodes to the zero
// ServerMessage.
func DecodeMessage(data []byte) models.ServerMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return models.ServerMessage{}
	}
	raw, ok := obj["modes"]
	if !ok {
		return models.ServerMessage{}
	}
	var modes []string
	if err := json.Unmarshal(raw, &modes); err != nil || modes == nil {
		return models.ServerMessage{}
	}
	return models.ServerMessage{HasModes: true, Modes: modes}
}
