package emit

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/descry-io/descry/internal/ir"
)

// JSON renders the descriptor as indented JSON. encoding/json sorts map
// keys, so output is deterministic.
func JSON(d *ir.Descriptor) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeJSON reads a descriptor previously written by JSON.
func DecodeJSON(r io.Reader) (*ir.Descriptor, error) {
	var d ir.Descriptor
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to decode descriptor: %w", err)
	}
	return &d, nil
}
