package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes v, indenting with two spaces when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// UnmarshalJSON decodes data into v, tolerating a UTF-8 byte order mark and surrounding whitespace.
func UnmarshalJSON(data []byte, v any) error {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	if len(data) == 0 {
		return fmt.Errorf("empty JSON document")
	}
	return json.Unmarshal(data, v)
}
