// Package output renders command results as tables or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// StreamJSONSlice writes items as one compact JSON array, encoding each
// item as it goes. Items that fail to encode are skipped.
func StreamJSONSlice[T any](w io.Writer, items []T) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	first := true
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			continue
		}
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		first = false
	}
	_, err := io.WriteString(w, "]\n")
	return err
}
