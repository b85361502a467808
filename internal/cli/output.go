package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// writeResult prints v as indented JSON, or hands the writer to text.
func writeResult(w io.Writer, opts *RootOptions, v any, text func(io.Writer)) error {
	if opts != nil && opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		return nil
	}
	text(w)
	return nil
}
