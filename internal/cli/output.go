package cli

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// render writes data as JSON or YAML, or hands over to text for the
// human-readable form.
func render(w io.Writer, format string, data any, text func(io.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	}
	text(w)
	return nil
}
