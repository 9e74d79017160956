package output

import (
	"encoding/json"
	"io"

	"github.com/cloudrecon-labs/posturescan/internal/models"
)

// RenderJSON writes the full scan result as indented JSON.
func RenderJSON(w io.Writer, result *models.ScanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
