package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/bobmcallan/surveylens/internal/models"
)

// ExportJSON re-indents the analysis exactly as received, two spaces per level.
func ExportJSON(a *models.Analysis) ([]byte, error) {
	if a == nil || len(a.Raw) == 0 {
		return nil, errors.New("no analysis payload to export")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, a.Raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indent analysis: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename derives an export filename from the survey title, keeping only
// ASCII letters and digits. An empty result falls back to the survey id.
func Filename(title, surveyID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	base := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, title)
	if base == "" {
		return fmt.Sprintf("analysis-%s.%s", surveyID, ext)
	}
	return fmt.Sprintf("%s-analysis.%s", base, ext)
}
