package extract

import (
	"errors"
	"fmt"
)

// Extraction phases reported in ExtractError.Phase
const (
	PhaseRead    = "read"
	PhaseParse   = "parse"
	PhaseExtract = "extract"
)

// ExtractError describes why a single file could not be extracted. It never
// aborts a batch; scanners collect it and move on.
type ExtractError struct {
	File    string `json:"file"`
	Phase   string `json:"phase"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ExtractError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s failed: %s", e.File, e.Line, e.Phase, e.Message)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.File, e.Phase, e.Message)
}

// AsExtractError unwraps err into an *ExtractError.
func AsExtractError(err error) (*ExtractError, bool) {
	var e *ExtractError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
