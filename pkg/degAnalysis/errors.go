package degAnalysis

import "errors"

// error kinds, wrap with fmt.Errorf("%w: ...") and test with errors.Is
var (
	// ErrUnsupportedFormat unrecognized input file extension
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrMalformedInput unparseable or non-numeric cell, or sample/metadata mismatch
	ErrMalformedInput = errors.New("malformed input")
	// ErrEngineFit statistical model failed or design is degenerate
	ErrEngineFit = errors.New("engine fit error")
)
