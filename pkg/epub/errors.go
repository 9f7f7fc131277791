package epub

// ParseError indicates a package that could not be opened or whose structure
// is corrupt. Batch callers skip the file and continue.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
