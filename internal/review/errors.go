package review

import "fmt"

// ScanFailure reports an analyzer that failed while scanning a file. The
// whole review is aborted; there are no partial results.
type ScanFailure struct {
	Analyzer string
	File     string
	Err      error
}

func (e *ScanFailure) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s analyzer failed: %v", e.Analyzer, e.Err)
	}
	return fmt.Sprintf("%s analyzer failed on %s: %v", e.Analyzer, e.File, e.Err)
}

func (e *ScanFailure) Unwrap() error {
	return e.Err
}

// CollaboratorFailure reports a failure of an external dependency of the
// review, such as the remote analysis service or the summarizer.
type CollaboratorFailure struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorFailure) Unwrap() error {
	return e.Err
}
