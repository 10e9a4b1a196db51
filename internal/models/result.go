package models

// SendFailure records one recipient the transport could not deliver to.
type SendFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// BulkResult is the aggregate outcome of one execution's per-recipient
// attempts. A recipient appears in exactly one of the two lists.
type BulkResult struct {
	Successful []string      `json:"successful"`
	Failed     []SendFailure `json:"failed"`
}

// NewBulkResult returns an empty result with non-nil slices so it
// serializes as [] rather than null.
func NewBulkResult() *BulkResult {
	return &BulkResult{
		Successful: []string{},
		Failed:     []SendFailure{},
	}
}
