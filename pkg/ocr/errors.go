package ocr

import "errors"

// ErrEngineUnavailable is returned when a backend cannot produce text for a
// page: a non-success API response, a malformed response payload, or a local
// recognition failure. Attempts are not retried on it.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")
