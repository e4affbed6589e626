package download

import (
	"errors"
	"fmt"
)

// NotFoundError signals that the remote repository does not exist (or is not
// visible with the configured credentials). It is a user-input problem and is
// never retried.
type NotFoundError struct {
	ModelID string
	Hint    string
	Err     error
}

func (e *NotFoundError) Error() string {
	if e.Hint == "" {
		return fmt.Sprintf("model not found: %s", e.ModelID)
	}
	return fmt.Sprintf("model not found: %s\n%s", e.ModelID, e.Hint)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// MissingArtifactError signals that a resolved local directory holds no usable
// weight files.
type MissingArtifactError struct {
	ModelID string
	Dir     string
	Err     error
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing weights for %s in %s", e.ModelID, e.Dir)
}

func (e *MissingArtifactError) Unwrap() error { return e.Err }

// TransferError represents network and I/O failures while fetching artifacts,
// including the overall acquisition deadline. Retry policy belongs to callers.
type TransferError struct {
	Op         string // list, fetch, monitor, timeout
	ModelID    string
	StatusCode int // HTTP status code, 0 for non-HTTP errors
	Err        error
}

func (e *TransferError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transfer failed during %s for %s (HTTP %d): %v", e.Op, e.ModelID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transfer failed during %s for %s: %v", e.Op, e.ModelID, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// IsNotFound reports whether err indicates a missing remote repository.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsMissingArtifact reports whether err indicates absent local weights.
func IsMissingArtifact(err error) bool {
	var e *MissingArtifactError
	return errors.As(err, &e)
}

// IsTransferFailure reports whether err is a (possibly transient) transfer failure.
func IsTransferFailure(err error) bool {
	var e *TransferError
	return errors.As(err, &e)
}

func notFoundHint(modelID string) string {
	return "Please make sure you specified the local path or hub repo id " + fmt.Sprintf("%q", modelID) + " correctly.\n" +
		"If you are trying to access a private or gated repo, make sure a hub token is configured (hub_token / SHARDD_HUB_TOKEN)."
}

// asTransferError wraps err unless it already carries a classification.
func asTransferError(op, modelID string, err error) error {
	if err == nil || IsNotFound(err) || IsMissingArtifact(err) || IsTransferFailure(err) {
		return err
	}
	return &TransferError{Op: op, ModelID: modelID, Err: err}
}
