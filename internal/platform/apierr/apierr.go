package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(code string, err error) *Error {
	return New(http.StatusBadRequest, code, err)
}

func NotFound(code string, err error) *Error {
	return New(http.StatusNotFound, code, err)
}

func Backend(code string, err error) *Error {
	return New(http.StatusInternalServerError, code, err)
}

// PartialFailure reports a fan-out where some sub-operations failed after
// others (and possibly irreversible steps) already succeeded. It is reported
// distinctly from a total failure so callers can tell "the thread is gone
// but two blobs remain" apart from "nothing happened".
type PartialFailure struct {
	Op        string
	FailedIDs []string
	Errs      []error
}

func (e *PartialFailure) Error() string {
	if e == nil {
		return "partial failure"
	}
	return fmt.Sprintf("%s: %d sub-operations failed (%s)", e.Op, len(e.FailedIDs), strings.Join(e.FailedIDs, ", "))
}

func (e *PartialFailure) Unwrap() error {
	if e == nil || len(e.Errs) == 0 {
		return nil
	}
	return e.Errs[0]
}

func IsPartialFailure(err error) bool {
	var pf *PartialFailure
	return errors.As(err, &pf)
}
