package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrComparisonFailure is returned by a Comparator that cannot be evaluated on
// the given sample (too few points, zero variance). The comparison engine turns
// it into a null statistic for that calendar key.
var ErrComparisonFailure = errors.New("comparison failure")

// ErrFileNotFound indicates the input source does not exist.
var ErrFileNotFound = errors.New("file not found")

// ErrUnsupportedFormat indicates the input source is neither xlsx nor csv.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ErrResultNotFound indicates no stored result has the requested ID.
var ErrResultNotFound = errors.New("analysis result not found")

// Issue describes one broken schema rule. Row-level rules are reported once per
// column with the first offending row and the number of offending rows.
type Issue struct {
	Column string `json:"column"`
	Rule   string `json:"rule"`
	Row    int    `json:"row"`
	Count  int    `json:"count,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(i.Column)
	b.WriteString(": ")
	b.WriteString(i.Rule)
	if i.Count > 0 {
		fmt.Fprintf(&b, " (%d rows, first at %d)", i.Count, i.Row)
	}
	if i.Detail != "" {
		b.WriteString(": ")
		b.WriteString(i.Detail)
	}
	return b.String()
}

// SchemaViolation lists every rule a frame breaks for a named schema.
type SchemaViolation struct {
	Schema string
	Issues []Issue
}

func (e *SchemaViolation) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("schema %s: %d violation(s): %s", e.Schema, len(e.Issues), strings.Join(parts, "; "))
}

// ConfigurationError reports an invalid parameter detected before any work is done.
type ConfigurationError struct {
	Parameter string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Parameter, e.Reason)
}

func configErrorf(parameter, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Parameter: parameter, Reason: fmt.Sprintf(format, args...)}
}

// IsMalformedJob reports whether err means the job message itself cannot be
// decoded into a job.
func IsMalformedJob(err error) bool {
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntax) || errors.As(err, &typeErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// IsInvalidJob reports whether err comes from a job that fails the same way
// every time it runs: a malformed message, a schema violation or an invalid
// parameter.
func IsInvalidJob(err error) bool {
	var violation *SchemaViolation
	var cfgErr *ConfigurationError
	return IsMalformedJob(err) || errors.As(err, &violation) || errors.As(err, &cfgErr)
}
