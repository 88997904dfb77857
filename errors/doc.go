// Package errors provides unified error handling for prockit.
// It implements a structured error type with a closed set of machine-readable
// error codes, errno preservation, and retryable detection.
package errors
