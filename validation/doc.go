// Package validation validates option and profile structs before they reach
// the launcher. Violations surface uniformly as INVALID_ARGUMENT errors.
package validation
