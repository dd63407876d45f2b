// Package errors provides standardized error handling patterns for cognograph
// components.
//
// # Overview
//
// The package implements a three-class error classification system: Transient
// (temporary, retryable), Invalid (bad input, non-retryable), and Fatal
// (unrecoverable, stop processing). Classification enables components to make
// informed decisions about retries and graceful degradation without error
// string matching, and integrates with errors.Is(), errors.As() and wrapping
// chains.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Engine", "Start", "connect")  // retryable
//	errors.WrapInvalid(err, "Engine", "SyncRules", "parse")  // bad input
//	errors.WrapFatal(err, "Store", "Load", "decode")         // unrecoverable
//
// Note that the automation engine's soft failure paths (an unresolvable
// condition target, a malformed regex, a cycle rejection) intentionally do
// NOT produce errors at all: they evaluate false or skip with a log line so
// that one bad rule cannot abort evaluation of others. This package covers
// the hard failure paths: configuration, registration, transport and
// collaborator faults.
package errors
