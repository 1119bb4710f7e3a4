// Package security provides validation, sanitization, and limits for the job runner.
//
// This package includes:
//   - Input validation for task kinds and job descriptions
//   - Error message sanitization before failures are persisted
//   - Clamping of worker counts and queue capacities
//
// Most users should import the root package github.com/jdziat/simple-job-runner
// which re-exports these functions.
package security
