// Package core provides the fundamental types and interfaces for the job runner.
//
// This package contains:
//   - The Job data model with GORM annotations
//   - Store interface defining the persistence contract
//   - Event types for run monitoring
//   - Error types for dispatch and execution
//
// Most users should import the root package github.com/jdziat/simple-job-runner
// instead of this package directly.
package core
