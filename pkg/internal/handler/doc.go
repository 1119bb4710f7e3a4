// Package handler provides internal reflection-based task handler execution.
//
// This package is internal and should not be imported directly.
// It provides:
//   - Handler: signature checks and metadata for registered task functions
//   - JSON decoding of stored task parameters into the handler's argument type
//   - Invocation returning the handler's value and error
package handler
