// Package dispatch tracks submitted requests until their results are
// delivered.
//
// A Dispatcher owns the pending set: every request submitted through it stays
// pending until a drain receives its result, removes it, and fires exactly one
// of its callbacks. Drains may be non-blocking (DrainAvailable), blocking
// (DrainBlocking, WaitAll), or run continuously in the background (Run). Only
// one drain runs at a time.
package dispatch
