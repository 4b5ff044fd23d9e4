// Package powerstate watches the platform power-good signal.
//
// The power sequencer publishes the chassis power state as a retained
// broadcast message, so a newly started daemon learns the current state
// immediately. The watcher deduplicates repeats and invokes a callback on
// each genuine transition; callers marshal the callback onto their own
// execution context.
package powerstate
