// Package probe checks camera reachability by running the system ping utility
// with a fixed attempt count and per-attempt timeout under an overall deadline.
package probe
