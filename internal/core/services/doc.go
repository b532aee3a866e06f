// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// A single set of service values is constructed by the CLI wiring and
// shared by every driving adapter; caches, rate counters and the embedding
// throttle live on those values.
package services
