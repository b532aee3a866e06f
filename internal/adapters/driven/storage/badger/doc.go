// Package badger provides the durable tier of the rate limiter on BadgerDB.
//
// Counters and blocks are stored as TTL keys, so expired entries disappear
// without a sweeper. The in-process limiter stays authoritative while the
// server runs; this store only lets counters and blocks survive a restart.
package badger
