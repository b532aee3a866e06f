// Package domain defines the core business entities for corpus.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded file and its lifecycle status
//   - ProcessedText: The normalized text of a document, unique per text hash
//   - Chunk: A retrieval-sized slice of normalized text
//   - VectorPoint: A chunk embedded into one or two vector spaces
//   - RateCounter, RateBlock: Ephemeral rate limiting state
//   - Settings: The typed configuration snapshot
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
