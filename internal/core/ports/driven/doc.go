// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: Document and ProcessedText persistence
//   - BlobStore: Original bytes and normalized text storage
//   - Extractor / ExtractorRegistry: Text extraction per document format
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingProvider and VectorStore: Without them sync refuses to run
//     and retrieval answers with no context.
//   - LLMService: Without it enrichment is skipped.
//   - PromptStore: Without it the built-in enrichment prompts are used.
//   - RateLimitStore: Without it rate limiting is process-local only.
//   - SyncRunStore: Without it sync runs are not recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
