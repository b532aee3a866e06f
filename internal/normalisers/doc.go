// Package normalisers turns uploaded files into plain text. Each subpackage
// implements driven.Extractor for one document format; this package holds
// the dispatch registry and the helpers the format packages share.
//
// Extractors are registered with the Registry at startup.
package normalisers
