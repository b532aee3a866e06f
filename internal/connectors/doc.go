// Package connectors provides document sources that feed the upload
// boundary. The filesystem connector watches an inbox directory.
package connectors
