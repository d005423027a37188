// Package archive defines the magazine archive domain: issues, discovery
// candidates, ingestion outcomes, and the narrow interfaces the pipeline and
// query service are built on.
package archive
