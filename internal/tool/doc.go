// Package tool defines the descriptors of callable capabilities exposed to the
// language model and the immutable registry the orchestrator resolves them
// from. Input schemas are JSON Schema documents generated from Go argument
// structs and enforced before a handler runs.
package tool
