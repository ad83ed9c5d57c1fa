// Package batch copies many archive files out of a backing stream.
//
// Files are read in stream order. Payloads that lie close together are
// fetched with one ReadAt, and reads can run ahead of the sink within a byte
// and group budget while the sink still sees files in offset order.
package batch
