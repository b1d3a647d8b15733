// Package reembed recomputes the embedding of every indexed document, for
// example after switching embedding models. Records are read from a source
// index with the Scanner capability and written to a target index, which
// may be the same one.
package reembed
