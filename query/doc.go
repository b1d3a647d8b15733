// Package query answers questions from the vector index.
//
// An Orchestrator validates a request, embeds the question, retrieves the
// nearest documents, assembles them into a bounded context, and asks the
// generator for an answer. Embedding, retrieval and generation share one
// deadline. Nothing is retried within a request: any step failing fails the
// request with ErrRetrievalFailed or ErrGenerationFailed, and no partial
// answer is returned.
package query
