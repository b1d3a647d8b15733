// Package server exposes the query orchestrator and the ingestion feed over
// HTTP.
//
// Routes:
//
//	POST   /query           answer a question
//	POST   /ingest          enqueue one event or an array of events
//	DELETE /documents/{id}  remove a document from the index
//	GET    /healthz         index reachability
//	GET    /metrics         Prometheus metrics
//
// Errors are returned as {"error": {"code": ..., "message": ...}}. Status
// classes are stable: 400 for bad input, 500 for misconfiguration on our
// side, 502 when an upstream dependency fails and 503 when the service
// cannot accept work.
package server
