// Package recall implements hybrid search over temporally-aware knowledge
// graphs. A single request fans out lexical, vector, and graph-traversal
// retrieval channels across the selected entity classes (edges, nodes,
// episodes, communities), filters candidates by bitemporal validity, fuses
// each class's channels with a configurable reranker, and returns results
// grouped per class.
//
// The root package exposes the Engine facade; pkg/search holds the
// orchestrator, pkg/rerank the fusion strategies, and pkg/store the Neo4j
// adapter behind the retrieval channels.
package recall
