// Package types defines the shared data model for the retrieval engine:
// entity classes, retrieval channels, rerank strategies, candidates, ranked
// results, and the request/response envelopes. Everything here is plain data;
// all behavior lives in the packages that consume these types.
package types
