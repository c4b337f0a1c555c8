package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/soundprediction/recall/pkg/types"
)

// Index names expected in the backing database. Fulltext indexes cover the
// searchable text per class; vector indexes cover the precomputed embeddings.
const (
	edgeFulltextIndex      = "edge_name_and_fact"
	nodeFulltextIndex      = "node_name_and_summary"
	episodeFulltextIndex   = "episode_content"
	communityFulltextIndex = "community_name"

	edgeVectorIndex      = "edge_fact_embedding"
	nodeVectorIndex      = "node_name_embedding"
	episodeVectorIndex   = "episode_content_embedding"
	communityVectorIndex = "community_name_embedding"
)

// traversalSeedLimit caps how many fulltext-matched seed nodes anchor a
// breadth-first expansion.
const traversalSeedLimit = 5

// DefaultTraversalDepth bounds breadth-first expansion when none is configured.
const DefaultTraversalDepth = 2

// Neo4jStore implements GraphStore against a Neo4j (or Neo4j-protocol
// compatible) database.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
	maxDepth int
}

// NewNeo4jStore creates a store backed by the given bolt URI.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{
		client:   client,
		database: database,
		maxDepth: DefaultTraversalDepth,
	}, nil
}

// SetMaxTraversalDepth overrides the breadth-first expansion bound.
func (s *Neo4jStore) SetMaxTraversalDepth(depth int) {
	if depth > 0 {
		s.maxDepth = depth
	}
}

// Ping verifies connectivity to the backing database.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.client.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// QueryLexical implements GraphStore using the class's fulltext index.
func (s *Neo4jStore) QueryLexical(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error) {
	var cypher string
	switch class {
	case types.ClassEdge:
		cypher = fmt.Sprintf(`
			CALL db.index.fulltext.queryRelationships('%s', $query, {limit: $limit})
			YIELD relationship AS rel, score
			MATCH (src:Entity)-[r:RELATES_TO]->(tgt:Entity)
			WHERE r = rel AND ($group_id = '' OR r.group_id = $group_id)
			RETURN r.uuid AS id, r.name AS name, r.fact AS content, score,
			       src.uuid AS source_id, tgt.uuid AS target_id,
			       r.valid_at AS valid_from, r.invalid_at AS valid_to,
			       r.created_at AS created_at, r.fact_embedding AS embedding,
			       r.group_id AS group_id
			LIMIT $limit`, edgeFulltextIndex)
	case types.ClassNode:
		cypher = fmt.Sprintf(`
			CALL db.index.fulltext.queryNodes('%s', $query, {limit: $limit})
			YIELD node AS n, score
			WHERE n:Entity AND ($group_id = '' OR n.group_id = $group_id)
			RETURN n.uuid AS id, n.name AS name, coalesce(n.summary, n.name) AS content, score,
			       n.created_at AS valid_from, null AS valid_to,
			       n.created_at AS created_at, n.name_embedding AS embedding,
			       n.group_id AS group_id
			LIMIT $limit`, nodeFulltextIndex)
	case types.ClassEpisode:
		cypher = fmt.Sprintf(`
			CALL db.index.fulltext.queryNodes('%s', $query, {limit: $limit})
			YIELD node AS n, score
			WHERE n:Episodic AND ($group_id = '' OR n.group_id = $group_id)
			RETURN n.uuid AS id, n.name AS name, n.content AS content, score,
			       n.valid_at AS valid_from, null AS valid_to,
			       n.created_at AS created_at, n.content_embedding AS embedding,
			       n.group_id AS group_id
			LIMIT $limit`, episodeFulltextIndex)
	case types.ClassCommunity:
		cypher = fmt.Sprintf(`
			CALL db.index.fulltext.queryNodes('%s', $query, {limit: $limit})
			YIELD node AS n, score
			WHERE n:Community AND ($group_id = '' OR n.group_id = $group_id)
			RETURN n.uuid AS id, n.name AS name, coalesce(n.summary, n.name) AS content, score,
			       n.created_at AS valid_from, null AS valid_to,
			       n.created_at AS created_at, n.name_embedding AS embedding,
			       n.group_id AS group_id
			LIMIT $limit`, communityFulltextIndex)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownClass, class)
	}

	return s.queryCandidates(ctx, class, cypher, map[string]any{
		"query":    query,
		"group_id": groupID,
		"limit":    limit,
	})
}

// QueryVector implements GraphStore using the class's vector index.
func (s *Neo4jStore) QueryVector(ctx context.Context, class types.EntityClass, vector []float32, groupID string, limit int) ([]*types.Candidate, error) {
	var cypher string
	switch class {
	case types.ClassEdge:
		cypher = fmt.Sprintf(`
			CALL db.index.vector.queryRelationships('%s', $limit, $vector)
			YIELD relationship AS rel, score
			MATCH (src:Entity)-[r:RELATES_TO]->(tgt:Entity)
			WHERE r = rel AND ($group_id = '' OR r.group_id = $group_id)
			RETURN r.uuid AS id, r.name AS name, r.fact AS content, score,
			       src.uuid AS source_id, tgt.uuid AS target_id,
			       r.valid_at AS valid_from, r.invalid_at AS valid_to,
			       r.created_at AS created_at, r.fact_embedding AS embedding,
			       r.group_id AS group_id`, edgeVectorIndex)
	case types.ClassNode:
		cypher = fmt.Sprintf(`
			CALL db.index.vector.queryNodes('%s', $limit, $vector)
			YIELD node AS n, score
			WHERE n:Entity AND ($group_id = '' OR n.group_id = $group_id)
			RETURN n.uuid AS id, n.name AS name, coalesce(n.summary, n.name) AS content, score,
			       n.created_at AS valid_from, null AS valid_to,
			       n.created_at AS created_at, n.name_embedding AS embedding,
			       n.group_id AS group_id`, nodeVectorIndex)
	case types.ClassEpisode:
		cypher = fmt.Sprintf(`
			CALL db.index.vector.queryNodes('%s', $limit, $vector)
			YIELD node AS n, score
			WHERE n:Episodic AND ($group_id = '' OR n.group_id = $group_id)
			RETURN n.uuid AS id, n.name AS name, n.content AS content, score,
			       n.valid_at AS valid_from, null AS valid_to,
			       n.created_at AS created_at, n.content_embedding AS embedding,
			       n.group_id AS group_id`, episodeVectorIndex)
	case types.ClassCommunity:
		cypher = fmt.Sprintf(`
			CALL db.index.vector.queryNodes('%s', $limit, $vector)
			YIELD node AS n, score
			WHERE n:Community AND ($group_id = '' OR n.group_id = $group_id)
			RETURN n.uuid AS id, n.name AS name, coalesce(n.summary, n.name) AS content, score,
			       n.created_at AS valid_from, null AS valid_to,
			       n.created_at AS created_at, n.name_embedding AS embedding,
			       n.group_id AS group_id`, communityVectorIndex)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownClass, class)
	}

	return s.queryCandidates(ctx, class, cypher, map[string]any{
		"vector":   vector,
		"group_id": groupID,
		"limit":    limit,
	})
}

// QueryTraversal implements GraphStore via bounded breadth-first expansion.
// Seed nodes come from a fulltext match on the query text; the expansion
// bound cannot be a Cypher parameter so it is baked into the pattern.
func (s *Neo4jStore) QueryTraversal(ctx context.Context, class types.EntityClass, query, groupID string, limit int) ([]*types.Candidate, error) {
	var cypher string
	switch class {
	case types.ClassEdge:
		cypher = fmt.Sprintf(`
			CALL db.index.fulltext.queryNodes('%s', $query, {limit: $seeds})
			YIELD node AS seed
			WHERE seed:Entity AND ($group_id = '' OR seed.group_id = $group_id)
			MATCH path = (seed)-[:RELATES_TO*1..%d]-(:Entity)
			UNWIND relationships(path) AS r
			WITH DISTINCT r, min(length(path)) AS depth
			MATCH (src:Entity)-[r]->(tgt:Entity)
			RETURN r.uuid AS id, r.name AS name, r.fact AS content,
			       1.0 / (1.0 + depth) AS score,
			       src.uuid AS source_id, tgt.uuid AS target_id,
			       r.valid_at AS valid_from, r.invalid_at AS valid_to,
			       r.created_at AS created_at, r.fact_embedding AS embedding,
			       r.group_id AS group_id
			ORDER BY score DESC
			LIMIT $limit`, nodeFulltextIndex, s.maxDepth)
	case types.ClassNode:
		cypher = fmt.Sprintf(`
			CALL db.index.fulltext.queryNodes('%s', $query, {limit: $seeds})
			YIELD node AS seed
			WHERE seed:Entity AND ($group_id = '' OR seed.group_id = $group_id)
			MATCH path = (seed)-[:RELATES_TO*1..%d]-(n:Entity)
			WHERE n <> seed
			WITH DISTINCT n, min(length(path)) AS depth
			RETURN n.uuid AS id, n.name AS name, coalesce(n.summary, n.name) AS content,
			       1.0 / (1.0 + depth) AS score,
			       n.created_at AS valid_from, null AS valid_to,
			       n.created_at AS created_at, n.name_embedding AS embedding,
			       n.group_id AS group_id
			ORDER BY score DESC
			LIMIT $limit`, nodeFulltextIndex, s.maxDepth)
	case types.ClassEpisode:
		cypher = fmt.Sprintf(`
			CALL db.index.fulltext.queryNodes('%s', $query, {limit: $seeds})
			YIELD node AS seed
			WHERE seed:Entity AND ($group_id = '' OR seed.group_id = $group_id)
			MATCH path = (seed)-[:RELATES_TO*0..%d]-(m:Entity)
			MATCH (n:Episodic)-[:MENTIONS]->(m)
			WITH DISTINCT n, min(length(path)) AS depth
			RETURN n.uuid AS id, n.name AS name, n.content AS content,
			       1.0 / (1.0 + depth) AS score,
			       n.valid_at AS valid_from, null AS valid_to,
			       n.created_at AS created_at, n.content_embedding AS embedding,
			       n.group_id AS group_id
			ORDER BY score DESC
			LIMIT $limit`, nodeFulltextIndex, s.maxDepth)
	default:
		// Communities are never traversed; the planner drops the toggle.
		return nil, fmt.Errorf("traversal not supported for class %q", class)
	}

	return s.queryCandidates(ctx, class, cypher, map[string]any{
		"query":    query,
		"group_id": groupID,
		"seeds":    traversalSeedLimit,
		"limit":    limit,
	})
}

func (s *Neo4jStore) queryCandidates(ctx context.Context, class types.EntityClass, cypher string, params map[string]any) ([]*types.Candidate, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		candidates := make([]*types.Candidate, 0, len(records))
		for _, record := range records {
			values := record.AsMap()
			c := &types.Candidate{
				ID:        asString(values["id"]),
				Class:     class,
				Name:      asString(values["name"]),
				Content:   asString(values["content"]),
				Score:     asFloat64(values["score"]),
				GroupID:   asString(values["group_id"]),
				SourceID:  asString(values["source_id"]),
				TargetID:  asString(values["target_id"]),
				ValidFrom: asTime(values["valid_from"]),
				ValidTo:   asTimePtr(values["valid_to"]),
				CreatedAt: asTime(values["created_at"]),
				Embedding: asFloat32Slice(values["embedding"]),
			}
			if c.ID == "" {
				continue
			}
			candidates = append(candidates, c)
		}
		return candidates, nil
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return result.([]*types.Candidate), nil
}

// wrapStoreErr maps driver failures onto the store's failure taxonomy so the
// orchestrator can tell a timed-out channel from an unreachable backend.
func wrapStoreErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	case neo4j.IsConnectivityError(err):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}

func asTimePtr(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}

func asFloat32Slice(v any) []float32 {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, item := range raw {
		out = append(out, float32(asFloat64(item)))
	}
	return out
}
