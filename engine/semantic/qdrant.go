package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/DocMesh/docmesh-mvp/engine/domain"
)

// Payload keys used for every stored chunk.
const (
	payloadChunkID    = "chunk_id"
	payloadContent    = "content"
	payloadDocID      = "doc_id"
	payloadChunkIndex = "chunk_index"
	payloadFilename   = "filename"
)

// QdrantIndex is the Qdrant-backed Index. Qdrant point ids must be UUIDs,
// so the positional chunk id is mapped to a deterministic SHA1 UUID and
// carried verbatim in the payload.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	embed       Embedder
}

// NewQdrant connects to Qdrant at the given gRPC address.
func NewQdrant(addr, collection string, embed Embedder) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		embed:       embed,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", q.collection, err)
	}
	return nil
}

// PointID maps a chunk id to its deterministic Qdrant point UUID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docmesh:"+chunkID)).String()
}

// Add embeds texts and inserts them as new points. Fails if any chunk id is
// already present.
func (q *QdrantIndex) Add(ctx context.Context, ids, texts []string, metas []domain.ChunkMeta) error {
	if len(ids) == 0 {
		return nil
	}
	if err := validateAdd(ids, texts, metas); err != nil {
		return err
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)}}
	}

	existing, err := q.points.Get(ctx, &pb.GetPoints{
		CollectionName: q.collection,
		Ids:            pointIDs,
	})
	if err != nil {
		return domain.NewIndexError("add", fmt.Errorf("get existing points: %w", err))
	}
	if n := len(existing.GetResult()); n > 0 {
		return domain.NewIndexError("add", fmt.Errorf("%w: %d of %d ids", domain.ErrChunkExists, n, len(ids)))
	}

	vectors, err := q.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.NewIndexError("add", fmt.Errorf("embed: %w", err))
	}

	points := make([]*pb.PointStruct, len(ids))
	for i := range ids {
		points[i] = &pb.PointStruct{
			Id: pointIDs[i],
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vectors[i]},
				},
			},
			Payload: map[string]*pb.Value{
				payloadChunkID:    {Kind: &pb.Value_StringValue{StringValue: ids[i]}},
				payloadContent:    {Kind: &pb.Value_StringValue{StringValue: texts[i]}},
				payloadDocID:      {Kind: &pb.Value_IntegerValue{IntegerValue: metas[i].DocID}},
				payloadChunkIndex: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(metas[i].ChunkIndex)}},
				payloadFilename:   {Kind: &pb.Value_StringValue{StringValue: metas[i].Filename}},
			},
		}
	}

	wait := true
	_, err = q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return domain.NewIndexError("add", fmt.Errorf("upsert %d points: %w", len(points), err))
	}
	return nil
}

// Query embeds the query text and performs k-NN search.
func (q *QdrantIndex) Query(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}
	qv, err := q.embed.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewIndexError("query", fmt.Errorf("embed: %w", err))
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         qv,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, domain.NewIndexError("query", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		payload := r.GetPayload()
		hits[i] = Hit{
			ID:    payload[payloadChunkID].GetStringValue(),
			Text:  payload[payloadContent].GetStringValue(),
			Score: r.GetScore(),
			Meta: domain.ChunkMeta{
				DocID:      payload[payloadDocID].GetIntegerValue(),
				ChunkIndex: int(payload[payloadChunkIndex].GetIntegerValue()),
				Filename:   payload[payloadFilename].GetStringValue(),
			},
		}
	}
	return hits, nil
}

// Delete removes points by chunk id. Absent ids are ignored by Qdrant.
func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)}}
	}

	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return domain.NewIndexError("delete", err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, domain.NewIndexError("count", err)
	}
	return int(resp.GetResult().GetCount()), nil
}
