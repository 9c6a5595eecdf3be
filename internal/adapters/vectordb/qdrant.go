package vectordb

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

const DefaultQdrantCollection = "chat_messages"

// pointNamespace scopes the name-based UUIDs derived from message ids.
var pointNamespace = uuid.MustParse("9a4b5a3e-6a52-4d0e-8f4f-2f1f3b7c9d10")

// Payload keys.
const (
	payloadID         = "id"
	payloadDocument   = "document"
	payloadSender     = "sender"
	payloadTimestamp  = "timestamp"
	payloadIsSystem   = "is_system"
	payloadOriginalID = "original_id"
)

// timestampLayouts are the ISO-8601 forms accepted as range bounds. Bounds without
// a zone are read as UTC, matching how Qdrant reads zone-less payload datetimes.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// QdrantIndex stores records as Qdrant points over gRPC. Message ids map to
// deterministic UUIDs, so re-upserting a message overwrites its point.
type QdrantIndex struct {
	mu          sync.RWMutex
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	collection  string
	dimension   int // 0 until the collection is known to exist
}

// NewQdrantIndex connects to Qdrant's gRPC port.
func NewQdrantIndex(ctx context.Context, host string, port int, collection string) (*QdrantIndex, error) {
	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 6334
	}
	addr := fmt.Sprintf("%s:%d", host, port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s: %w", addr, err)
	}

	idx := NewQdrantIndexWithClients(qdrantclient.NewCollectionsClient(conn), qdrantclient.NewPointsClient(conn), collection)
	idx.conn = conn
	if err := idx.loadDimension(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	log.Printf("[INFO] Connected to Qdrant at %s, collection %s", addr, idx.collection)
	return idx, nil
}

// NewQdrantIndexWithClients builds an index over existing gRPC clients.
func NewQdrantIndexWithClients(collections qdrantclient.CollectionsClient, points qdrantclient.PointsClient, collection string) *QdrantIndex {
	if collection == "" {
		collection = DefaultQdrantCollection
	}
	return &QdrantIndex{
		collections: collections,
		points:      points,
		collection:  collection,
	}
}

// loadDimension reads the vector size of an existing collection.
func (q *QdrantIndex) loadDimension(ctx context.Context) error {
	exists, err := q.exists(ctx)
	if err != nil || !exists {
		return err
	}
	info, err := q.collections.Get(ctx, &qdrantclient.GetCollectionInfoRequest{CollectionName: q.collection})
	if err != nil {
		return fmt.Errorf("reading collection %s: %w", q.collection, err)
	}
	q.dimension = int(info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	return nil
}

func (q *QdrantIndex) exists(ctx context.Context) (bool, error) {
	resp, err := q.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("listing collections: %w", err)
	}
	for _, c := range resp.GetCollections() {
		if c.GetName() == q.collection {
			return true, nil
		}
	}
	return false, nil
}

// Upsert creates the collection on first write, then writes all points in one request.
func (q *QdrantIndex) Upsert(ctx context.Context, records []entities.IndexRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	dim, err := checkRecords(records, q.dimension)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	if q.dimension == 0 {
		_, err := q.collections.Create(ctx, &qdrantclient.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: &qdrantclient.VectorsConfig{
				Config: &qdrantclient.VectorsConfig_Params{
					Params: &qdrantclient.VectorParams{
						Size:     uint64(dim),
						Distance: qdrantclient.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("%w: creating collection %s: %v", entities.ErrIndexWrite, q.collection, err)
		}
		q.dimension = dim
	}

	points := make([]*qdrantclient.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: PointID(r.ID)},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: r.Embedding},
				},
			},
			Payload: map[string]*qdrantclient.Value{
				payloadID:         stringValue(r.ID),
				payloadDocument:   stringValue(r.Document),
				payloadSender:     stringValue(r.Metadata.Sender),
				payloadTimestamp:  stringValue(r.Metadata.Timestamp),
				payloadIsSystem:   {Kind: &qdrantclient.Value_BoolValue{BoolValue: r.Metadata.IsSystem}},
				payloadOriginalID: stringValue(r.Metadata.OriginalID),
			},
		}
	}

	wait := true
	if _, err := q.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("%w: upserting %d points: %v", entities.ErrIndexWrite, len(points), err)
	}
	return nil
}

// Query runs a filtered search. Cosine scores are converted to distances.
func (q *QdrantIndex) Query(ctx context.Context, embedding []float32, k int, filter *entities.FilterSpec) ([]entities.Match, error) {
	if err := checkQuery(embedding, k, filter); err != nil {
		return nil, err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.dimension == 0 {
		return []entities.Match{}, nil
	}
	if len(embedding) != q.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", entities.ErrIndexQuery, len(embedding), q.dimension)
	}

	qf, err := qdrantFilter(filter)
	if err != nil {
		return nil, err
	}

	resp, err := q.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: q.collection,
		Vector:         embedding,
		Filter:         qf,
		Limit:          uint64(k),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrIndexQuery, err)
	}

	matches := make([]entities.Match, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		payload := p.GetPayload()
		matches = append(matches, entities.Match{
			ID:       payload[payloadID].GetStringValue(),
			Document: payload[payloadDocument].GetStringValue(),
			Distance: 1 - float64(p.GetScore()),
			Metadata: entities.Metadata{
				Sender:     payload[payloadSender].GetStringValue(),
				Timestamp:  payload[payloadTimestamp].GetStringValue(),
				IsSystem:   payload[payloadIsSystem].GetBoolValue(),
				OriginalID: payload[payloadOriginalID].GetStringValue(),
			},
		})
	}
	return topK(matches, k), nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.dimension == 0 {
		return 0, nil
	}
	exact := true
	resp, err := q.points.Count(ctx, &qdrantclient.CountPoints{CollectionName: q.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("%w: counting points: %v", entities.ErrIndexQuery, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Clear drops the collection. The next Upsert recreates it.
func (q *QdrantIndex) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.dimension == 0 {
		return nil
	}
	if _, err := q.collections.Delete(ctx, &qdrantclient.DeleteCollection{CollectionName: q.collection}); err != nil {
		return fmt.Errorf("%w: deleting collection %s: %v", entities.ErrIndexWrite, q.collection, err)
	}
	q.dimension = 0
	return nil
}

func (q *QdrantIndex) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

// PointID maps a message id to its stable point UUID.
func PointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// qdrantFilter translates a filter into must-conditions. Timestamp bounds become a
// datetime range, which orders the same way as the lexicographic comparison for
// zero-padded ISO-8601 values.
func qdrantFilter(f *entities.FilterSpec) (*qdrantclient.Filter, error) {
	if f == nil || f.IsEmpty() {
		return nil, nil
	}

	var must []*qdrantclient.Condition
	if f.Sender != nil {
		must = append(must, fieldCondition(&qdrantclient.FieldCondition{
			Key:   payloadSender,
			Match: &qdrantclient.Match{MatchValue: &qdrantclient.Match_Keyword{Keyword: *f.Sender}},
		}))
	}
	if f.IsSystem != nil {
		must = append(must, fieldCondition(&qdrantclient.FieldCondition{
			Key:   payloadIsSystem,
			Match: &qdrantclient.Match{MatchValue: &qdrantclient.Match_Boolean{Boolean: *f.IsSystem}},
		}))
	}
	if f.Timestamp != nil {
		rng := &qdrantclient.DatetimeRange{}
		if f.Timestamp.Gte != "" {
			ts, err := parseBound(f.Timestamp.Gte)
			if err != nil {
				return nil, err
			}
			rng.Gte = ts
		}
		if f.Timestamp.Lte != "" {
			ts, err := parseBound(f.Timestamp.Lte)
			if err != nil {
				return nil, err
			}
			rng.Lte = ts
		}
		must = append(must, fieldCondition(&qdrantclient.FieldCondition{
			Key:           payloadTimestamp,
			DatetimeRange: rng,
		}))
	}
	return &qdrantclient.Filter{Must: must}, nil
}

func fieldCondition(fc *qdrantclient.FieldCondition) *qdrantclient.Condition {
	return &qdrantclient.Condition{ConditionOneOf: &qdrantclient.Condition_Field{Field: fc}}
}

func parseBound(s string) (*timestamppb.Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return timestamppb.New(t), nil
		}
	}
	return nil, fmt.Errorf("%w: timestamp bound %q is not ISO-8601", entities.ErrIndexQuery, s)
}

func stringValue(s string) *qdrantclient.Value {
	return &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: s}}
}
