package vectorindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

const (
	payloadImageID  = "image_id"
	payloadOwnerID  = "owner_id"
	payloadFilename = "filename"
	payloadCaption  = "caption"

	// qdrantMaxMessageSize fits a batch of 768-d vectors with payloads.
	qdrantMaxMessageSize = 32 * 1024 * 1024
)

// pointNamespace derives stable Qdrant point UUIDs from image IDs.
var pointNamespace = uuid.MustParse("6d1c5f0e-6a0b-4c36-9f55-3f0f4f3bd8a1")

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// QdrantIndex stores vectors in a Qdrant collection over gRPC.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
}

// NewQdrantIndex connects to Qdrant, verifies health and ensures the
// collection and its owner payload index exist.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(qdrantMaxMessageSize),
				grpc.MaxCallSendMsgSize(qdrantMaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	idx := &QdrantIndex{client: client, collection: cfg.Collection, dim: cfg.Dimension}

	if err := idx.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", q.collection, err)
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collection,
		FieldName:      payloadOwnerID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("create owner index: %w", err)
	}
	return nil
}

// PointID returns the Qdrant point UUID for an image ID.
func PointID(imageID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(imageID)).String()
}

// ownerFilter restricts a query to one owner.
func ownerFilter(scope Scope) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: payloadOwnerID,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: scope.OwnerID},
						},
					},
				},
			},
		},
	}
}

func recordPayload(r Record) map[string]*qdrant.Value {
	str := func(s string) *qdrant.Value {
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
	}
	return map[string]*qdrant.Value{
		payloadImageID:  str(r.ID),
		payloadOwnerID:  str(r.Metadata.OwnerID),
		payloadFilename: str(r.Metadata.Filename),
		payloadCaption:  str(r.Metadata.Caption),
	}
}

func matchFromPoint(p *qdrant.ScoredPoint) Match {
	payload := p.GetPayload()
	get := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	return Match{
		ID:    get(payloadImageID),
		Score: p.GetScore(),
		Metadata: Metadata{
			OwnerID:  get(payloadOwnerID),
			Filename: get(payloadFilename),
			Caption:  get(payloadCaption),
		},
	}
}

// Upsert writes r and waits for it to be searchable.
func (q *QdrantIndex) Upsert(ctx context.Context, r Record) error {
	if err := validateRecord(r, q.dim); err != nil {
		return err
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(PointID(r.ID)),
				Vectors: qdrant.NewVectors(r.Vector...),
				Payload: recordPayload(r),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert point %s: %w", r.ID, err)
	}
	return nil
}

// Query searches with the owner filter attached to the request.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int, scope Scope) ([]Match, error) {
	if err := validateQuery(vector, topK, scope, q.dim); err != nil {
		return nil, err
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         ownerFilter(scope),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", q.collection, err)
	}

	matches := make([]Match, 0, len(points))
	for _, p := range points {
		matches = append(matches, matchFromPoint(p))
	}
	return matches, nil
}

// Delete removes the point of id.
func (q *QdrantIndex) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidRecord)
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewIDUUID(PointID(id))},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}
	return nil
}

// Ping runs the Qdrant health check.
func (q *QdrantIndex) Ping(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check: %w", err)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
