// Package qdrant stores chunk vectors in a single Qdrant collection over gRPC.
// Every point carries its subject id and every query filters on it.
package qdrant

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"studyrag/internal/domain"
	"studyrag/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

const (
	keySubject  = "subject_id"
	keyDocument = "document_id"
	keyIndex    = "index"
	keyText     = "text"
	keyDocSeq   = "doc_seq"
)

var pointIDNamespace = uuid.MustParse("6f0c2a55-1d7e-4b53-9a43-2f8f3c1e7d20")

type Config struct {
	// Addr is the gRPC host:port, usually port 6334.
	Addr       string
	APIKey     string
	Collection string
}

// Storage implements vectorstore.Storage on Qdrant.
type Storage struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection  string

	mu    sync.Mutex
	ready bool
}

// Dial connects to Qdrant. The collection is created lazily on the first upsert,
// once the vector size is known.
func Dial(cfg Config) (*Storage, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6334"
	}
	if cfg.Collection == "" {
		cfg.Collection = "studyrag_chunks"
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		key := cfg.APIKey
		opts = append(opts, grpc.WithUnaryInterceptor(func(ctx context.Context, method string, req, reply any,
			cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
			ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
			return invoker(ctx, method, req, reply, cc, callOpts...)
		}))
	}
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", cfg.Addr, err)
	}
	s := New(qdrant.NewPointsClient(conn), qdrant.NewCollectionsClient(conn), cfg.Collection)
	s.conn = conn
	return s, nil
}

// New builds a Storage over existing clients.
func New(points qdrant.PointsClient, collections qdrant.CollectionsClient, collection string) *Storage {
	return &Storage{points: points, collections: collections, collection: collection}
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	_, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		if status.Code(err) != codes.NotFound {
			return fmt.Errorf("qdrant get collection: %w", err)
		}
		_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(dimension),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("qdrant create collection: %w", err)
		}
	}
	s.ready = true
	return nil
}

func (s *Storage) Upsert(ctx context.Context, subjectID, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if err := vectorstore.CheckBatch(chunks, vectors); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return s.DeleteDocument(ctx, subjectID, documentID)
	}
	if err := s.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	seq, err := s.documentSeq(ctx, subjectID, documentID)
	if err != nil {
		return err
	}
	if err := s.DeleteDocument(ctx, subjectID, documentID); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(subjectID, documentID, c.Index)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: map[string]*qdrant.Value{
				keySubject:  stringValue(subjectID),
				keyDocument: stringValue(documentID),
				keyIndex:    intValue(int64(c.Index)),
				keyText:     stringValue(c.Text),
				keyDocSeq:   intValue(seq),
			},
		}
	}
	wait := true
	resp, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	st := resp.GetResult().GetStatus()
	if st != qdrant.UpdateStatus_Acknowledged && st != qdrant.UpdateStatus_Completed {
		return fmt.Errorf("qdrant upsert status: %s", st.String())
	}
	return nil
}

// documentSeq returns the insertion sequence already recorded for the document,
// or a new one based on the current time.
func (s *Storage) documentSeq(ctx context.Context, subjectID, documentID string) (int64, error) {
	limit := uint32(1)
	resp, err := s.points.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         documentFilter(subjectID, documentID),
		Limit:          &limit,
		WithPayload:    withPayload(),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant scroll: %w", err)
	}
	for _, p := range resp.GetResult() {
		if v, ok := p.GetPayload()[keyDocSeq]; ok {
			return v.GetIntegerValue(), nil
		}
	}
	return time.Now().UnixNano(), nil
}

func (s *Storage) Search(ctx context.Context, subjectID string, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 3
	}
	// Over-fetch so ties at the cut-off are ordered locally.
	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Filter:         subjectFilter(subjectID),
		Limit:          uint64(k * 2),
		WithPayload:    withPayload(),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	cands := make([]vectorstore.Candidate, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		payload := p.GetPayload()
		if payload[keySubject].GetStringValue() != subjectID {
			continue
		}
		cands = append(cands, vectorstore.Candidate{
			Result: domain.SearchResult{
				Chunk: domain.Chunk{
					SubjectID:  subjectID,
					DocumentID: payload[keyDocument].GetStringValue(),
					Index:      int(payload[keyIndex].GetIntegerValue()),
					Text:       payload[keyText].GetStringValue(),
				},
				Score: float64(p.GetScore()),
			},
			DocOrder: payload[keyDocSeq].GetIntegerValue(),
		})
	}
	return vectorstore.TopK(cands, k), nil
}

func (s *Storage) Count(ctx context.Context, subjectID string) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         subjectFilter(subjectID),
		Exact:          &exact,
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *Storage) DeleteDocument(ctx context.Context, subjectID, documentID string) error {
	wait := true
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: documentFilter(subjectID, documentID)},
		},
	})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

func (s *Storage) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// PointID derives a stable point id from the chunk coordinates.
func PointID(subjectID, documentID string, index int) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(subjectID+"|"+documentID+"|"+strconv.Itoa(index))).String()
}

func subjectFilter(subjectID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{matchKeyword(keySubject, subjectID)}}
}

func documentFilter(subjectID, documentID string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{
		matchKeyword(keySubject, subjectID),
		matchKeyword(keyDocument, documentID),
	}}
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func withPayload() *qdrant.WithPayloadSelector {
	return &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}}
}

func stringValue(v string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
}

func intValue(v int64) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: v}}
}
