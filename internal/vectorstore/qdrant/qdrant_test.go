package qdrant

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"studyrag/internal/embedding"
	"studyrag/internal/vectorstore"
	"studyrag/internal/vectorstore/vectorstoretest"
)

type fakePoint struct {
	vector  []float32
	payload map[string]*qdrant.Value
}

// fakeQdrant evaluates keyword filters and cosine scoring in memory.
type fakeQdrant struct {
	mu       sync.Mutex
	created  bool
	creates  int
	points   map[string]fakePoint
	searches []*qdrant.SearchPoints
}

type fakePoints struct {
	qdrant.PointsClient
	f *fakeQdrant
}

type fakeCollections struct {
	qdrant.CollectionsClient
	f *fakeQdrant
}

func (c fakeCollections) Get(context.Context, *qdrant.GetCollectionInfoRequest, ...grpc.CallOption) (*qdrant.GetCollectionInfoResponse, error) {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.created {
		return nil, status.Error(codes.NotFound, "collection missing")
	}
	return &qdrant.GetCollectionInfoResponse{}, nil
}

func (c fakeCollections) Create(context.Context, *qdrant.CreateCollection, ...grpc.CallOption) (*qdrant.CollectionOperationResponse, error) {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = true
	f.creates++
	return &qdrant.CollectionOperationResponse{Result: true}, nil
}

func (fp fakePoints) Upsert(_ context.Context, in *qdrant.UpsertPoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f := fp.f
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range in.GetPoints() {
		f.points[p.GetId().GetUuid()] = fakePoint{vector: p.GetVectors().GetVector().GetData(), payload: p.GetPayload()}
	}
	return &qdrant.PointsOperationResponse{Result: &qdrant.UpdateResult{Status: qdrant.UpdateStatus_Completed}}, nil
}

func (fp fakePoints) Delete(_ context.Context, in *qdrant.DeletePoints, _ ...grpc.CallOption) (*qdrant.PointsOperationResponse, error) {
	f := fp.f
	f.mu.Lock()
	defer f.mu.Unlock()
	filter := in.GetPoints().GetFilter()
	for id, p := range f.points {
		if matches(filter, p.payload) {
			delete(f.points, id)
		}
	}
	return &qdrant.PointsOperationResponse{Result: &qdrant.UpdateResult{Status: qdrant.UpdateStatus_Completed}}, nil
}

func (fp fakePoints) Scroll(_ context.Context, in *qdrant.ScrollPoints, _ ...grpc.CallOption) (*qdrant.ScrollResponse, error) {
	f := fp.f
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*qdrant.RetrievedPoint
	for id, p := range f.points {
		if matches(in.GetFilter(), p.payload) && len(out) < int(in.GetLimit()) {
			out = append(out, &qdrant.RetrievedPoint{Id: qdrant.NewID(id), Payload: p.payload})
		}
	}
	return &qdrant.ScrollResponse{Result: out}, nil
}

func (fp fakePoints) Search(_ context.Context, in *qdrant.SearchPoints, _ ...grpc.CallOption) (*qdrant.SearchResponse, error) {
	f := fp.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, in)
	if !f.created {
		return nil, status.Error(codes.NotFound, "collection missing")
	}
	var out []*qdrant.ScoredPoint
	for id, p := range f.points {
		if !matches(in.GetFilter(), p.payload) {
			continue
		}
		if len(p.vector) != len(in.GetVector()) {
			return nil, status.Error(codes.InvalidArgument, "vector dimension error")
		}
		out = append(out, &qdrant.ScoredPoint{
			Id:      qdrant.NewID(id),
			Payload: p.payload,
			Score:   float32(embedding.Cosine(p.vector, in.GetVector())),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if uint64(len(out)) > in.GetLimit() {
		out = out[:in.GetLimit()]
	}
	return &qdrant.SearchResponse{Result: out}, nil
}

func (fp fakePoints) Count(_ context.Context, in *qdrant.CountPoints, _ ...grpc.CallOption) (*qdrant.CountResponse, error) {
	f := fp.f
	f.mu.Lock()
	defer f.mu.Unlock()
	var n uint64
	for _, p := range f.points {
		if matches(in.GetFilter(), p.payload) {
			n++
		}
	}
	return &qdrant.CountResponse{Result: &qdrant.CountResult{Count: n}}, nil
}

func matches(filter *qdrant.Filter, payload map[string]*qdrant.Value) bool {
	for _, c := range filter.GetMust() {
		field := c.GetField()
		if payload[field.GetKey()].GetStringValue() != field.GetMatch().GetKeyword() {
			return false
		}
	}
	return true
}

func newFakeStorage() (*Storage, *fakeQdrant) {
	f := &fakeQdrant{points: map[string]fakePoint{}}
	return New(fakePoints{f: f}, fakeCollections{f: f}, "test"), f
}

func TestStorage(t *testing.T) {
	vectorstoretest.Run(t, func(t *testing.T) vectorstore.Storage {
		s, _ := newFakeStorage()
		return s
	})
}

func TestStorage_CreatesCollectionOnce(t *testing.T) {
	s, f := newFakeStorage()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "bio", "d1", vectorstoretest.Chunks("bio", "d1", 1), [][]float32{{1, 0}}))
	require.NoError(t, s.Upsert(ctx, "bio", "d2", vectorstoretest.Chunks("bio", "d2", 1), [][]float32{{0, 1}}))
	assert.Equal(t, 1, f.creates)
}

func TestStorage_SearchAlwaysFiltersBySubject(t *testing.T) {
	s, f := newFakeStorage()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "bio", "d1", vectorstoretest.Chunks("bio", "d1", 1), [][]float32{{1, 0}}))

	_, err := s.Search(ctx, "bio", []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, f.searches, 1)
	cond := f.searches[0].GetFilter().GetMust()
	require.Len(t, cond, 1)
	assert.Equal(t, keySubject, cond[0].GetField().GetKey())
	assert.Equal(t, "bio", cond[0].GetField().GetMatch().GetKeyword())
}

func TestStorage_SearchBeforeAnyUpsert(t *testing.T) {
	s, _ := newFakeStorage()
	got, err := s.Search(context.Background(), "bio", []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("bio", "d1", 0)
	assert.Equal(t, a, PointID("bio", "d1", 0))
	assert.NotEqual(t, a, PointID("chem", "d1", 0))
	assert.NotEqual(t, a, PointID("bio", "d1", 1))
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestStorage_Live(t *testing.T) {
	addr := os.Getenv("QDRANT_HOST")
	if addr == "" {
		t.Skip("QDRANT_HOST not set")
	}
	vectorstoretest.Run(t, func(t *testing.T) vectorstore.Storage {
		s, err := Dial(Config{Addr: addr, Collection: "studyrag_it_" + strings.ReplaceAll(uuid.NewString(), "-", "")})
		require.NoError(t, err)
		t.Cleanup(func() {
			_, _ = s.collections.Delete(context.Background(), &qdrant.DeleteCollection{CollectionName: s.collection})
			_ = s.Close()
		})
		return s
	})
}
