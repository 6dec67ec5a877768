// Package semantic owns the Qdrant collection holding speech embeddings.
// It implements corpus.VectorIndex; speech records themselves stay in the
// primary corpus store.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/WessleyAI/unga-engine/engine/corpus"
	"github.com/WessleyAI/unga-engine/engine/domain"
)

// PointsClient is the subset of the Qdrant points API the index uses.
type PointsClient interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsClient is the subset of the Qdrant collections API the index uses.
type CollectionsClient interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Index is a Qdrant-backed nearest-neighbour index over speeches.
type Index struct {
	conn        *grpc.ClientConn
	points      PointsClient
	collections CollectionsClient
	collection  string
}

var _ corpus.VectorIndex = (*Index)(nil)

// New connects to Qdrant at the given gRPC address.
func New(addr, collection string) (*Index, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds an Index over existing clients.
func NewWithClients(points PointsClient, collections CollectionsClient, collection string) *Index {
	return &Index{points: points, collections: collections, collection: collection}
}

// Close closes the gRPC connection, if the index owns one.
func (x *Index) Close() error {
	if x.conn == nil {
		return nil
	}
	return x.conn.Close()
}

// EnsureCollection creates the collection with cosine distance if missing.
func (x *Index) EnsureCollection(ctx context.Context, dims int) error {
	list, err := x.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == x.collection {
			return nil
		}
	}

	_, err = x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", x.collection, err)
	}
	return nil
}

// DeleteCollection drops the collection.
func (x *Index) DeleteCollection(ctx context.Context) error {
	if _, err := x.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: x.collection}); err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", x.collection, err)
	}
	return nil
}

// Upsert indexes one embedded speech.
func (x *Index) Upsert(ctx context.Context, s domain.Speech) error {
	return x.UpsertBatch(ctx, []domain.Speech{s})
}

// UpsertBatch indexes speeches in one request. Speeches without an
// embedding are skipped.
func (x *Index) UpsertBatch(ctx context.Context, speeches []domain.Speech) error {
	points := make([]*pb.PointStruct, 0, len(speeches))
	for _, s := range speeches {
		if !s.HasEmbedding() {
			continue
		}
		points = append(points, &pb.PointStruct{
			Id: pointID(s.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: s.Embedding}},
			},
			Payload: payload(s),
		})
	}
	if len(points) == 0 {
		return nil
	}

	wait := true
	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Delete removes the points of the given speech IDs.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pids := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}
	wait := true
	_, err := x.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: x.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{Points: &pb.PointsIdsList{Ids: pids}},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete %d points: %w", len(ids), err)
	}
	return nil
}

// Query returns the IDs of the limit nearest speeches to vec.
func (x *Index) Query(ctx context.Context, vec []float32, limit int) ([]corpus.IndexHit, error) {
	return x.QueryFiltered(ctx, vec, limit, Filter{})
}

// Filter narrows a query by payload fields. Empty fields do not filter.
type Filter struct {
	CountryCodes []string
	Years        []int
}

// QueryFiltered is Query restricted to speeches matching f.
func (x *Index) QueryFiltered(ctx context.Context, vec []float32, limit int, f Filter) ([]corpus.IndexHit, error) {
	req := &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vec,
		Limit:          uint64(limit),
	}
	if must := f.conditions(); len(must) > 0 {
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := x.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}
	hits := make([]corpus.IndexHit, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		hits = append(hits, corpus.IndexHit{ID: r.GetId().GetUuid(), Score: float64(r.GetScore())})
	}
	return hits, nil
}

func pointID(id string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}
