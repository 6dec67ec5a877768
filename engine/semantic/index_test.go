package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/WessleyAI/unga-engine/engine/domain"
)

// --- Mocks ---

type mockPoints struct {
	upsertErr  error
	deleteErr  error
	searchResp *pb.SearchResponse
	searchErr  error

	upserted *pb.UpsertPoints
	deleted  *pb.DeletePoints
	searched *pb.SearchPoints
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserted = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}
func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleted = in
	return &pb.PointsOperationResponse{}, m.deleteErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searched = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	createErr error
	deleteErr error

	created *pb.CreateCollection
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return &pb.CollectionOperationResponse{Result: true}, m.deleteErr
}

func kenya() domain.Speech {
	return domain.Speech{
		ID: "a1111111-1111-1111-1111-111111111111", CountryCode: "KEN", CountryName: "Kenya",
		Region: "Africa", Session: 54, Year: 1999, Embedding: []float32{1, 0, 0},
	}
}

// --- Tests ---

func TestCloseWithoutConn(t *testing.T) {
	x := NewWithClients(nil, nil, "speeches")
	if err := x.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNew(t *testing.T) {
	// grpc.NewClient does not dial until the first call.
	x, err := New("localhost:0", "speeches")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x.Close()
}

func TestEnsureCollection_AlreadyExists(t *testing.T) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{
		Collections: []*pb.CollectionDescription{{Name: "speeches"}},
	}}
	x := NewWithClients(&mockPoints{}, cols, "speeches")
	if err := x.EnsureCollection(context.Background(), 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.created != nil {
		t.Error("existing collection must not be recreated")
	}
}

func TestEnsureCollection_Creates(t *testing.T) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{
		Collections: []*pb.CollectionDescription{{Name: "other"}},
	}}
	x := NewWithClients(&mockPoints{}, cols, "speeches")
	if err := x.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	params := cols.created.GetVectorsConfig().GetParams()
	if params.GetSize() != 384 || params.GetDistance() != pb.Distance_Cosine {
		t.Errorf("params = %+v", params)
	}
}

func TestEnsureCollection_Errors(t *testing.T) {
	x := NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("rpc fail")}, "speeches")
	if err := x.EnsureCollection(context.Background(), 4); err == nil {
		t.Error("expected list error")
	}
	x = NewWithClients(&mockPoints{}, &mockCollections{
		listResp:  &pb.ListCollectionsResponse{},
		createErr: errors.New("create fail"),
	}, "speeches")
	if err := x.EnsureCollection(context.Background(), 4); err == nil {
		t.Error("expected create error")
	}
}

func TestDeleteCollection(t *testing.T) {
	x := NewWithClients(&mockPoints{}, &mockCollections{}, "speeches")
	if err := x.DeleteCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	x = NewWithClients(&mockPoints{}, &mockCollections{deleteErr: errors.New("fail")}, "speeches")
	if err := x.DeleteCollection(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsertPayload(t *testing.T) {
	pts := &mockPoints{}
	x := NewWithClients(pts, &mockCollections{}, "speeches")
	if err := x.Upsert(context.Background(), kenya()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts.upserted.GetPoints()) != 1 || !pts.upserted.GetWait() {
		t.Fatalf("upsert = %+v", pts.upserted)
	}
	p := pts.upserted.GetPoints()[0]
	if p.GetId().GetUuid() != kenya().ID {
		t.Errorf("id = %v", p.GetId())
	}
	pl := p.GetPayload()
	if pl[keyCountryCode].GetStringValue() != "KEN" || pl[keyYear].GetIntegerValue() != 1999 ||
		pl[keySession].GetIntegerValue() != 54 || pl[keyRegion].GetStringValue() != "Africa" {
		t.Errorf("payload = %v", pl)
	}
	if got := p.GetVectors().GetVector().GetData(); len(got) != 3 {
		t.Errorf("vector = %v", got)
	}
}

func TestUpsertSkipsUnembedded(t *testing.T) {
	pts := &mockPoints{}
	x := NewWithClients(pts, &mockCollections{}, "speeches")
	bare := kenya()
	bare.Embedding = nil
	if err := x.UpsertBatch(context.Background(), []domain.Speech{bare}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.upserted != nil {
		t.Error("no request expected for unembedded speeches")
	}
}

func TestUpsert_Error(t *testing.T) {
	x := NewWithClients(&mockPoints{upsertErr: errors.New("fail")}, &mockCollections{}, "speeches")
	if err := x.Upsert(context.Background(), kenya()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDelete(t *testing.T) {
	pts := &mockPoints{}
	x := NewWithClients(pts, &mockCollections{}, "speeches")
	if err := x.Delete(context.Background(), nil); err != nil || pts.deleted != nil {
		t.Fatalf("empty delete: err=%v req=%v", err, pts.deleted)
	}
	if err := x.Delete(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids := pts.deleted.GetPoints().GetPoints().GetIds(); len(ids) != 2 {
		t.Errorf("ids = %v", ids)
	}
	x = NewWithClients(&mockPoints{deleteErr: errors.New("fail")}, &mockCollections{}, "speeches")
	if err := x.Delete(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestQuery(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{Result: []*pb.ScoredPoint{
		{Id: pointID("p1"), Score: 0.95},
		{Id: pointID("p2"), Score: 0.5},
	}}}
	x := NewWithClients(pts, &mockCollections{}, "speeches")
	hits, err := x.Query(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "p1" || hits[0].Score < 0.949 || hits[1].ID != "p2" {
		t.Errorf("hits = %+v", hits)
	}
	if pts.searched.GetLimit() != 5 || pts.searched.GetFilter() != nil {
		t.Errorf("request = %+v", pts.searched)
	}
}

func TestQueryFiltered(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	x := NewWithClients(pts, &mockCollections{}, "speeches")
	hits, err := x.QueryFiltered(context.Background(), []float32{1}, 5, Filter{CountryCodes: []string{"ken"}, Years: []int{1999, 2000}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected 0, got %d", len(hits))
	}
	must := pts.searched.GetFilter().GetMust()
	if len(must) != 2 {
		t.Fatalf("conditions = %v", must)
	}
	if got := must[0].GetField().GetMatch().GetKeywords().GetStrings(); len(got) != 1 || got[0] != "KEN" {
		t.Errorf("country match = %v", got)
	}
	if got := must[1].GetField().GetMatch().GetIntegers().GetIntegers(); len(got) != 2 {
		t.Errorf("year match = %v", got)
	}
}

func TestQuery_Error(t *testing.T) {
	x := NewWithClients(&mockPoints{searchErr: errors.New("fail")}, &mockCollections{}, "speeches")
	if _, err := x.Query(context.Background(), []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}
