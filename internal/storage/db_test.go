package storage

import (
	"path/filepath"
	"reflect"
	"testing"

	"supplyaudit/internal"
	"supplyaudit/internal/util"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testProducts() []internal.CatalogProduct {
	return []internal.CatalogProduct{
		{
			ID: 1, SKU: "TN730", OEMNumber: util.StringPtr("TN730"),
			Name: "Brother TN730 Toner", Brand: util.StringPtr("Brother"),
			Category: internal.CategoryToner, Color: util.StringPtr("black"),
			YieldClass: internal.YieldStandard, PageYield: util.FloatPtr(1200),
			FamilySeries: util.StringPtr("BROTHER TN"), ReferencePrice: util.FloatPtr(45.99),
			Active: true,
		},
		{
			ID: 2, SKU: "TN760", Name: "Brother TN760 High Yield Toner",
			Category: internal.CategoryToner, YieldClass: internal.YieldHigh,
			PageYield: util.FloatPtr(3000), ReferencePrice: util.FloatPtr(62),
			Active: true,
		},
	}
}

func TestUpsertAndListProducts(t *testing.T) {
	db := openTestDB(t)
	products := testProducts()

	if err := db.UpsertProducts(products); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Second upsert updates in place.
	products[0].Name = "Brother TN-730 Standard Toner"
	if err := db.UpsertProducts(products); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := db.ListProducts()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if got[0].Name != "Brother TN-730 Standard Toner" {
		t.Fatalf("name not updated: %q", got[0].Name)
	}
	if got[0].YieldClass != internal.YieldStandard || !got[0].Active {
		t.Fatalf("roundtrip: %+v", got[0])
	}
	if got[0].PageYield == nil || *got[0].PageYield != 1200 {
		t.Fatalf("page yield: %+v", got[0].PageYield)
	}
}

func TestEmbeddingsRoundtrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertProducts(testProducts()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := db.SetProductEmbedding(1, []float32{0.25, -0.5, 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.LoadEmbeddings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || !reflect.DeepEqual(got[1], []float32{0.25, -0.5, 1}) {
		t.Fatalf("embeddings: %v", got)
	}
}

func TestJobLifecycle(t *testing.T) {
	db := openTestDB(t)

	job := internal.ProcessingJob{ID: "job-1", FileName: "invoice.csv", FileRef: "/tmp/invoice.csv"}
	if err := db.CreateJob(job); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := db.GetJob("job-1")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Status != internal.JobPending || got.Progress != 0 {
		t.Fatalf("fresh job: %+v", got)
	}

	if err := db.UpdateJobStatus("job-1", internal.JobProcessing, nil); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := db.SetJobTotalItems("job-1", 250); err != nil {
		t.Fatalf("totals: %v", err)
	}
	if err := db.UpdateJobProgress("job-1", 40, "matching", 1); err != nil {
		t.Fatalf("progress: %v", err)
	}
	// Progress never regresses even if a retried chunk reports less.
	if err := db.UpdateJobProgress("job-1", 25, "matching", 1); err != nil {
		t.Fatalf("progress: %v", err)
	}

	got, _ = db.GetJob("job-1")
	if got.Progress != 40 || got.ChunkCursor != 1 || got.TotalItems != 250 {
		t.Fatalf("job state: %+v", got)
	}
	if got.Status != internal.JobProcessing {
		t.Fatalf("status: %s", got.Status)
	}

	if err := db.CompleteJob("job-1", "/tmp/out/report.xlsx"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ = db.GetJob("job-1")
	if got.Status != internal.JobCompleted || got.Progress != 100 {
		t.Fatalf("completed: %+v", got)
	}
	if got.ArtifactRef == nil || *got.ArtifactRef != "/tmp/out/report.xlsx" {
		t.Fatalf("artifact: %+v", got.ArtifactRef)
	}
}

func TestGetJobMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetJob("nope")
	if err != nil || got != nil {
		t.Fatalf("want nil,nil got %v,%v", got, err)
	}
}

func TestListJobsByStatus(t *testing.T) {
	db := openTestDB(t)
	_ = db.CreateJob(internal.ProcessingJob{ID: "a", FileName: "a.csv", FileRef: "a"})
	_ = db.CreateJob(internal.ProcessingJob{ID: "b", FileName: "b.csv", FileRef: "b"})
	_ = db.UpdateJobStatus("b", internal.JobFailed, util.StringPtr("boom"))

	pending, err := db.ListJobsByStatus(internal.JobPending, 10)
	if err != nil || len(pending) != 1 || pending[0].ID != "a" {
		t.Fatalf("pending: %v %v", pending, err)
	}
	failed, _ := db.ListJobsByStatus(internal.JobFailed, 10)
	if len(failed) != 1 || failed[0].Error == nil || *failed[0].Error != "boom" {
		t.Fatalf("failed: %+v", failed)
	}
}

func TestLineItemsAndMatchesRoundtrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.UpsertProducts(testProducts()); err != nil {
		t.Fatalf("products: %v", err)
	}
	_ = db.CreateJob(internal.ProcessingJob{ID: "job-1", FileName: "f.csv", FileRef: "f"})

	items := []internal.RawLineItem{
		{RowNumber: 1, Description: "Brother toner", SKUCandidates: []string{"TN730"}, Quantity: 3, UnitPrice: 55, Confidence: 1},
		{RowNumber: 2, Description: "mystery widget", SKUCandidates: nil, Quantity: 1, UnitPrice: 4, Confidence: 0.5},
	}
	if err := db.InsertLineItems("job-1", items); err != nil {
		t.Fatalf("items: %v", err)
	}

	results := []internal.MatchResult{
		{
			Item: items[0], Score: 1, Method: internal.MethodExactSKU,
			Product:  &internal.CatalogProduct{ID: 1},
			Attempts: []internal.MatchAttempt{{Method: internal.MethodExactSKU, Value: "TN730", Score: 1}},
		},
		{
			Item: items[1], Score: 0, Method: internal.MethodNone,
			Attempts: []internal.MatchAttempt{{Method: internal.MethodFullText, Value: "mystery widget", Score: 0}},
		},
	}
	if err := db.InsertMatches("job-1", results); err != nil {
		t.Fatalf("matches: %v", err)
	}
	// Re-running a chunk upserts instead of violating uniqueness.
	if err := db.InsertMatches("job-1", results); err != nil {
		t.Fatalf("rerun matches: %v", err)
	}

	got, err := db.ListMatches("job-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if got[0].Method != internal.MethodExactSKU || got[0].Score != 1 {
		t.Fatalf("first: %+v", got[0])
	}
	if got[0].Product == nil || got[0].Product.SKU != "TN730" {
		t.Fatalf("product hydration: %+v", got[0].Product)
	}
	if !reflect.DeepEqual(got[0].Item.SKUCandidates, []string{"TN730"}) {
		t.Fatalf("sku candidates: %+v", got[0].Item.SKUCandidates)
	}
	if len(got[0].Attempts) != 1 || got[0].Attempts[0].Value != "TN730" {
		t.Fatalf("attempts: %+v", got[0].Attempts)
	}
	if got[1].Product != nil || got[1].Method != internal.MethodNone {
		t.Fatalf("second: %+v", got[1])
	}

	if err := db.ClearJobResults("job-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	cleared, _ := db.ListMatches("job-1")
	if len(cleared) != 0 {
		t.Fatalf("not cleared: %d", len(cleared))
	}
}

func TestRecommendationsAndRuns(t *testing.T) {
	db := openTestDB(t)
	_ = db.CreateJob(internal.ProcessingJob{ID: "job-1", FileName: "f.csv", FileRef: "f"})

	recs := map[int]*internal.Recommendation{
		1: {
			Type: internal.RecommendHigherYield, Product: &internal.CatalogProduct{ID: 2},
			Quantity: 2, TotalCost: 124, Savings: 41, Reason: "higher yield",
			PriceSource: internal.PriceSourceCustomer, CustomerPrice: 55, UnitsAvoided: 1, CO2SavedKg: 5.2,
		},
		2: nil,
	}
	if err := db.InsertRecommendations("job-1", recs); err != nil {
		t.Fatalf("recs: %v", err)
	}
	if err := db.InsertRun("job-1", map[string]float64{"match_ms": 12.5}, map[string]int{"items": 2}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	if err := db.SetMetadata("catalog_loaded_at", "2026-01-01"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := db.SetMetadata("catalog_loaded_at", "2026-02-01"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := db.GetMetadata("catalog_loaded_at")
	if err != nil || got == nil || *got != "2026-02-01" {
		t.Fatalf("get: %v %v", got, err)
	}
	missing, err := db.GetMetadata("nope")
	if err != nil || missing != nil {
		t.Fatalf("missing: %v %v", missing, err)
	}
}
