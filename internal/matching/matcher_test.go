package matching

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"supplyaudit/internal"
	"supplyaudit/internal/catalog"
	"supplyaudit/internal/config"
	"supplyaudit/internal/util"
)

func testConfig() config.Config {
	return config.Config{
		FuzzyAcceptThreshold: 0.90,
		FullTextCeiling:      0.85,
		VectorCeiling:        0.75,
		VectorFloor:          0.70,
		AIScoreCap:           0.95,
	}
}

func testIndex() *catalog.Index {
	return catalog.BuildIndex([]internal.CatalogProduct{
		{
			ID: 1, SKU: "TN730", Name: "Brother TN730 Standard Yield Toner",
			Brand: util.StringPtr("Brother"), Model: util.StringPtr("TN730"),
			Category: internal.CategoryToner, Active: true,
		},
		{
			ID: 2, SKU: "N9J90AN", Name: "HP 64 Black Ink Cartridge",
			Brand: util.StringPtr("HP"), Category: internal.CategoryInk,
			Color: util.StringPtr("black"), Active: true,
			ReferencePrice: util.FloatPtr(18.99),
		},
	})
}

func item(description string, skus ...string) internal.RawLineItem {
	return internal.RawLineItem{RowNumber: 1, Description: description, SKUCandidates: skus, Quantity: 1}
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

type stubExtractor struct {
	attrs  Attributes
	err    error
	called *bool
}

func (s stubExtractor) ExtractAttributes(ctx context.Context, description string) (Attributes, error) {
	if s.called != nil {
		*s.called = true
	}
	return s.attrs, s.err
}

type failingLookup struct{}

func (failingLookup) ExactLookup([]string) (*internal.CatalogProduct, error) {
	return nil, errors.New("lookup down")
}
func (failingLookup) FuzzyLookup(string) ([]internal.CatalogProduct, error) {
	return nil, errors.New("lookup down")
}
func (failingLookup) TextSearch(string) ([]catalog.ScoredProduct, error) {
	return nil, errors.New("lookup down")
}
func (failingLookup) VectorSearch([]float32) ([]catalog.ScoredProduct, error) {
	return nil, errors.New("lookup down")
}
func (failingLookup) FamilyLookup(string, string, internal.YieldClass) ([]internal.CatalogProduct, error) {
	return nil, errors.New("lookup down")
}

func TestExactSKUScoresOne(t *testing.T) {
	m := NewMatcher(testConfig(), testIndex(), nil, nil)
	res := m.Match(context.Background(), item("Brother toner", "TN730"))
	if res.Method != internal.MethodExactSKU || res.Score != 1.0 {
		t.Fatalf("method=%s score=%v", res.Method, res.Score)
	}
	if res.Product == nil || res.Product.ID != 1 {
		t.Fatalf("product=%v", res.Product)
	}
}

func TestFuzzySKUVariantsResolveToSameProduct(t *testing.T) {
	m := NewMatcher(testConfig(), testIndex(), nil, nil)

	exact := m.Match(context.Background(), item("", "TN730"))
	fuzzy := m.Match(context.Background(), item("", "tn-730"))

	if exact.Score != 1.0 || exact.Method != internal.MethodExactSKU {
		t.Fatalf("exact: %v %v", exact.Method, exact.Score)
	}
	if fuzzy.Score != 0.95 || fuzzy.Method != internal.MethodFuzzySKU {
		t.Fatalf("fuzzy: %v %v", fuzzy.Method, fuzzy.Score)
	}
	if fuzzy.Product == nil || exact.Product == nil || fuzzy.Product.ID != exact.Product.ID {
		t.Fatal("variants resolved to different products")
	}
}

func TestFuzzyVendorPrefixOnLetterLeadingSKU(t *testing.T) {
	// "M-TN730" must resolve by stripping the bare "M-" prefix, not
	// by eating the leading letters of the part number.
	m := NewMatcher(testConfig(), testIndex(), nil, nil)

	res := m.Match(context.Background(), item("", "M-TN730"))
	if res.Method != internal.MethodFuzzySKU || res.Score != 0.95 {
		t.Fatalf("method=%s score=%v", res.Method, res.Score)
	}
	if res.Product == nil || res.Product.ID != 1 {
		t.Fatalf("product=%v", res.Product)
	}
}

func TestFullTextTierSelectsHP64(t *testing.T) {
	m := NewMatcher(testConfig(), testIndex(), nil, nil)
	res := m.Match(context.Background(), item("HP 64 Black Ink"))
	if res.Method != internal.MethodFullText {
		t.Fatalf("method=%s", res.Method)
	}
	if res.Score < 0.70 {
		t.Fatalf("score=%v", res.Score)
	}
	if res.Product == nil || res.Product.SKU != "N9J90AN" {
		t.Fatalf("product=%v", res.Product)
	}
}

func TestMatchingIsIdempotent(t *testing.T) {
	m := NewMatcher(testConfig(), testIndex(), nil, nil)
	it := item("HP 64 Black Ink", "bogus-1")
	a := m.Match(context.Background(), it)
	b := m.Match(context.Background(), it)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("results differ:\n%+v\n%+v", a, b)
	}
}

func TestVectorTier(t *testing.T) {
	idx := testIndex()
	idx.SetEmbedding(2, []float32{1, 0})
	m := NewMatcher(testConfig(), idx, stubEmbedder{vec: []float32{1, 0}}, nil)

	res := m.Match(context.Background(), item("blk refill sixtyfour"))
	if res.Method != internal.MethodVector {
		t.Fatalf("method=%s score=%v", res.Method, res.Score)
	}
	if res.Product == nil || res.Product.ID != 2 {
		t.Fatalf("product=%v", res.Product)
	}
}

func TestVectorBelowFloorRejected(t *testing.T) {
	idx := testIndex()
	idx.SetEmbedding(2, []float32{0, 1})
	m := NewMatcher(testConfig(), idx, stubEmbedder{vec: []float32{1, 0}}, nil)

	res := m.Match(context.Background(), item("unrelated widget"))
	if res.Product != nil {
		t.Fatalf("similarity below floor should not match: %+v", res)
	}
	if res.Method != internal.MethodNone {
		t.Fatalf("method=%s", res.Method)
	}
}

func TestAITierDisabledByDefault(t *testing.T) {
	called := false
	m := NewMatcher(testConfig(), testIndex(), nil, stubExtractor{called: &called})
	_ = m.Match(context.Background(), item("mystery item"))
	if called {
		t.Fatal("extractor called with AI matching disabled")
	}
}

func TestAITierCappedScore(t *testing.T) {
	cfg := testConfig()
	cfg.AIMatchEnabled = true
	m := NewMatcher(cfg, testIndex(), nil, stubExtractor{
		attrs: Attributes{Brand: "HP", Model: "64", Color: "black", ProductType: "ink"},
	})

	res := m.Match(context.Background(), item("blk crtg for officejet"))
	if res.Method != internal.MethodAI {
		t.Fatalf("method=%s", res.Method)
	}
	if res.Score > 0.95 {
		t.Fatalf("ai score must stay below exact: %v", res.Score)
	}
	if res.Product == nil || res.Product.ID != 2 {
		t.Fatalf("product=%v", res.Product)
	}
}

func TestLookupErrorsRecordedNotFatal(t *testing.T) {
	m := NewMatcher(testConfig(), failingLookup{}, nil, nil)
	res := m.Match(context.Background(), item("HP 64 Black Ink", "TN730"))
	if res.Method != internal.MethodError {
		t.Fatalf("method=%s", res.Method)
	}
	if res.Score != 0 || res.Product != nil {
		t.Fatalf("res=%+v", res)
	}
	if len(res.Attempts) == 0 {
		t.Fatal("attempt log empty")
	}
	for _, a := range res.Attempts {
		if a.Error == nil {
			t.Fatalf("attempt missing error: %+v", a)
		}
	}
}

func TestExpensiveGateSkipsEmbedding(t *testing.T) {
	idx := testIndex()
	idx.SetEmbedding(2, []float32{1, 0})
	m := NewMatcher(testConfig(), idx, stubEmbedder{vec: []float32{1, 0}}, nil)
	m.ExpensiveAllowed = func() bool { return false }

	res := m.Match(context.Background(), item("blk refill sixtyfour"))
	if res.Method == internal.MethodVector {
		t.Fatal("vector tier should be gated off")
	}
}

func TestMatchBatchMatchesSequential(t *testing.T) {
	m := NewMatcher(testConfig(), testIndex(), nil, nil)
	items := []internal.RawLineItem{
		item("Brother toner", "TN730"),
		item("HP 64 Black Ink"),
		item("no such thing at all"),
	}

	batched := m.MatchBatch(context.Background(), items, 2)
	if len(batched) != len(items) {
		t.Fatalf("len=%d", len(batched))
	}
	for i, it := range items {
		single := m.Match(context.Background(), it)
		if !reflect.DeepEqual(batched[i], single) {
			t.Fatalf("row %d differs", i)
		}
	}
}
