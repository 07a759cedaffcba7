package internal

// SKUNamespace identifies which identifier scheme a SKU string belongs to.
// Several namespaces may name the same catalog product.
type SKUNamespace string

const (
	NamespaceOEM         SKUNamespace = "oem"
	NamespaceWholesaler  SKUNamespace = "wholesaler"
	NamespaceDistributor SKUNamespace = "distributor"
	NamespaceDepot       SKUNamespace = "depot"
	NamespaceGeneric     SKUNamespace = "generic"
)

// RawLineItem is one row extracted from an uploaded purchase file.
// Immutable after ingestion.
type RawLineItem struct {
	RowNumber     int
	Description   string
	SKUCandidates []string
	Quantity      int
	UnitPrice     float64
	Unit          *string
	Confidence    float64
}

type ProductCategory string

const (
	CategoryToner ProductCategory = "toner"
	CategoryInk   ProductCategory = "ink"
	CategoryOther ProductCategory = "other"
)

// YieldClass is the ordered size tier of a consumable within its family.
type YieldClass int

const (
	YieldStandard YieldClass = iota
	YieldHigh
	YieldExtraHigh
	YieldSuperHigh
)

func (y YieldClass) String() string {
	switch y {
	case YieldHigh:
		return "high"
	case YieldExtraHigh:
		return "extra_high"
	case YieldSuperHigh:
		return "super_high"
	default:
		return "standard"
	}
}

func ParseYieldClass(s string) YieldClass {
	switch s {
	case "high":
		return YieldHigh
	case "extra_high":
		return YieldExtraHigh
	case "super_high":
		return YieldSuperHigh
	default:
		return YieldStandard
	}
}

// CatalogProduct is a read-only entry in the master catalog.
type CatalogProduct struct {
	ID             int
	SKU            string
	OEMNumber      *string
	WholesalerCode *string
	DistributorSKU *string
	DepotCode      *string
	Name           string
	Brand          *string
	Model          *string
	Category       ProductCategory
	Color          *string
	YieldClass     YieldClass
	PageYield      *float64
	FamilySeries   *string
	ListPrice      *float64
	ReferencePrice *float64
	RawCost        *float64
	Active         bool
}

type MatchMethod string

const (
	MethodExactSKU MatchMethod = "exact_sku"
	MethodFuzzySKU MatchMethod = "fuzzy_sku"
	MethodCombined MatchMethod = "combined"
	MethodFullText MatchMethod = "fulltext"
	MethodVector   MatchMethod = "vector"
	MethodAI       MatchMethod = "ai"
	MethodNone     MatchMethod = "none"
	MethodError    MatchMethod = "error"
)

// MatchAttempt is one entry in the audit trail of a match cascade.
type MatchAttempt struct {
	Method    MatchMethod `json:"method"`
	Value     string      `json:"value"`
	Score     float64     `json:"score"`
	ProductID *int        `json:"productId,omitempty"`
	Error     *string     `json:"error,omitempty"`
}

// MatchResult pairs a raw line item with at most one catalog product.
// Score 1.0 is reserved for exact-SKU hits. Immutable once written.
type MatchResult struct {
	Item     RawLineItem
	Product  *CatalogProduct
	Score    float64
	Method   MatchMethod
	Attempts []MatchAttempt
}

type RecommendationType string

const (
	RecommendBetterPrice RecommendationType = "better_price"
	RecommendHigherYield RecommendationType = "higher_yield"
	RecommendNone        RecommendationType = "none"
)

// PriceSource records which provider in the price-resolution chain won.
type PriceSource string

const (
	PriceSourceCustomer  PriceSource = "customer_file"
	PriceSourceList      PriceSource = "list_price"
	PriceSourceReference PriceSource = "reference_markup"
)

// Recommendation is the optimizer's verdict for one matched item.
// Savings is strictly positive whenever Type is not RecommendNone.
type Recommendation struct {
	Type          RecommendationType
	Product       *CatalogProduct
	Quantity      int
	TotalCost     float64
	Savings       float64
	Reason        string
	PriceSource   PriceSource
	CustomerPrice float64
	UnitsAvoided  int
	CO2SavedKg    float64
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ProcessingJob is the orchestrator's durable state record.
type ProcessingJob struct {
	ID          string
	FileName    string
	FileRef     string
	Status      JobStatus
	Progress    int
	CurrentStep string
	ChunkCursor int
	TotalItems  int
	ArtifactRef *string
	Error       *string
	CreatedAt   string
	UpdatedAt   string
}

// SavingsSummary aggregates a whole job for the report renderer.
type SavingsSummary struct {
	TotalItems       int
	MatchedItems     int
	ItemsWithSavings int
	CurrentCost      float64
	OptimizedCost    float64
	TotalSavings     float64
	SavingsPercent   float64
	UnitsAvoided     int
	CO2SavedKg       float64
	TreesSaved       float64
	PlasticSavedKg   float64
}

// ItemReportRow is the flat per-line shape exported for review.
type ItemReportRow struct {
	RowNumber      int
	Description    string
	SKUCandidates  []string
	Quantity       int
	UnitPrice      float64
	MatchMethod    string
	MatchScore     float64
	ProductSKU     *string
	ProductName    *string
	Recommendation string
	RecommendedSKU *string
	RecommendedQty *int
	Savings        *float64
	Reason         *string
}
