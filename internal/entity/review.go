package entity

// SourceKind selects the extraction strategy for a scrape target.
type SourceKind string

const (
	SourceGeneric  SourceKind = "generic"
	SourceForum    SourceKind = "forum"
	SourceRetailer SourceKind = "retailer"
	SourceShopping SourceKind = "shopping"
)

// Valid reports whether the kind is one a caller may submit.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceForum, SourceRetailer, SourceShopping:
		return true
	}
	return false
}

// HarvestRequest is one unit of caller-submitted work. Immutable once submitted.
type HarvestRequest struct {
	Product    string     `json:"product_name"`
	Brand      string     `json:"brand,omitempty"`
	StoreURLs  []string   `json:"store_urls,omitempty"`
	SurfaceURL string     `json:"shopping_surface_url,omitempty"`
	Kind       SourceKind `json:"source"`
}

// ScrapeTarget is a single URL paired with the extraction strategy to apply.
// One HarvestRequest derives one or more targets.
type ScrapeTarget struct {
	URL      string
	Strategy SourceKind
}

// RawCandidate is an unvalidated extracted text block with provenance.
// Ephemeral: owned exclusively by the pipeline invocation that created it.
type RawCandidate struct {
	Text   string
	Source string
	URL    string
	Rating *float64
	Title  string
}

// ValidatedCandidate is a RawCandidate annotated by the normalizer.
// Only candidates with Confidence >= 0.5 and Genuine=true survive.
type ValidatedCandidate struct {
	RawCandidate
	Confidence float64
	Genuine    bool
}

// NormalizedReview is the externally visible review record.
type NormalizedReview struct {
	Source     string   `json:"source"`
	Author     string   `json:"author"`
	Rating     *float64 `json:"rating"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
}

// HarvestSummary is the job-level aggregate produced once per job.
type HarvestSummary struct {
	OverallSentiment string   `json:"overall_sentiment"`
	CommonPraises    []string `json:"common_praises"`
	CommonComplaints []string `json:"common_complaints"`
	AverageRating    *float64 `json:"average_rating,omitempty"`
}

// HarvestResult is the final payload delivered on SUCCESS.
type HarvestResult struct {
	Success    bool               `json:"success"`
	Product    string             `json:"product_name"`
	Source     SourceKind         `json:"source"`
	Summary    HarvestSummary     `json:"summary"`
	Reviews    []NormalizedReview `json:"reviews"`
	TotalFound int                `json:"total_found"`
	RawCount   int                `json:"raw_count"`
}
