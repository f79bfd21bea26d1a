package request

// SubmitHarvestRequest is the body of POST /api/reviews/{source}.
// Which optional fields are required depends on the source kind:
// forum uses brand, retailer uses store_urls, shopping uses
// shopping_surface_url.
type SubmitHarvestRequest struct {
	ProductName        string   `json:"product_name"`
	Brand              string   `json:"brand,omitempty"`
	StoreURLs          []string `json:"store_urls,omitempty"`
	ShoppingSurfaceURL string   `json:"shopping_surface_url,omitempty"`
}
