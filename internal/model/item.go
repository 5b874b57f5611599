package model

// RawItem is one listing as extracted by a source adapter, before
// reconciliation against the canonical store. Only Reference and Name are
// mandatory; an item missing either is dropped during ingestion.
type RawItem struct {
	Reference   string   `json:"reference"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	InStock     *bool    `json:"in_stock,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Valid reports whether the item carries the mandatory fields.
func (i RawItem) Valid() bool {
	return i.Reference != "" && i.Name != ""
}
