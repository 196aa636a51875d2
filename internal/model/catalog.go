package model

// CatalogModel describes one selectable model.
type CatalogModel struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SearchCapable bool   `json:"searchCapable,omitempty"`
}

// The service exposes no model-listing endpoint, so the catalog is a
// static table.
var catalog = []CatalogModel{
	{ID: "gemini-2.5-flash", Name: "Gemini 2.5 (Flash)", SearchCapable: true},
	{ID: "gpt-4.1", Name: "GPT-4.1"},
	{ID: "gpt-4o-mini", Name: "GPT-4o mini"},
	{ID: "claude-3.7-sonnet", Name: "Claude 3.7 Sonnet"},
	{ID: "deepseek-r1", Name: "DeepSeek R1"},
}

// Models returns the static model catalog.
func Models() []CatalogModel {
	out := make([]CatalogModel, len(catalog))
	copy(out, catalog)
	return out
}

// LookupModel finds a catalog entry by id.
func LookupModel(id string) (CatalogModel, bool) {
	for _, m := range catalog {
		if m.ID == id {
			return m, true
		}
	}
	return CatalogModel{}, false
}

// DefaultModel returns the first catalog entry.
func DefaultModel() CatalogModel {
	return catalog[0]
}
