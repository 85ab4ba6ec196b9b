package domain

// Ref is a resolved (or partially resolved) reference to another CMS entry.
type Ref struct {
	UID   string `json:"uid"`
	Slug  string `json:"slug,omitempty"`
	Title string `json:"title,omitempty"`
}

type Region struct {
	UID         string `json:"uid"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

type Destination struct {
	UID              string   `json:"uid"`
	Name             string   `json:"name"`
	Slug             string   `json:"slug"`
	ShortDescription string   `json:"shortDescription,omitempty"`
	LongDescription  string   `json:"longDescription,omitempty"` // rich text, HTML
	BestTime         string   `json:"bestTime,omitempty"`
	ApproxCost       *float64 `json:"approxCost,omitempty"`
	CoverImageURL    string   `json:"coverImageUrl,omitempty"`
	Regions          []Ref    `json:"regions"` // never nil after mapping
}

// RegionUID returns the first linked region, which is the one the site files
// the destination under.
func (d Destination) RegionUID() string {
	if len(d.Regions) == 0 {
		return ""
	}
	return d.Regions[0].UID
}

type Package struct {
	UID          string  `json:"uid"`
	Title        string  `json:"title"`
	Provider     string  `json:"provider,omitempty"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price"` // per person
	Days         int     `json:"days"`
	Destinations []Ref   `json:"destinations"` // never nil after mapping
}

func (p Package) DestinationUID() string {
	if len(p.Destinations) == 0 {
		return ""
	}
	return p.Destinations[0].UID
}

// Read models

type RegionView struct {
	Region       Region        `json:"region"`
	Destinations []Destination `json:"destinations"`
}

type DestinationView struct {
	Destination Destination `json:"destination"`
	Packages    []Package   `json:"packages"`
}
