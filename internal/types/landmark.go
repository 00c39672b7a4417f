package types

// Coordinates is a single latitude/longitude pair as reported by the
// landmark detector.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LandmarkDetection is the detector's output for one image: the landmark
// name plus zero or more candidate coordinates, best guess first.
// Immutable once produced.
type LandmarkDetection struct {
	Name               string        `json:"name"`
	CandidateLocations []Coordinates `json:"candidate_locations,omitempty"`
}

// LocationInfo describes where a landmark sits. Country and City come from
// reverse geocoding and may be unknown; Coordinates and MapsLink are always
// derived from the detection itself.
type LocationInfo struct {
	Coordinates Coordinates `json:"coordinates"`
	Country     *string     `json:"country,omitempty"`
	City        *string     `json:"city,omitempty"`
	MapsLink    string      `json:"maps_link"`
}

type HistoricalContext struct {
	InceptionDate       *string  `json:"inception_date,omitempty"`
	ArchitecturalStyles []string `json:"architectural_styles,omitempty"`
	Significance        *string  `json:"significance,omitempty"`
}

// References holds canonical links for whichever sources actually resolved.
// Unresolved references are omitted from the JSON output, never empty strings.
type References struct {
	Wikipedia  *string `json:"wikipedia,omitempty"`
	Wikidata   *string `json:"wikidata,omitempty"`
	GoogleMaps *string `json:"google_maps,omitempty"`
}

// EnrichedRecord is the final merged output of one enrichment request.
type EnrichedRecord struct {
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	HistoricalContext HistoricalContext `json:"historical_context"`
	Location          *LocationInfo     `json:"location,omitempty"`
	OfficialWebsite   *string           `json:"official_website,omitempty"`
	References        References        `json:"references"`
}
