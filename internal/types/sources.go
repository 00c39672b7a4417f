package types

// Fragments produced by the individual upstream sources before the merge.
// Optional fields are pointers so that "source didn't know" stays
// distinguishable from "source returned an empty value".

// WikipediaSummary is the normalized shape of the encyclopedia summary
// endpoint response.
type WikipediaSummary struct {
	Extract          *string `json:"extract,omitempty"`
	ShortDescription *string `json:"short_description,omitempty"`
	WikibaseItem     *string `json:"wikibase_item,omitempty"`
	CanonicalURL     *string `json:"canonical_url,omitempty"`
}

// WikidataEntity carries the structured claims resolved for one entity.
// ArchitecturalStyles and Countries are de-duplicated and order-stable;
// a referenced entity whose label could not be resolved appears as its raw
// identifier rather than being dropped.
type WikidataEntity struct {
	Description         *string  `json:"description,omitempty"`
	InceptionDate       *string  `json:"inception_date,omitempty"`
	ArchitecturalStyles []string `json:"architectural_styles,omitempty"`
	Countries           []string `json:"countries,omitempty"`
	OfficialWebsite     *string  `json:"official_website,omitempty"`
}

// Address is the reverse-geocoding fragment for a coordinate pair.
type Address struct {
	Country *string `json:"country,omitempty"`
	City    *string `json:"city,omitempty"`
}
