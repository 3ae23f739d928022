package domain

// PropertyRecord is one candidate comparable attached to an appraisal subject.
// Nil pointers are missing values; the dedup engine treats them as "no evidence".
type PropertyRecord struct {
	PropertyID int64 `json:"property_id"`
	SubjectID  int64 `json:"subject_id"`

	Address       *string  `json:"address,omitempty"`
	StructureType *string  `json:"structure_type,omitempty"`
	ClosePrice    *float64 `json:"close_price,omitempty"`
	GLASqft       *float64 `json:"gla_sqft,omitempty"`
	BedroomsTotal *float64 `json:"bedrooms_total,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`

	// carried through from extraction, never compared
	OrderID             *string  `json:"order_id,omitempty"`
	City                *string  `json:"city,omitempty"`
	Province            *string  `json:"province,omitempty"`
	PostalCode          *string  `json:"postal_code,omitempty"`
	CloseDate           *string  `json:"close_date,omitempty"`
	YearBuilt           *int     `json:"year_built,omitempty"`
	LotSizeSqft         *float64 `json:"lot_size_sqft,omitempty"`
	BathroomsEquivalent *float64 `json:"bathrooms_equivalent,omitempty"`
}

// nullable returns one bool per nullable attribute: true when the value is present.
func (p PropertyRecord) nullable() []bool {
	return []bool{
		p.Address != nil,
		p.StructureType != nil,
		p.ClosePrice != nil,
		p.GLASqft != nil,
		p.BedroomsTotal != nil,
		p.Latitude != nil,
		p.Longitude != nil,
		p.OrderID != nil,
		p.City != nil,
		p.Province != nil,
		p.PostalCode != nil,
		p.CloseDate != nil,
		p.YearBuilt != nil,
		p.LotSizeSqft != nil,
		p.BathroomsEquivalent != nil,
	}
}

// NullCount is the number of missing attributes.
func (p PropertyRecord) NullCount() int {
	n := 0
	for _, present := range p.nullable() {
		if !present {
			n++
		}
	}
	return n
}

// CompletenessScore counts non-null attributes, the two IDs included.
func (p PropertyRecord) CompletenessScore() int {
	fields := p.nullable()
	return 2 + len(fields) - p.NullCount()
}

// HasCoords reports whether both latitude and longitude are set.
func (p PropertyRecord) HasCoords() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// AddressOrEmpty returns the raw address, "" when missing.
func (p PropertyRecord) AddressOrEmpty() string {
	if p.Address == nil {
		return ""
	}
	return *p.Address
}

type Coords struct{ Lat, Lon float64 }
