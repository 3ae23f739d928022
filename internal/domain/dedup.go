package domain

// Pass names the detection pass that marked a record.
type Pass string

const (
	PassAddress    Pass = "address"
	PassGeographic Pass = "geographic"
)

// Removal is one record dropped from the cleaned table, with the record it
// was judged a duplicate of.
type Removal struct {
	PropertyID int64 `json:"property_id"`
	SubjectID  int64 `json:"subject_id"`
	KeptID     int64 `json:"kept_id"`
	Pass       Pass  `json:"pass"`
}

// SubjectCount reports a subject left below the comparable floor.
type SubjectCount struct {
	SubjectID int64 `json:"subject_id"`
	Initial   int   `json:"initial"`
	Final     int   `json:"final"`
}
