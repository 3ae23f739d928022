package app

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"comps_dedup/internal/domain"
)

/********** alias registries (single source of truth) **********/

var propertyAliases = map[string][]string{
	"address":        {"address", "full_address", "address_raw"},
	"structure_type": {"structure_type", "prop_type_clean", "property_type"},
	"close_price":    {"close_price", "sale_price", "price"},
	"gla":            {"gla", "gla_sqft"},
	"bedrooms":       {"total_possible", "bedrooms_total", "bedrooms", "bed_count"},
	"latitude":       {"latitude", "lat", "location.lat"},
	"longitude":      {"longitude", "lon", "lng", "location.lon", "location.lng"},
	"city":           {"city", "municipality"},
	"province":       {"province", "state_province"},
	"postal_code":    {"postal_code", "zip"},
	"close_date":     {"close_date_parsed", "close_date"},
	"year_built":     {"year_built"},
	"lot_size":       {"lot_size_sf", "lot_size_sqft"},
	"bathrooms":      {"bath_count_total_equivalent", "bathrooms_equivalent"},
}

var appraisalAliases = map[string][]string{
	"order_id": {"orderID", "order_id"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns the trimmed string at path, numbers included, or "".
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

// parseLooseFloat accepts "$1,250,000" style strings. NaN and Inf spellings
// are missing values, as in the CSV reader.
func parseLooseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(strings.NewReplacer(",", "", "$", "").Replace(s))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// getFloatFlexible: number from several paths (float64/int/string like "$500,000").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return &f
			}
		case string:
			if f, ok := parseLooseFloat(v); ok {
				return &f
			}
		}
	}
	return nil
}

// getIntFlexible truncates like getFloatFlexible's result.
func getIntFlexible(m map[string]any, paths ...string) *int {
	if f := getFloatFlexible(m, paths...); f != nil {
		n := int(*f)
		return &n
	}
	return nil
}

/********** appraisal mapper **********/

// recordIDs is decoded ahead of the record so that an absent id is told
// apart from subject 0.
type recordIDs struct {
	PropertyID *int64 `json:"property_id"`
	SubjectID  *int64 `json:"subject_id"`
}

// DecodeRecords reads a JSON array of flat property records. Every element
// must carry both property_id and subject_id.
func DecodeRecords(r io.Reader) ([]domain.PropertyRecord, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	out := make([]domain.PropertyRecord, 0, len(raw))
	for i, m := range raw {
		var ids recordIDs
		if err := json.Unmarshal(m, &ids); err != nil {
			return nil, fmt.Errorf("record %d: %v: %w", i, err, domain.ErrInvalidRecord)
		}
		switch {
		case ids.PropertyID == nil:
			return nil, fmt.Errorf("record %d: missing property_id: %w", i, domain.ErrInvalidRecord)
		case ids.SubjectID == nil:
			return nil, fmt.Errorf("record %d (property %d): missing subject_id: %w", i, *ids.PropertyID, domain.ErrInvalidRecord)
		}
		var p domain.PropertyRecord
		if err := json.Unmarshal(m, &p); err != nil {
			return nil, fmt.Errorf("record %d: %v: %w", i, err, domain.ErrInvalidRecord)
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodeAppraisals reads an appraisal document and flattens it with
// MapAppraisals.
func DecodeAppraisals(r io.Reader) ([]domain.PropertyRecord, error) {
	var payload any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode appraisals: %w", err)
	}
	return MapAppraisals(payload)
}

// MapAppraisals flattens appraisals into property records. payload is either
// a list of appraisals or an object holding one under "appraisals". The
// appraisal's position is its subject_id; property IDs run from 1 across the
// whole document.
func MapAppraisals(payload any) ([]domain.PropertyRecord, error) {
	list, err := appraisalList(payload)
	if err != nil {
		return nil, err
	}

	var out []domain.PropertyRecord
	nextID := int64(1)
	for subject, raw := range list {
		a, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("appraisal %d is %T, not an object: %w", subject, raw, domain.ErrInvalidRecord)
		}
		orderID := firstNonEmptyAlias(a, appraisalAliases, "order_id")
		props, _ := lookupAny(a, "properties").([]any)
		if len(props) == 0 {
			log.Debug().Int("subject_id", subject).Msg("appraisal has no candidate properties")
		}
		for _, pr := range props {
			p, ok := pr.(map[string]any)
			if !ok {
				log.Warn().Int("subject_id", subject).Str("type", fmt.Sprintf("%T", pr)).Msg("skipping non-object property")
				continue
			}
			rec := mapProperty(p)
			rec.PropertyID = nextID
			rec.SubjectID = int64(subject)
			rec.OrderID = orderID
			out = append(out, rec)
			nextID++
		}
	}
	return out, nil
}

func appraisalList(payload any) ([]any, error) {
	switch v := payload.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if list, ok := v["appraisals"].([]any); ok {
			return list, nil
		}
		if len(v) == 1 {
			for k, inner := range v {
				if list, ok := inner.([]any); ok {
					log.Warn().Str("key", k).Msg("appraisal list found under unexpected key")
					return list, nil
				}
			}
		}
	}
	return nil, fmt.Errorf("appraisal payload is %T, want a list or {\"appraisals\": [...]}: %w", payload, domain.ErrInvalidRecord)
}

func mapProperty(p map[string]any) domain.PropertyRecord {
	return domain.PropertyRecord{
		Address:             firstNonEmptyAlias(p, propertyAliases, "address"),
		StructureType:       firstNonEmptyAlias(p, propertyAliases, "structure_type"),
		ClosePrice:          getFloatFlexible(p, propertyAliases["close_price"]...),
		GLASqft:             getFloatFlexible(p, propertyAliases["gla"]...),
		BedroomsTotal:       getFloatFlexible(p, propertyAliases["bedrooms"]...),
		Latitude:            getFloatFlexible(p, propertyAliases["latitude"]...),
		Longitude:           getFloatFlexible(p, propertyAliases["longitude"]...),
		City:                firstNonEmptyAlias(p, propertyAliases, "city"),
		Province:            firstNonEmptyAlias(p, propertyAliases, "province"),
		PostalCode:          firstNonEmptyAlias(p, propertyAliases, "postal_code"),
		CloseDate:           firstNonEmptyAlias(p, propertyAliases, "close_date"),
		YearBuilt:           getIntFlexible(p, propertyAliases["year_built"]...),
		LotSizeSqft:         getFloatFlexible(p, propertyAliases["lot_size"]...),
		BathroomsEquivalent: getFloatFlexible(p, propertyAliases["bathrooms"]...),
	}
}
