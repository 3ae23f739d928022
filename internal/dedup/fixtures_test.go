package dedup

import "comps_dedup/internal/domain"

func ptr[T any](v T) *T { return &v }

// prop builds a record; zero numeric arguments are treated as missing.
func prop(id, subject int64, addr, typ string, price, gla, beds float64) domain.PropertyRecord {
	r := domain.PropertyRecord{PropertyID: id, SubjectID: subject}
	if addr != "" {
		r.Address = ptr(addr)
	}
	if typ != "" {
		r.StructureType = ptr(typ)
	}
	if price != 0 {
		r.ClosePrice = ptr(price)
	}
	if gla != 0 {
		r.GLASqft = ptr(gla)
	}
	if beds != 0 {
		r.BedroomsTotal = ptr(beds)
	}
	return r
}

func at(r domain.PropertyRecord, lat, lon float64) domain.PropertyRecord {
	r.Latitude = ptr(lat)
	r.Longitude = ptr(lon)
	return r
}
