package mysql

// propertyColumns is shared by the input and output tables, in scan order.
const propertyColumns = `property_id, subject_id, order_id, address, structure_type,
  close_price, gla_sqft, bedrooms_total, latitude, longitude,
  city, province, postal_code, close_date, year_built, lot_size_sqft, bathrooms_equivalent`

const loadPropertiesSQL = `SELECT ` + propertyColumns + `
FROM properties
ORDER BY property_id`

const upsertPropertiesPrefix = "INSERT INTO properties (" + propertyColumns + ")\nVALUES "

// Use VALUES(col) for broad compatibility.
const upsertPropertiesOnDup = ` ON DUPLICATE KEY UPDATE
  subject_id           = VALUES(subject_id),
  order_id             = VALUES(order_id),
  address              = VALUES(address),
  structure_type       = VALUES(structure_type),
  close_price          = VALUES(close_price),
  gla_sqft             = VALUES(gla_sqft),
  bedrooms_total       = VALUES(bedrooms_total),
  latitude             = VALUES(latitude),
  longitude            = VALUES(longitude),
  city                 = VALUES(city),
  province             = VALUES(province),
  postal_code          = VALUES(postal_code),
  close_date           = VALUES(close_date),
  year_built           = VALUES(year_built),
  lot_size_sqft        = VALUES(lot_size_sqft),
  bathrooms_equivalent = VALUES(bathrooms_equivalent),
  updated_at           = CURRENT_TIMESTAMP`

const clearCleanedSQL = `DELETE FROM properties_deduplicated`

const insertCleanedPrefix = "INSERT INTO properties_deduplicated (run_id, " + propertyColumns + ")\nVALUES "

const loadCleanedSQL = `SELECT ` + propertyColumns + `
FROM properties_deduplicated
ORDER BY property_id`

const insertRunSQL = `
INSERT INTO dedup_runs
  (id, started_at, duration_ms, input_count, output_count, detected_count, restored_count, geocoded, below_floor)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertRemovalsPrefix = "INSERT INTO dedup_removals (run_id, property_id, subject_id, kept_id, pass)\nVALUES "

const getRunSQL = `
SELECT id, started_at, duration_ms, input_count, output_count, detected_count, restored_count, geocoded, below_floor
FROM dedup_runs
WHERE id = ?
`

const listRemovalsSQL = `
SELECT property_id, subject_id, kept_id, pass
FROM dedup_removals
WHERE run_id = ?
ORDER BY property_id
`
