package analysis

// metadataFields lists metric keys that describe the collection itself
// rather than the location. Every counter shares this one set.
var metadataFields = map[string]struct{}{
	"success":             {},
	"address":             {},
	"coordinates":         {},
	"data_source":         {},
	"note":                {},
	"score":               {},
	"radius_miles":        {},
	"collection_time_ms":  {},
	"metrics_count":       {},
	"explanation":         {},
	"error":               {},
	"metrics":             {},
	"search_radius_miles": {},
	"centers_analyzed":    {},
	"total_population":    {},
	"land_area_sqmi":      {},
	"jurisdiction":        {},
	"state":               {},
	"centers_details":     {},
	"data_source_details": {},
}

// CountDataPoints counts the scalar metric values gathered across all
// categories, skipping metadata fields. Nested maps and slices do not
// count; only numbers, strings, and booleans do.
func CountDataPoints(categories map[string]CategoryResult) int {
	n := 0
	for _, cat := range categories {
		for key, val := range cat.Metrics {
			if _, skip := metadataFields[key]; skip {
				continue
			}
			switch val.(type) {
			case float64, float32, int, int8, int16, int32, int64,
				uint, uint8, uint16, uint32, uint64, bool, string:
				n++
			}
		}
	}
	return n
}
