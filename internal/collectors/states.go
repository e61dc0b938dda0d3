package collectors

import "strings"

// stateFips maps postal codes to census state FIPS codes.
var stateFips = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56",
}

type crimeRates struct {
	Violent  float64 // incidents per 100k residents
	Property float64
}

// National baseline used for relative scoring.
var nationalCrime = crimeRates{Violent: 380.7, Property: 1954.4}

// stateCrimeRates carries state-level UCR-style rates per 100k. State
// granularity is a proxy; results carry medium confidence.
var stateCrimeRates = map[string]crimeRates{
	"AL": {453.6, 2385.1}, "AK": {758.9, 2765.4}, "AZ": {431.5, 2287.6},
	"AR": {645.3, 2635.7}, "CA": {499.5, 2380.4}, "CO": {492.5, 2742.4},
	"CT": {150.0, 1565.2}, "DE": {384.2, 1913.7}, "DC": {812.3, 3559.1},
	"FL": {258.9, 1769.9}, "GA": {367.8, 1915.5}, "HI": {254.2, 2541.8},
	"ID": {241.4, 1100.4}, "IL": {287.4, 1843.8}, "IN": {334.3, 1870.9},
	"IA": {286.5, 1660.0}, "KS": {425.0, 2225.9}, "KY": {259.1, 1683.7},
	"LA": {628.6, 2884.2}, "ME": {103.3, 1130.1}, "MD": {398.5, 1875.0},
	"MA": {322.0, 1102.9}, "MI": {461.0, 1600.6}, "MN": {277.5, 2125.3},
	"MS": {291.4, 2045.8}, "MO": {488.0, 2285.7}, "MT": {469.8, 2085.5},
	"NE": {334.1, 1825.5}, "NV": {454.0, 2177.3}, "NH": {146.4, 940.2},
	"NJ": {203.4, 1158.7}, "NM": {780.5, 2841.9}, "NY": {429.5, 1555.7},
	"NC": {405.3, 2125.6}, "ND": {280.6, 1945.2}, "OH": {293.2, 1662.9},
	"OK": {458.4, 2455.6}, "OR": {342.0, 2832.2}, "PA": {280.3, 1270.4},
	"RI": {173.4, 1225.8}, "SC": {491.3, 2575.6}, "SD": {399.4, 1570.3},
	"TN": {621.6, 2388.0}, "TX": {446.5, 2245.2}, "UT": {241.0, 1925.1},
	"VT": {173.4, 1065.0}, "VA": {234.0, 1478.5}, "WA": {375.6, 2960.5},
	"WV": {355.9, 1445.0}, "WI": {323.4, 1381.7}, "WY": {234.2, 1366.8},
}

// stateFromAddress pulls the two-letter state code out of a free-form US
// address, scanning from the end where the state usually sits.
func stateFromAddress(address string) string {
	fields := strings.FieldsFunc(address, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == ';'
	})
	for i := len(fields) - 1; i >= 0; i-- {
		token := strings.ToUpper(fields[i])
		if _, ok := stateFips[token]; ok {
			return token
		}
	}
	return ""
}
