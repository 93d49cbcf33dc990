package edge

// continents maps ISO country codes onto coarse continent codes. Used as a
// last-resort routing heuristic when no explicit colo mapping exists.
var continents = map[string]string{
	// North America
	"US": "NA", "CA": "NA", "MX": "NA",
	// South America
	"BR": "SA", "AR": "SA", "CL": "SA", "CO": "SA", "PE": "SA",
	// Europe
	"GB": "EU", "DE": "EU", "FR": "EU", "NL": "EU", "ES": "EU",
	"IT": "EU", "PL": "EU", "SE": "EU", "CH": "EU", "IE": "EU",
	// Asia
	"CN": "AS", "JP": "AS", "IN": "AS", "KR": "AS", "SG": "AS",
	"HK": "AS", "TW": "AS", "TH": "AS", "ID": "AS", "VN": "AS",
	// Oceania
	"AU": "OC", "NZ": "OC",
	// Africa
	"ZA": "AF", "NG": "AF", "EG": "AF", "KE": "AF", "MA": "AF",
}

// ContinentFor returns the continent code for a country, or "" when unknown.
func ContinentFor(country string) string {
	return continents[country]
}
