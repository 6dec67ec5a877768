package domain

import "strings"

// CountryInfo is the reference data attached to an ISO3 code at ingestion.
type CountryInfo struct {
	Name   string
	Region string
}

// Countries maps ISO3 codes of UN member and observer states to their display
// name and corpus region.
var Countries = map[string]CountryInfo{
	"AFG": {"Afghanistan", "Asia"},
	"AGO": {"Angola", "Africa"},
	"ALB": {"Albania", "Europe"},
	"AND": {"Andorra", "Europe"},
	"ARE": {"United Arab Emirates", "Asia"},
	"ARG": {"Argentina", "South America"},
	"ARM": {"Armenia", "Europe"},
	"ATG": {"Antigua and Barbuda", "Caribbean"},
	"AUS": {"Australia", "Oceania"},
	"AUT": {"Austria", "Europe"},
	"AZE": {"Azerbaijan", "Europe"},
	"BDI": {"Burundi", "Africa"},
	"BEL": {"Belgium", "Europe"},
	"BEN": {"Benin", "Africa"},
	"BFA": {"Burkina Faso", "Africa"},
	"BGD": {"Bangladesh", "Asia"},
	"BGR": {"Bulgaria", "Europe"},
	"BHR": {"Bahrain", "Asia"},
	"BHS": {"Bahamas", "Caribbean"},
	"BIH": {"Bosnia and Herzegovina", "Europe"},
	"BLR": {"Belarus", "Europe"},
	"BLZ": {"Belize", "Caribbean"},
	"BOL": {"Bolivia", "South America"},
	"BRA": {"Brazil", "South America"},
	"BRB": {"Barbados", "Caribbean"},
	"BRN": {"Brunei", "Asia"},
	"BTN": {"Bhutan", "Asia"},
	"BWA": {"Botswana", "Africa"},
	"CAF": {"Central African Republic", "Africa"},
	"CAN": {"Canada", "North America"},
	"CHE": {"Switzerland", "Europe"},
	"CHL": {"Chile", "South America"},
	"CHN": {"China", "Asia"},
	"CIV": {"Côte d'Ivoire", "Africa"},
	"CMR": {"Cameroon", "Africa"},
	"COD": {"Democratic Republic of the Congo", "Africa"},
	"COG": {"Republic of the Congo", "Africa"},
	"COL": {"Colombia", "South America"},
	"COM": {"Comoros", "Africa"},
	"CPV": {"Cape Verde", "Africa"},
	"CRI": {"Costa Rica", "North America"},
	"CUB": {"Cuba", "North America"},
	"CYP": {"Cyprus", "Europe"},
	"CZE": {"Czech Republic", "Europe"},
	"DEU": {"Germany", "Europe"},
	"DJI": {"Djibouti", "Africa"},
	"DMA": {"Dominica", "Caribbean"},
	"DNK": {"Denmark", "Europe"},
	"DOM": {"Dominican Republic", "North America"},
	"DZA": {"Algeria", "Africa"},
	"ECU": {"Ecuador", "South America"},
	"EGY": {"Egypt", "Africa"},
	"ERI": {"Eritrea", "Africa"},
	"ESP": {"Spain", "Europe"},
	"EST": {"Estonia", "Europe"},
	"ETH": {"Ethiopia", "Africa"},
	"FIN": {"Finland", "Europe"},
	"FJI": {"Fiji", "Oceania"},
	"FRA": {"France", "Europe"},
	"FSM": {"Micronesia", "Oceania"},
	"GAB": {"Gabon", "Africa"},
	"GBR": {"United Kingdom", "Europe"},
	"GEO": {"Georgia", "Europe"},
	"GHA": {"Ghana", "Africa"},
	"GIN": {"Guinea", "Africa"},
	"GMB": {"Gambia", "Africa"},
	"GNB": {"Guinea-Bissau", "Africa"},
	"GNQ": {"Equatorial Guinea", "Africa"},
	"GRC": {"Greece", "Europe"},
	"GRD": {"Grenada", "Caribbean"},
	"GTM": {"Guatemala", "North America"},
	"GUY": {"Guyana", "South America"},
	"HND": {"Honduras", "North America"},
	"HRV": {"Croatia", "Europe"},
	"HTI": {"Haiti", "Caribbean"},
	"HUN": {"Hungary", "Europe"},
	"IDN": {"Indonesia", "Asia"},
	"IND": {"India", "Asia"},
	"IRL": {"Ireland", "Europe"},
	"IRN": {"Iran", "Asia"},
	"IRQ": {"Iraq", "Asia"},
	"ISL": {"Iceland", "Europe"},
	"ISR": {"Israel", "Asia"},
	"ITA": {"Italy", "Europe"},
	"JAM": {"Jamaica", "North America"},
	"JOR": {"Jordan", "Asia"},
	"JPN": {"Japan", "Asia"},
	"KAZ": {"Kazakhstan", "Asia"},
	"KEN": {"Kenya", "Africa"},
	"KGZ": {"Kyrgyzstan", "Asia"},
	"KHM": {"Cambodia", "Asia"},
	"KIR": {"Kiribati", "Oceania"},
	"KNA": {"Saint Kitts and Nevis", "Caribbean"},
	"KOR": {"South Korea", "Asia"},
	"KWT": {"Kuwait", "Asia"},
	"LAO": {"Laos", "Asia"},
	"LBN": {"Lebanon", "Asia"},
	"LBR": {"Liberia", "Africa"},
	"LBY": {"Libya", "Africa"},
	"LCA": {"Saint Lucia", "Caribbean"},
	"LIE": {"Liechtenstein", "Europe"},
	"LKA": {"Sri Lanka", "Asia"},
	"LSO": {"Lesotho", "Africa"},
	"LTU": {"Lithuania", "Europe"},
	"LUX": {"Luxembourg", "Europe"},
	"LVA": {"Latvia", "Europe"},
	"MAR": {"Morocco", "Africa"},
	"MCO": {"Monaco", "Europe"},
	"MDA": {"Moldova", "Europe"},
	"MDG": {"Madagascar", "Africa"},
	"MDV": {"Maldives", "Asia"},
	"MEX": {"Mexico", "North America"},
	"MHL": {"Marshall Islands", "Oceania"},
	"MKD": {"North Macedonia", "Europe"},
	"MLI": {"Mali", "Africa"},
	"MLT": {"Malta", "Europe"},
	"MMR": {"Myanmar", "Asia"},
	"MNE": {"Montenegro", "Europe"},
	"MNG": {"Mongolia", "Asia"},
	"MOZ": {"Mozambique", "Africa"},
	"MRT": {"Mauritania", "Africa"},
	"MUS": {"Mauritius", "Africa"},
	"MWI": {"Malawi", "Africa"},
	"MYS": {"Malaysia", "Asia"},
	"NAM": {"Namibia", "Africa"},
	"NER": {"Niger", "Africa"},
	"NGA": {"Nigeria", "Africa"},
	"NIC": {"Nicaragua", "North America"},
	"NLD": {"Netherlands", "Europe"},
	"NOR": {"Norway", "Europe"},
	"NPL": {"Nepal", "Asia"},
	"NRU": {"Nauru", "Oceania"},
	"NZL": {"New Zealand", "Oceania"},
	"OMN": {"Oman", "Asia"},
	"PAK": {"Pakistan", "Asia"},
	"PAN": {"Panama", "North America"},
	"PER": {"Peru", "South America"},
	"PHL": {"Philippines", "Asia"},
	"PLW": {"Palau", "Oceania"},
	"PNG": {"Papua New Guinea", "Oceania"},
	"POL": {"Poland", "Europe"},
	"PRK": {"North Korea", "Asia"},
	"PRT": {"Portugal", "Europe"},
	"PRY": {"Paraguay", "South America"},
	"PSE": {"Palestine", "Asia"},
	"QAT": {"Qatar", "Asia"},
	"ROU": {"Romania", "Europe"},
	"RUS": {"Russia", "Europe"},
	"RWA": {"Rwanda", "Africa"},
	"SAU": {"Saudi Arabia", "Asia"},
	"SDN": {"Sudan", "Africa"},
	"SEN": {"Senegal", "Africa"},
	"SGP": {"Singapore", "Asia"},
	"SLB": {"Solomon Islands", "Oceania"},
	"SLE": {"Sierra Leone", "Africa"},
	"SLV": {"El Salvador", "North America"},
	"SMR": {"San Marino", "Europe"},
	"SOM": {"Somalia", "Africa"},
	"SRB": {"Serbia", "Europe"},
	"SSD": {"South Sudan", "Africa"},
	"STP": {"São Tomé and Príncipe", "Africa"},
	"SUR": {"Suriname", "South America"},
	"SVK": {"Slovakia", "Europe"},
	"SVN": {"Slovenia", "Europe"},
	"SWE": {"Sweden", "Europe"},
	"SWZ": {"Eswatini", "Africa"},
	"SYC": {"Seychelles", "Africa"},
	"SYR": {"Syria", "Asia"},
	"TCD": {"Chad", "Africa"},
	"TGO": {"Togo", "Africa"},
	"THA": {"Thailand", "Asia"},
	"TJK": {"Tajikistan", "Asia"},
	"TKM": {"Turkmenistan", "Asia"},
	"TLS": {"Timor-Leste", "Asia"},
	"TON": {"Tonga", "Oceania"},
	"TTO": {"Trinidad and Tobago", "North America"},
	"TUN": {"Tunisia", "Africa"},
	"TUR": {"Turkey", "Europe"},
	"TUV": {"Tuvalu", "Oceania"},
	"TZA": {"Tanzania", "Africa"},
	"UGA": {"Uganda", "Africa"},
	"UKR": {"Ukraine", "Europe"},
	"URY": {"Uruguay", "South America"},
	"USA": {"United States", "North America"},
	"UZB": {"Uzbekistan", "Asia"},
	"VAT": {"Vatican City", "Europe"},
	"VCT": {"Saint Vincent and the Grenadines", "Caribbean"},
	"VEN": {"Venezuela", "South America"},
	"VNM": {"Vietnam", "Asia"},
	"VUT": {"Vanuatu", "Oceania"},
	"WSM": {"Samoa", "Oceania"},
	"YEM": {"Yemen", "Asia"},
	"ZAF": {"South Africa", "Africa"},
	"ZMB": {"Zambia", "Africa"},
	"ZWE": {"Zimbabwe", "Africa"},
}

// regionAliases maps the region labels produced by query extraction to the
// region values stored on speech records.
var regionAliases = map[string][]string{
	"africa":      {"Africa"},
	"europe":      {"Europe"},
	"asia":        {"Asia"},
	"americas":    {"North America", "South America", "Caribbean"},
	"middle east": {"Asia"},
	"pacific":     {"Oceania"},
}

// LookupCountry returns reference data for an ISO3 code (case-insensitive).
func LookupCountry(code string) (CountryInfo, bool) {
	info, ok := Countries[strings.ToUpper(strings.TrimSpace(code))]
	return info, ok
}

// IsAfricanMember reports whether the ISO3 code belongs to an African Union member state.
func IsAfricanMember(code string) bool {
	info, ok := LookupCountry(code)
	return ok && info.Region == "Africa"
}

// ExpandRegions converts extracted region labels to stored region values,
// deduplicated in first-seen order. Unknown labels pass through unchanged.
func ExpandRegions(labels []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, l := range labels {
		stored, ok := regionAliases[strings.ToLower(l)]
		if !ok {
			stored = []string{l}
		}
		for _, r := range stored {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}
