package speechnlp

// countryVariants maps a canonical country label to its surface forms:
// official name, demonym, capital and common abbreviation.
var countryVariants = map[string][]string{
	"china":          {"china", "chinese", "peoples republic of china", "prc", "beijing"},
	"united states":  {"united states", "usa", "us", "america", "american", "washington"},
	"russia":         {"russia", "russian", "soviet union", "ussr", "moscow"},
	"united kingdom": {"united kingdom", "uk", "britain", "british", "london"},
	"france":         {"france", "french", "paris"},
	"germany":        {"germany", "german", "berlin"},
	"japan":          {"japan", "japanese", "tokyo"},
	"india":          {"india", "indian", "new delhi"},
	"brazil":         {"brazil", "brazilian", "brasilia"},
	"canada":         {"canada", "canadian", "ottawa"},
	"australia":      {"australia", "australian", "canberra"},
	"south africa":   {"south africa", "south african", "pretoria"},
	"nigeria":        {"nigeria", "nigerian", "abuja"},
	"egypt":          {"egypt", "egyptian", "cairo"},
	"turkey":         {"turkey", "turkish", "ankara"},
	"iran":           {"iran", "iranian", "tehran"},
	"saudi arabia":   {"saudi arabia", "saudi", "riyadh"},
	"kenya":          {"kenya", "kenyan", "nairobi"},
	"ethiopia":       {"ethiopia", "ethiopian", "addis ababa"},
	"ghana":          {"ghana", "ghanaian", "accra"},
	"senegal":        {"senegal", "senegalese", "dakar"},
	"mexico":         {"mexico", "mexican", "mexico city"},
	"argentina":      {"argentina", "argentine", "argentinian", "buenos aires"},
	"indonesia":      {"indonesia", "indonesian", "jakarta"},
	"pakistan":       {"pakistan", "pakistani", "islamabad"},
	"south korea":    {"south korea", "republic of korea", "seoul"},
	"north korea":    {"north korea", "dprk", "pyongyang"},
	"israel":         {"israel", "israeli", "jerusalem"},
	"italy":          {"italy", "italian", "rome"},
	"spain":          {"spain", "spanish", "madrid"},
	"ukraine":        {"ukraine", "ukrainian", "kyiv", "kiev"},
	"cuba":           {"cuba", "cuban", "havana"},
	"venezuela":      {"venezuela", "venezuelan", "caracas"},
}

// topicKeywords maps a topic label to the keywords that signal it.
var topicKeywords = map[string][]string{
	"climate change":          {"climate", "environment", "global warming", "carbon", "emissions", "greenhouse", "sustainability"},
	"economic development":    {"economic", "development", "economy", "trade", "commerce", "growth", "poverty", "inequality"},
	"peace and security":      {"peace", "security", "conflict", "war", "military", "terrorism", "violence", "stability"},
	"human rights":            {"human rights", "rights", "democracy", "freedom", "justice", "equality", "dignity"},
	"health":                  {"health", "pandemic", "disease", "medical", "healthcare", "public health", "wellbeing"},
	"education":               {"education", "school", "learning", "knowledge", "literacy", "training", "skills"},
	"technology":              {"technology", "digital", "innovation", "ai", "artificial intelligence", "cyber", "internet"},
	"migration":               {"migration", "refugees", "immigration", "displacement", "mobility", "asylum"},
	"gender equality":         {"gender", "women", "equality", "feminism", "empowerment", "girls", "feminist"},
	"sustainable development": {"sustainable", "sustainability", "sdgs", "goals", "agenda 2030", "development goals"},
	"multilateralism":         {"multilateral", "cooperation", "international", "global governance", "united nations"},
	"development assistance":  {"aid", "assistance", "development cooperation", "oda", "foreign aid"},
	"disarmament":             {"disarmament", "arms control", "nuclear", "weapons", "non-proliferation"},
	"humanitarian":            {"humanitarian", "crisis", "emergency", "relief", "assistance", "vulnerable"},
}

var regionVariants = map[string][]string{
	"africa":      {"africa", "african", "sub-saharan", "north africa", "west africa", "east africa", "southern africa"},
	"europe":      {"europe", "european", "eastern europe", "western europe", "northern europe", "southern europe"},
	"asia":        {"asia", "asian", "southeast asia", "south asia", "east asia", "central asia"},
	"americas":    {"americas", "north america", "south america", "latin america", "caribbean"},
	"middle east": {"middle east", "mideast", "gulf", "persian gulf", "arab"},
	"pacific":     {"pacific", "oceania", "pacific islands", "small island states"},
}

var organizationVariants = map[string][]string{
	"united nations": {"un", "united nations", "unga", "general assembly"},
	"african union":  {"au", "african union", "oau"},
	"european union": {"eu", "european union"},
	"g7":             {"g7", "group of seven"},
	"g20":            {"g20", "group of twenty"},
	"nato":           {"nato", "north atlantic treaty organization"},
	"who":            {"who", "world health organization"},
	"world bank":     {"world bank", "wb"},
	"imf":            {"imf", "international monetary fund"},
	"wto":            {"wto", "world trade organization"},
}

// TopicKeywords returns the keyword variants registered for a topic label.
func TopicKeywords(topic string) []string {
	return topicKeywords[topic]
}
