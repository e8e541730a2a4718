package lexicon

import "github.com/MrWong99/vitalvoice/pkg/types"

// swahiliData forms numbers above ten with the connector "na"
// ("ishirini na tano" = 25) and puts the hundreds multiplier after the marker
// ("mia mbili" = 200).
var swahiliData = languageData{
	lang:              types.Swahili,
	connectors:        []string{"na"},
	fillers: []string{
		"ni", "yangu", "yake", "ilikuwa", "kipimo", "sukari", "shinikizo",
		"mapigo", "karibu", "kama", "tafadhali",
	},
	multiplierFollows: true,
	groups: []group{
		{0, []string{"sifuri", "sufuri", "sifur"}},
		{1, []string{"moja", "moj"}},
		{2, []string{"mbili", "mbiri", "bili"}},
		{3, []string{"tatu", "tato"}},
		{4, []string{"nne", "ine"}},
		{5, []string{"tano", "tanu"}},
		{6, []string{"sita", "sitta"}},
		{7, []string{"saba", "sabaa"}},
		{8, []string{"nane"}},
		{9, []string{"tisa", "tisaa"}},
		{10, []string{"kumi", "kummi"}},
		{20, []string{"ishirini", "ishrini", "ishirin"}},
		{30, []string{"thelathini", "thelatini", "selasini", "telathini"}},
		{40, []string{"arobaini", "arubaini", "arbaini"}},
		{50, []string{"hamsini", "hamsin", "hamsine", "hamusini"}},
		{60, []string{"sitini", "sittini"}},
		{70, []string{"sabini", "sabiini"}},
		{80, []string{"themanini", "themanin", "semanini"}},
		{90, []string{"tisini", "tissini"}},
		{100, []string{"mia", "miya"}},
	},
}
