package lexicon

import "github.com/MrWong99/vitalvoice/pkg/types"

// englishData lists canonical spellings first, followed by the accented and
// misheard forms transcription services commonly return for them.
var englishData = languageData{
	lang:       types.English,
	connectors: []string{"and"},
	fillers: []string{
		"the", "a", "my", "is", "was", "it", "its", "this", "about", "around",
		"reading", "level", "sugar", "glucose", "pressure", "pulse", "rate",
		"morning", "evening", "please", "um", "uh",
	},
	groups: []group{
		{0, []string{"zero", "ziro", "sero", "nil", "oh"}},
		{1, []string{"one", "won", "wan"}},
		{2, []string{"two", "tuu"}},
		{3, []string{"three", "tree", "tri", "thri"}},
		{4, []string{"four", "foa", "fower"}},
		{5, []string{"five", "faiv", "fayv", "fife"}},
		{6, []string{"six", "siks", "sicks"}},
		{7, []string{"seven", "sevun", "seben", "sevn"}},
		{8, []string{"eight", "eit", "eyt"}},
		{9, []string{"nine", "nain", "nayn"}},
		{10, []string{"ten", "tenn"}},
		{11, []string{"eleven", "elevn", "ileven"}},
		{12, []string{"twelve", "twelf", "tuelv"}},
		{13, []string{"thirteen", "tirteen"}},
		{14, []string{"fourteen", "forteen", "fotin"}},
		{15, []string{"fifteen", "fiftin"}},
		{16, []string{"sixteen", "sikstin"}},
		{17, []string{"seventeen", "seventin"}},
		{18, []string{"eighteen", "eitin"}},
		{19, []string{"nineteen", "naintin"}},
		{20, []string{"twenty", "twenti", "tweny", "twendy"}},
		{30, []string{"thirty", "thirti", "thurty"}},
		{40, []string{"forty", "fourty", "forti", "fotea", "foti"}},
		{50, []string{"fifty", "fifti", "fifity"}},
		{60, []string{"sixty", "sixti", "siksti"}},
		{70, []string{"seventy", "seventi", "sebenti"}},
		{80, []string{"eighty", "eighti", "eiti"}},
		{90, []string{"ninety", "ninty", "nainti"}},
		{100, []string{"hundred", "hundret", "hunred"}},
	},
}
