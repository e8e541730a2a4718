package options

import "github.com/MrWong99/vitalvoice/pkg/types"

// builtin lists trigger phrases in option order first, so option order is
// fixed by the phrase tables, then heuristic hints in the order they should
// be tried. Heuristic order matters: "before my meal" must reach Pre-meal
// before the broader Post-meal hints see "meal".
func builtin() []Entry {
	var out []Entry
	for _, tbl := range []struct {
		lang    types.Language
		phrases []fieldTable
		hints   []fieldTable
	}{
		{types.English, englishPhrases, englishHints},
		{types.Swahili, swahiliPhrases, swahiliHints},
	} {
		for _, ft := range tbl.phrases {
			for _, o := range ft.options {
				out = append(out, Entry{Language: tbl.lang, Field: ft.field, Option: o.option, Phrases: o.words})
			}
		}
		for _, ft := range tbl.hints {
			for _, o := range ft.options {
				out = append(out, Entry{Language: tbl.lang, Field: ft.field, Option: o.option, Hints: o.words})
			}
		}
	}
	return out
}

type optionWords struct {
	option string
	words  []string
}

type fieldTable struct {
	field   string
	options []optionWords
}

var englishPhrases = []fieldTable{
	{FieldContext, []optionWords{
		{"Fasting", []string{"fasting", "fast", "empty stomach", "no food", "havent eaten", "not eaten", "before breakfast", "first thing in the morning"}},
		{"Pre-meal", []string{"pre meal", "before meal", "before eating", "before food", "before lunch", "before dinner", "about to eat"}},
		{"Post-meal", []string{"post meal", "after meal", "after eating", "after food", "after lunch", "after dinner", "after breakfast", "just ate", "just eaten"}},
		{"Random", []string{"random", "randomly", "any time", "anytime", "no particular time"}},
		{"Bedtime", []string{"bedtime", "bed time", "before bed", "before sleep", "before sleeping", "going to sleep"}},
	}},
	{FieldMealType, []optionWords{
		{"High-carb", []string{"high carb", "high carbohydrate", "carbs", "carbohydrates", "rice", "ugali", "bread", "chapati", "pasta", "potatoes"}},
		{"Balanced", []string{"balanced", "balanced meal", "mixed meal", "normal meal", "regular meal"}},
		{"Protein", []string{"protein", "high protein", "meat", "eggs", "fish", "chicken", "beans"}},
		{"Light snack", []string{"light snack", "snack", "light meal", "fruit", "biscuit", "biscuits"}},
	}},
	{FieldPosition, []optionWords{
		{"Sitting", []string{"sitting", "seated", "sitting down", "sat down"}},
		{"Standing", []string{"standing", "standing up", "on my feet"}},
		{"Lying down", []string{"lying down", "lying", "laying down", "lie down", "in bed"}},
	}},
	{FieldArm, []optionWords{
		{"Left", []string{"left", "left arm", "left hand", "left side"}},
		{"Right", []string{"right", "right arm", "right hand", "right side"}},
	}},
}

var englishHints = []fieldTable{
	{FieldContext, []optionWords{
		{"Bedtime", []string{"bed", "sleep", "night"}},
		{"Pre-meal", []string{"before"}},
		{"Post-meal", []string{"after", "eat", "ate", "food", "meal", "lunch", "dinner", "breakfast"}},
		{"Fasting", []string{"fast", "empty", "hungry", "nothing"}},
		{"Random", []string{"random", "whenever", "check"}},
	}},
	{FieldMealType, []optionWords{
		{"High-carb", []string{"carb", "starch", "sugar", "sweet"}},
		{"Protein", []string{"prot", "meat", "egg"}},
		{"Light snack", []string{"snack", "small", "little", "light"}},
		{"Balanced", []string{"balan", "mix", "normal", "regular"}},
	}},
	{FieldPosition, []optionWords{
		{"Lying down", []string{"lay", "lie", "bed", "flat"}},
		{"Standing", []string{"stand", "stood", "feet"}},
		{"Sitting", []string{"sit", "seat", "chair"}},
	}},
	{FieldArm, []optionWords{
		{"Left", []string{"lef", "lift"}},
		{"Right", []string{"righ", "rite", "rait"}},
	}},
}

var swahiliPhrases = []fieldTable{
	{FieldContext, []optionWords{
		{"Fasting", []string{"kufunga", "nimefunga", "tumbo tupu", "sijala", "sijakula", "bila kula"}},
		{"Pre-meal", []string{"kabla ya kula", "kabla ya chakula", "kabla ya mlo"}},
		{"Post-meal", []string{"baada ya kula", "baada ya chakula", "baada ya mlo", "nimekula", "nimemaliza kula"}},
		{"Random", []string{"wakati wowote", "bila mpangilio", "nasibu", "tu hivi"}},
		{"Bedtime", []string{"kabla ya kulala", "wakati wa kulala", "naenda kulala"}},
	}},
	{FieldMealType, []optionWords{
		{"High-carb", []string{"wanga", "wali", "ugali", "mkate", "chapati", "viazi"}},
		{"Balanced", []string{"mlo kamili", "chakula cha kawaida", "mchanganyiko"}},
		{"Protein", []string{"protini", "nyama", "mayai", "samaki", "kuku", "maharage"}},
		{"Light snack", []string{"kitafunio", "vitafunio", "matunda", "chai", "kidogo"}},
	}},
	{FieldPosition, []optionWords{
		{"Sitting", []string{"nimekaa", "kukaa", "nimeketi", "kuketi"}},
		{"Standing", []string{"nimesimama", "kusimama", "wima"}},
		{"Lying down", []string{"nimelala", "kulala chini", "nimejilaza", "kitandani"}},
	}},
	{FieldArm, []optionWords{
		{"Left", []string{"kushoto", "mkono wa kushoto"}},
		{"Right", []string{"kulia", "mkono wa kulia"}},
	}},
}

var swahiliHints = []fieldTable{
	{FieldContext, []optionWords{
		{"Bedtime", []string{"lala", "usiku"}},
		{"Fasting", []string{"funga", "tupu", "njaa"}},
		{"Pre-meal", []string{"kabla"}},
		{"Post-meal", []string{"baada", "kula", "chakula", "mlo"}},
	}},
	{FieldMealType, []optionWords{
		{"High-carb", []string{"wanga", "sukari", "tamu"}},
		{"Protein", []string{"nyama", "protin"}},
		{"Light snack", []string{"kidogo", "tafun"}},
		{"Balanced", []string{"kawaida", "kamili", "changany"}},
	}},
	{FieldPosition, []optionWords{
		{"Lying down", []string{"lala", "laza", "kitanda"}},
		{"Standing", []string{"sima"}},
		{"Sitting", []string{"kaa", "keti", "kiti"}},
	}},
	{FieldArm, []optionWords{
		{"Left", []string{"shoto"}},
		{"Right", []string{"lia"}},
	}},
}
