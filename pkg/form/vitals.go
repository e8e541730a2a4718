package form

import "github.com/MrWong99/vitalvoice/pkg/types"

// Vitals returns the built-in glucose and blood pressure form. The meal type
// is only asked after a post-meal reading.
func Vitals() Form {
	return Form{
		Name: "vitals",
		Fields: []Field{
			{
				Name:     "glucose",
				Label:    "blood glucose",
				Labels:   map[types.Language]string{types.Swahili: "sukari ya damu"},
				Required: true,
				Kind:     Numeric{Min: 20, Max: 600, Unit: "mg/dL"},
			},
			{
				Name:     "context",
				Label:    "when the reading was taken",
				Labels:   map[types.Language]string{types.Swahili: "wakati kipimo kilichukuliwa"},
				Required: true,
				Kind:     Categorical{Options: []string{"Fasting", "Pre-meal", "Post-meal", "Random", "Bedtime"}},
			},
			{
				Name:      "meal_type",
				Label:     "type of meal",
				Labels:    map[types.Language]string{types.Swahili: "aina ya chakula"},
				DependsOn: &Dependency{Field: "context", Value: "Post-meal"},
				Kind:      Categorical{Options: []string{"High-carb", "Balanced", "Protein", "Light snack"}},
			},
			{
				Name:     "systolic",
				Label:    "systolic pressure",
				Labels:   map[types.Language]string{types.Swahili: "shinikizo la juu"},
				Required: true,
				Kind:     Numeric{Min: 60, Max: 250, Unit: "mmHg"},
			},
			{
				Name:     "diastolic",
				Label:    "diastolic pressure",
				Labels:   map[types.Language]string{types.Swahili: "shinikizo la chini"},
				Required: true,
				Kind:     Numeric{Min: 30, Max: 150, Unit: "mmHg"},
			},
			{
				Name:   "pulse",
				Label:  "pulse",
				Labels: map[types.Language]string{types.Swahili: "mapigo ya moyo"},
				Kind:   Numeric{Min: 30, Max: 220, Unit: "bpm"},
			},
			{
				Name:   "position",
				Label:  "body position",
				Labels: map[types.Language]string{types.Swahili: "mkao wa mwili"},
				Kind:   Categorical{Options: []string{"Sitting", "Standing", "Lying down"}},
			},
			{
				Name:   "arm",
				Label:  "arm used",
				Labels: map[types.Language]string{types.Swahili: "mkono uliotumika"},
				Kind:   Categorical{Options: []string{"Left", "Right"}},
			},
		},
	}
}
