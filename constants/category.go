package constants

import (
	"strings"
)

type Cuisine string

const (
	American      Cuisine = "American"
	Asian         Cuisine = "Asian"
	BBQ           Cuisine = "BBQ"
	Burgers       Cuisine = "Burgers"
	Caribbean     Cuisine = "Caribbean"
	Desserts      Cuisine = "Desserts"
	Greek         Cuisine = "Greek"
	Italian       Cuisine = "Italian"
	Mexican       Cuisine = "Mexican"
	Seafood       Cuisine = "Seafood"
	Southern      Cuisine = "Southern"
	TexMex        Cuisine = "Tex-Mex"
	Vegan         Cuisine = "Vegan"
	OtherCuisine  Cuisine = "Other"
	CoffeeAndTea  Cuisine = "Coffee & Tea"
	Mediterranean Cuisine = "Mediterranean"
)

var allCuisines = []Cuisine{
	American, Asian, BBQ, Burgers, Caribbean, CoffeeAndTea, Desserts, Greek,
	Italian, Mediterranean, Mexican, Seafood, Southern, TexMex, Vegan, OtherCuisine,
}

func CuisinesAsStringSlice() []string {
	result := make([]string, len(allCuisines))
	for i, c := range allCuisines {
		result[i] = string(c)
	}
	return result
}

// CanonicalizeCuisine maps a free-form cuisine label onto a known cuisine.
// Unknown labels are returned trimmed with ok=false so callers can keep them.
func CanonicalizeCuisine(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	normalized := strings.ToLower(trimmed)

	// synonyms map
	synonyms := map[string]Cuisine{
		"barbecue":       BBQ,
		"barbeque":       BBQ,
		"bar-b-q":        BBQ,
		"tex mex":        TexMex,
		"texmex":         TexMex,
		"tacos":          Mexican,
		"burritos":       Mexican,
		"hamburgers":     Burgers,
		"sweets":         Desserts,
		"ice cream":      Desserts,
		"coffee":         CoffeeAndTea,
		"tea":            CoffeeAndTea,
		"plant-based":    Vegan,
		"plant based":    Vegan,
		"soul food":      Southern,
		"lowcountry":     Southern,
		"low country":    Southern,
		"fish":           Seafood,
		"shrimp":         Seafood,
		"gyros":          Greek,
		"pizza":          Italian,
		"jamaican":       Caribbean,
		"middle eastern": Mediterranean,
	}

	if c, ok := synonyms[normalized]; ok {
		return string(c), true
	}

	for _, c := range allCuisines {
		if normalized == strings.ToLower(string(c)) {
			return string(c), true
		}
	}

	return trimmed, false
}
