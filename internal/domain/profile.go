package domain

import (
	"fmt"
	"strings"
	"time"
)

// User is the per-uid profile document used by the vector pipeline.
type User struct {
	UID         string      `json:"uid"`
	Email       string      `json:"email"`
	PhotoURL    string      `json:"photo_url"`
	Preferences Preferences `json:"preferences"`
	Created     time.Time   `json:"-"`
	Updated     time.Time   `json:"-"`
}

// Account is the login record keyed by the identity provider's subject.
type Account struct {
	ID           string     `json:"id"`
	GoogleUserID string     `json:"google_user_id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at"`
}

// Partner holds the dining preferences of the caller's partner.
type Partner struct {
	ID           string             `json:"id"`
	GoogleUserID string             `json:"google_user_id"`
	Name         string             `json:"name"`
	Preferences  PartnerPreferences `json:"preferences"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	DeletedAt    *time.Time         `json:"deleted_at"`
}

// PartnerCreate is the body of POST /partners.
type PartnerCreate struct {
	Name        string             `json:"name"`
	Preferences PartnerPreferences `json:"preferences"`
}

// Validate checks the payload against the closed enumerations.
func (p PartnerCreate) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return p.Preferences.Validate()
}

// Cuisine is a closed set of cuisine labels.
type Cuisine string

// Diet is a closed set of dietary regimes.
type Diet string

// Allergy is a closed set of allergens.
type Allergy string

// Cuisines.
const (
	CuisineIndian        Cuisine = "Indian"
	CuisineChinese       Cuisine = "Chinese"
	CuisineMexican       Cuisine = "Mexican"
	CuisineItalian       Cuisine = "Italian"
	CuisineThai          Cuisine = "Thai"
	CuisineJapanese      Cuisine = "Japanese"
	CuisineAmerican      Cuisine = "American"
	CuisineFrench        Cuisine = "French"
	CuisineSpanish       Cuisine = "Spanish"
	CuisineGreek         Cuisine = "Greek"
	CuisineAsian         Cuisine = "Asian"
	CuisineMediterranean Cuisine = "Mediterranean"
	CuisineKorean        Cuisine = "Korean"
)

// Diets.
const (
	DietVegan       Diet = "Vegan"
	DietVegetarian  Diet = "Vegetarian"
	DietPescatarian Diet = "Pescatarian"
	DietGlutenFree  Diet = "Gluten Free"
	DietDairyFree   Diet = "Dairy Free"
	DietKeto        Diet = "Keto"
	DietHalal       Diet = "Halal"
	DietKosher      Diet = "Kosher"
)

// Allergies.
const (
	AllergyPeanut    Allergy = "Peanut"
	AllergyTreeNut   Allergy = "Tree Nut"
	AllergyDairy     Allergy = "Dairy"
	AllergyEgg       Allergy = "Egg"
	AllergyWheat     Allergy = "Wheat"
	AllergySoy       Allergy = "Soy"
	AllergyFish      Allergy = "Fish"
	AllergyShellfish Allergy = "Shellfish"
	AllergySesame    Allergy = "Sesame"
	AllergyGluten    Allergy = "Gluten"
	AllergySulfite   Allergy = "Sulfite"
)

var (
	validCuisines = map[Cuisine]bool{
		CuisineIndian: true, CuisineChinese: true, CuisineMexican: true, CuisineItalian: true,
		CuisineThai: true, CuisineJapanese: true, CuisineAmerican: true, CuisineFrench: true,
		CuisineSpanish: true, CuisineGreek: true, CuisineAsian: true, CuisineMediterranean: true,
		CuisineKorean: true,
	}
	validDiets = map[Diet]bool{
		DietVegan: true, DietVegetarian: true, DietPescatarian: true, DietGlutenFree: true,
		DietDairyFree: true, DietKeto: true, DietHalal: true, DietKosher: true,
	}
	validAllergies = map[Allergy]bool{
		AllergyPeanut: true, AllergyTreeNut: true, AllergyDairy: true, AllergyEgg: true,
		AllergyWheat: true, AllergySoy: true, AllergyFish: true, AllergyShellfish: true,
		AllergySesame: true, AllergyGluten: true, AllergySulfite: true,
	}
)

// PartnerPreferences is the structured preference set stored on a partner.
type PartnerPreferences struct {
	PreferredCuisines []Cuisine `json:"preferred_cuisines" bson:"preferred_cuisines"`
	DislikedCuisines  []Cuisine `json:"disliked_cuisines" bson:"disliked_cuisines"`
	Diets             []Diet    `json:"diets" bson:"diets"`
	Allergies         []Allergy `json:"allergies" bson:"allergies"`
}

// Validate rejects values outside the closed enumerations.
func (p PartnerPreferences) Validate() error {
	for _, c := range p.PreferredCuisines {
		if !validCuisines[c] {
			return fmt.Errorf("%w: unknown cuisine %q", ErrInvalidInput, c)
		}
	}
	for _, c := range p.DislikedCuisines {
		if !validCuisines[c] {
			return fmt.Errorf("%w: unknown cuisine %q", ErrInvalidInput, c)
		}
	}
	for _, d := range p.Diets {
		if !validDiets[d] {
			return fmt.Errorf("%w: unknown diet %q", ErrInvalidInput, d)
		}
	}
	for _, a := range p.Allergies {
		if !validAllergies[a] {
			return fmt.Errorf("%w: unknown allergy %q", ErrInvalidInput, a)
		}
	}
	return nil
}

// Normalize replaces nil slices with empty ones so JSON renders [] instead of null.
func (p PartnerPreferences) Normalize() PartnerPreferences {
	if p.PreferredCuisines == nil {
		p.PreferredCuisines = []Cuisine{}
	}
	if p.DislikedCuisines == nil {
		p.DislikedCuisines = []Cuisine{}
	}
	if p.Diets == nil {
		p.Diets = []Diet{}
	}
	if p.Allergies == nil {
		p.Allergies = []Allergy{}
	}
	return p
}

// AsPreferences projects partner data into the per-role shape FormatPreferences reads.
func (p PartnerPreferences) AsPreferences(role string) Preferences {
	obj := map[string]any{}
	if len(p.PreferredCuisines) > 0 {
		obj["cuisines"] = toStrings(p.PreferredCuisines)
	}
	if len(p.Diets) > 0 {
		obj["restrictions"] = toStrings(p.Diets)
	}
	if len(p.Allergies) > 0 {
		obj["allergies"] = toStrings(p.Allergies)
	}
	return Preferences{role: obj}
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
