package models

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

type DiabetesType string

const (
	DiabetesType1 DiabetesType = "Type 1"
	DiabetesType2 DiabetesType = "Type 2"
)

// Language is an extensible preferred-language code.
type Language string

const LanguageEnglish Language = "en"

// Profile holds the patient fields kept in the identity provider's metadata
// blob. The chain uses them to personalise retrieval and generation.
type Profile struct {
	Nickname          string       `json:"nickname"`
	Age               int          `json:"age"`
	Gender            Gender       `json:"gender"`
	DiabetesType      DiabetesType `json:"diabetes_type"`
	PreferredLanguage Language     `json:"preferred_language"`
}

// ProfileUpdate carries the optional fields of a profile PATCH. Nil fields
// are left untouched in the provider's metadata.
type ProfileUpdate struct {
	Nickname          *string       `json:"nickname,omitempty"`
	Age               *int          `json:"age,omitempty"`
	Gender            *Gender       `json:"gender,omitempty"`
	DiabetesType      *DiabetesType `json:"diabetes_type,omitempty"`
	PreferredLanguage *Language     `json:"preferred_language,omitempty"`
}
