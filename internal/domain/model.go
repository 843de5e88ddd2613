package domain

import "time"

// ModelType enumerates supported subject types for trained models.
type ModelType string

const (
	ModelTypeMan   ModelType = "Man"
	ModelTypeWoman ModelType = "Woman"
	ModelTypeOther ModelType = "Other"
)

// Ethnicity enumerates accepted subject ethnicity values.
type Ethnicity string

const (
	EthnicityBlack         Ethnicity = "Black"
	EthnicityAsianAmerican Ethnicity = "Asian American"
	EthnicityEastAsian     Ethnicity = "East Asian"
	EthnicitySouthEastAsia Ethnicity = "South East Asian"
	EthnicitySouthAsian    Ethnicity = "South Asian"
	EthnicityMiddleEastern Ethnicity = "Middle Eastern"
	EthnicityPacific       Ethnicity = "Pacific"
	EthnicityHispanic      Ethnicity = "Hispanic"
	EthnicityWhite         Ethnicity = "White"
)

// EyeColor enumerates accepted subject eye colors.
type EyeColor string

const (
	EyeColorBrown EyeColor = "Brown"
	EyeColorBlue  EyeColor = "Blue"
	EyeColorHazel EyeColor = "Hazel"
	EyeColorGray  EyeColor = "Gray"
	EyeColorGreen EyeColor = "Green"
)

// TrainedModel is a personalized model and its training job in one record.
// TrackingID correlates the asynchronous training run with executor
// callbacks; TensorPath and PreviewURL are set only on a successful run.
type TrainedModel struct {
	ID             string
	OwnerID        string
	Name           string
	Type           ModelType
	Age            int
	Ethnicity      Ethnicity
	EyeColor       EyeColor
	Bald           bool
	ZipURL         string
	TrackingID     string
	TrainingStatus JobStatus
	TensorPath     string
	PreviewURL     string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Ready reports whether the model has a usable training artifact.
func (m *TrainedModel) Ready() bool {
	return m.TrainingStatus == JobGenerated && m.TensorPath != ""
}
