package models

import (
	"time"
)

// Draft statuses. A draft moves NEW -> PROCESSING -> VALIDATED, and
// VALIDATED -> CONFIRMING while its confirmation runs.
const (
	NEW        = "NEW"
	PROCESSING = "PROCESSING"
	VALIDATED  = "VALIDATED"
	CONFIRMING = "CONFIRMING"
)

// PointsPerUpload is awarded for every confirmed upload.
const PointsPerUpload = 50

// Account is the public snapshot stored under currentUser.
type Account struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Points int    `json:"points"`
}

// User is one entry of the users list.
type User struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Points       int       `json:"points"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) Account() Account {
	return Account{Name: u.Name, Email: u.Email, Points: u.Points}
}

type UploadRecord struct {
	ID            string    `json:"id"`
	ImageData     string    `json:"imageData"`
	SubmittedAt   time.Time `json:"date"`
	PointsAwarded int       `json:"points"`
}

// ValidationResult is the verdict of the glass validator. RequiresAPIKey
// marks a result that did not come from a real classification.
type ValidationResult struct {
	IsValid        bool     `json:"isValid"`
	Confidence     int      `json:"confidence"`
	DetectedItems  []string `json:"detectedItems"`
	Message        string   `json:"message"`
	RequiresAPIKey bool     `json:"requiresApiKey,omitempty"`
}

type RedemptionRecord struct {
	RewardID   string    `json:"id"`
	Name       string    `json:"name"`
	PointsCost int       `json:"points"`
	Category   string    `json:"category"`
	RedeemedAt time.Time `json:"redeemedAt"`
	Code       string    `json:"code"`
}

// Draft is an upload between image selection and confirmation.
type Draft struct {
	ID             string            `json:"id"`
	Email          string            `json:"-"`
	Status         string            `json:"status"`
	ImageData      string            `json:"-"`
	Validation     *ValidationResult `json:"validation,omitempty"`
	Compressed     bool              `json:"compressed"`
	OriginalSizeMB float64           `json:"originalSizeMb"`
	FinalSizeMB    float64           `json:"finalSizeMb"`
	CreatedAt      time.Time         `json:"createdAt"`
}
