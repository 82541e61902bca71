// Package interfaces defines service contracts for surveylens
package interfaces

import (
	"context"

	"github.com/bobmcallan/surveylens/internal/models"
)

// SurveyReader fetches a single survey.
type SurveyReader interface {
	GetSurvey(ctx context.Context, surveyID string) (*models.Survey, error)
}

// SurveyClient provides survey CRUD and uploads against the analysis backend
type SurveyClient interface {
	SurveyReader

	// ListSurveys returns every survey visible to the current user
	ListSurveys(ctx context.Context) ([]models.Survey, error)

	// DeleteSurvey removes a survey and its analyses
	DeleteSurvey(ctx context.Context, surveyID string) error

	// UploadSurvey creates a simple survey from manually entered responses
	UploadSurvey(ctx context.Context, req models.UploadRequest) (*models.UploadResponse, error)

	// UploadSurveyFile uploads a single CSV, TXT or JSON file
	UploadSurveyFile(ctx context.Context, file models.FilePart, meta models.UploadMetadata) (*models.UploadResponse, error)

	// UploadTwoFileSurvey uploads a question schema plus a responses file
	UploadTwoFileSurvey(ctx context.Context, schema, responses models.FilePart, meta models.UploadMetadata) (*models.UploadResponse, error)
}

// AnalysisClient starts and inspects analysis runs
type AnalysisClient interface {
	SurveyReader

	StartAnalysis(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisStarted, error)
	GetAnalysisStatus(ctx context.Context, surveyID string) (*models.StatusResponse, error)

	// GetAnalysisResults returns the latest result payload undecoded.
	// Decoding goes through models.DecodeAnalysis.
	GetAnalysisResults(ctx context.Context, surveyID string) ([]byte, error)

	GetAllAnalysisResults(ctx context.Context, surveyID string) ([]byte, error)
	DeleteAnalysis(ctx context.Context, analysisID string) error
}

// AuthClient manages the session with the backend
type AuthClient interface {
	// Login stores the token pair and the user profile in the credential provider
	Login(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Me(ctx context.Context) (*models.User, error)

	// Logout clears stored credentials
	Logout(ctx context.Context) error
}

// BackendClient is the full analysis backend API
type BackendClient interface {
	SurveyClient
	AnalysisClient
	AuthClient

	Health(ctx context.Context) (*models.HealthStatus, error)
}
