// Package models defines the data shapes exchanged with the analysis backend.
package models

// SurveyStatus is the backend-driven lifecycle state of a survey.
type SurveyStatus string

const (
	StatusPending    SurveyStatus = "pending"
	StatusProcessing SurveyStatus = "processing"
	StatusCompleted  SurveyStatus = "completed"
	StatusFailed     SurveyStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (s SurveyStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Survey types
const (
	SurveyTypeSimple     = "simple"
	SurveyTypeStructured = "structured"
)

// Survey is a collection of respondent answers as returned by the backend.
type Survey struct {
	SurveyID          string                       `json:"survey_id,omitempty"`
	MongoID           string                       `json:"_id,omitempty"`
	AltID             string                       `json:"id,omitempty"`
	Title             string                       `json:"title"`
	Description       string                       `json:"description,omitempty"`
	Tags              []string                     `json:"tags"`
	SurveyType        string                       `json:"survey_type"`
	Status            SurveyStatus                 `json:"status"`
	TotalResponses    int                          `json:"total_responses,omitempty"`
	TotalParticipants int                          `json:"total_participants,omitempty"`
	Questions         []Question                   `json:"questions,omitempty"`
	Responses         []string                     `json:"responses,omitempty"`
	ProcessedData     map[string]ProcessedQuestion `json:"processed_data,omitempty"`
	CreatedAt         Timestamp                    `json:"created_at"`
	UpdatedAt         Timestamp                    `json:"updated_at"`
}

// ID returns the survey identifier whichever key the backend used for it.
func (s *Survey) ID() string {
	switch {
	case s.SurveyID != "":
		return s.SurveyID
	case s.MongoID != "":
		return s.MongoID
	default:
		return s.AltID
	}
}

// IsStructured reports whether the survey was uploaded as multi-question.
func (s *Survey) IsStructured() bool {
	return s.SurveyType == SurveyTypeStructured
}

// ResponseCount prefers participants (structured) over raw responses (simple).
func (s *Survey) ResponseCount() int {
	if s.TotalParticipants > 0 {
		return s.TotalParticipants
	}
	return s.TotalResponses
}

// Question is one question of a structured survey.
type Question struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	QuestionType string `json:"question_type"`
	IsAnalyzed   bool   `json:"is_analyzed"`
}

// ProcessedQuestion holds the preprocessed responses for a question.
type ProcessedQuestion struct {
	QuestionText  string   `json:"question_text"`
	ResponseCount int      `json:"response_count"`
	Responses     []string `json:"responses"`
}

// SurveyList is the GET /api/v1/surveys/ envelope.
type SurveyList struct {
	Surveys []Survey `json:"surveys"`
	Total   int      `json:"total,omitempty"`
}

// Progress steps reported while a survey is processing.
const (
	StepPreprocessing      = "preprocessing"
	StepAnalyzingQuestions = "analyzing_questions"
	StepGeneratingInsights = "generating_insights"
	StepFinalizing         = "finalizing"
)

// Progress is the ephemeral in-flight analysis state. It is never persisted.
type Progress struct {
	Percentage      float64   `json:"percentage"`
	Step            string    `json:"step"`
	CurrentQuestion int       `json:"current_question,omitempty"`
	TotalQuestions  int       `json:"total_questions,omitempty"`
	Message         string    `json:"message"`
	LastUpdated     Timestamp `json:"last_updated"`
}

// StatusResponse is the GET /api/v1/analysis/{id}/status payload.
type StatusResponse struct {
	SurveyID  string       `json:"survey_id"`
	Status    SurveyStatus `json:"status"`
	Progress  *Progress    `json:"progress,omitempty"`
	UpdatedAt Timestamp    `json:"updated_at"`
}

// Analysis types accepted by the start-analysis endpoint.
const (
	AnalysisSummarization  = "summarization"
	AnalysisSentiment      = "sentiment"
	AnalysisTopicDetection = "topic_detection"
	AnalysisOpenProblems   = "open_problems"
	AnalysisFull           = "full_analysis"
)

// AnalysisRequest starts an analysis run.
type AnalysisRequest struct {
	SurveyID      string         `json:"survey_id"`
	AnalysisTypes []string       `json:"analysis_types"`
	Options       map[string]any `json:"options,omitempty"`
}

// AnalysisStarted is the start-analysis acknowledgement.
type AnalysisStarted struct {
	Message       string       `json:"message"`
	SurveyID      string       `json:"survey_id"`
	AnalysisTypes []string     `json:"analysis_types"`
	Status        SurveyStatus `json:"status"`
}

// UploadRequest is the JSON body of a manual-entry upload.
type UploadRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Responses   []string `json:"responses"`
}

// UploadResponse is returned by every upload endpoint.
type UploadResponse struct {
	SurveyID          string `json:"survey_id"`
	Message           string `json:"message,omitempty"`
	Title             string `json:"title,omitempty"`
	TotalResponses    int    `json:"total_responses,omitempty"`
	TotalParticipants int    `json:"total_participants,omitempty"`
	TotalQuestions    int    `json:"total_questions,omitempty"`
	SurveyType        string `json:"survey_type,omitempty"`
	Status            string `json:"status,omitempty"`
}

// HealthStatus is the backend health probe payload.
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
}

// FilePart is one file of a multipart upload.
type FilePart struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadMetadata accompanies multipart uploads. Tags is the raw
// comma-separated string, sent to the backend unparsed.
type UploadMetadata struct {
	Title       string
	Description string
	Tags        string
}
