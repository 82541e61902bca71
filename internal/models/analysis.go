package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnalysisKind discriminates the two result shapes.
type AnalysisKind string

const (
	KindSimple     AnalysisKind = "simple"
	KindStructured AnalysisKind = "structured"
)

// Analysis is the decoded analysis result. Exactly one of Simple and
// Structured is non-nil, matching Kind. Build it with DecodeAnalysis.
type Analysis struct {
	Kind       AnalysisKind
	Simple     *SimpleAnalysis
	Structured *StructuredAnalysis
	Meta       AnalysisMeta
	// Raw is the payload exactly as received.
	Raw json.RawMessage
}

// AnalysisMeta carries the fields shared by both shapes.
type AnalysisMeta struct {
	SurveyID               string    `json:"survey_id"`
	AnalysisType           string    `json:"analysis_type"`
	SurveyType             string    `json:"survey_type"`
	TotalResponsesAnalyzed int       `json:"total_responses_analyzed"`
	ProcessingTime         float64   `json:"processing_time"`
	CreatedAt              Timestamp `json:"created_at"`
}

// SimpleAnalysis is the single-question result.
type SimpleAnalysis struct {
	Summary               string
	KeyFindings           []string
	OverallSentiment      *SentimentResult
	SentimentDistribution *SentimentDistribution
	Topics                []Topic
	OpenProblems          []Problem
}

// StructuredAnalysis is the multi-question result.
type StructuredAnalysis struct {
	QuestionAnalyses      []QuestionAnalysis
	CrossQuestionInsights *CrossQuestionInsights
}

// QuestionAnalysis is the analysis of one question of a structured survey.
type QuestionAnalysis struct {
	QuestionID    string             `json:"question_id"`
	QuestionText  string             `json:"question_text"`
	ResponseCount int                `json:"response_count"`
	Summary       string             `json:"summary,omitempty"`
	KeyFindings   []string           `json:"key_findings,omitempty"`
	Sentiment     *QuestionSentiment `json:"sentiment,omitempty"`
	Topics        []Topic            `json:"topics,omitempty"`
	OpenProblems  []Problem          `json:"open_problems,omitempty"`
}

// CrossQuestionInsights synthesises findings across the questions.
type CrossQuestionInsights struct {
	OverallInsights       string   `json:"overall_insights"`
	CommonThemes          []string `json:"common_themes"`
	KeyPatterns           []string `json:"key_patterns"`
	CrossQuestionFindings []string `json:"cross_question_findings"`
}

// CrossInsightsPlaceholder is emitted by the backend when synthesis failed.
const CrossInsightsPlaceholder = "Unable to generate cross-question insights"

// SentimentResult is a labelled sentiment score.
type SentimentResult struct {
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// SentimentDistribution counts responses per sentiment class.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Total is the sum of the three classes.
func (d SentimentDistribution) Total() int {
	return d.Positive + d.Negative + d.Neutral
}

// Add returns the element-wise sum of d and o.
func (d SentimentDistribution) Add(o SentimentDistribution) SentimentDistribution {
	return SentimentDistribution{
		Positive: d.Positive + o.Positive,
		Negative: d.Negative + o.Negative,
		Neutral:  d.Neutral + o.Neutral,
	}
}

// QuestionSentiment is the per-question sentiment block. Older results carry
// label/confidence directly, newer ones nest them under overall_sentiment.
type QuestionSentiment struct {
	Label            string                 `json:"label,omitempty"`
	Score            float64                `json:"score,omitempty"`
	Confidence       float64                `json:"confidence,omitempty"`
	OverallSentiment *SentimentResult       `json:"overall_sentiment,omitempty"`
	Distribution     *SentimentDistribution `json:"distribution,omitempty"`
	Explanation      string                 `json:"explanation,omitempty"`
}

// Effective returns the label, score and confidence from whichever form is present.
func (q *QuestionSentiment) Effective() SentimentResult {
	if q == nil {
		return SentimentResult{}
	}
	if q.Label == "" && q.OverallSentiment != nil {
		return *q.OverallSentiment
	}
	return SentimentResult{Label: q.Label, Score: q.Score, Confidence: q.Confidence}
}

// Topic is one detected theme.
type Topic struct {
	Topic           string    `json:"topic"`
	Keywords        []string  `json:"keywords,omitempty"`
	Frequency       Frequency `json:"frequency"`
	SampleResponses []string  `json:"sample_responses,omitempty"`
}

// Frequency is either a qualitative level ("high", "medium", "low") or a count.
type Frequency struct {
	Level   string
	Count   float64
	Numeric bool
}

// Weight maps the frequency onto a comparable magnitude. Unknown or missing
// levels weigh the same as low.
func (f Frequency) Weight() float64 {
	if f.Numeric {
		return f.Count
	}
	switch strings.ToLower(strings.TrimSpace(f.Level)) {
	case "high":
		return 10
	case "medium":
		return 5
	default:
		return 2
	}
}

// String renders the frequency the way it arrived.
func (f Frequency) String() string {
	if f.Numeric {
		return strconv.FormatFloat(f.Count, 'f', -1, 64)
	}
	return f.Level
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Frequency) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = Frequency{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Frequency{Level: s}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("frequency must be a string or number: %w", err)
	}
	*f = Frequency{Count: n, Numeric: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Frequency) MarshalJSON() ([]byte, error) {
	if f.Numeric {
		return json.Marshal(f.Count)
	}
	return json.Marshal(f.Level)
}

// Problem is an identified open problem.
type Problem struct {
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Category            string   `json:"category,omitempty"`
	Priority            string   `json:"priority,omitempty"`
	SupportingResponses []string `json:"supporting_responses,omitempty"`
}
