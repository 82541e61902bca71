package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrShapeMismatch is returned when survey_type disagrees with the payload shape.
	ErrShapeMismatch = errors.New("analysis shape does not match survey type")
	// ErrMalformedPayload is returned in strict mode for JSON smuggled inside string fields.
	ErrMalformedPayload = errors.New("malformed analysis payload")
)

// DecodeOptions controls DecodeAnalysis.
type DecodeOptions struct {
	// Legacy enables best-effort recovery of summaries and findings that older
	// backend versions stored as JSON-encoded strings. Legacy decoding never fails
	// on those fields.
	Legacy bool
}

var embeddedSummaryRe = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)"`)

type wireAnalysis struct {
	AnalysisMeta
	Summary               json.RawMessage        `json:"summary"`
	KeyFindings           json.RawMessage        `json:"key_findings"`
	OverallSentiment      *SentimentResult       `json:"overall_sentiment"`
	SentimentDistribution *SentimentDistribution `json:"sentiment_distribution"`
	Topics                []Topic                `json:"topics"`
	OpenProblems          []Problem              `json:"open_problems"`
	QuestionAnalyses      []wireQuestion         `json:"question_analyses"`
	CrossQuestionInsights *CrossQuestionInsights `json:"cross_question_insights"`
}

type wireQuestion struct {
	QuestionID    string             `json:"question_id"`
	QuestionText  string             `json:"question_text"`
	ResponseCount int                `json:"response_count"`
	Summary       json.RawMessage    `json:"summary"`
	KeyFindings   json.RawMessage    `json:"key_findings"`
	Sentiment     *QuestionSentiment `json:"sentiment"`
	Topics        []Topic            `json:"topics"`
	OpenProblems  []Problem          `json:"open_problems"`
}

// DecodeAnalysis turns a results payload into an Analysis. A non-empty
// question_analyses list makes the result structured, anything else is simple.
func DecodeAnalysis(data []byte, opts DecodeOptions) (*Analysis, error) {
	var w wireAnalysis
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	a := &Analysis{
		Meta: w.AnalysisMeta,
		Raw:  append(json.RawMessage(nil), data...),
	}

	if len(w.QuestionAnalyses) == 0 {
		if w.SurveyType == SurveyTypeStructured {
			return nil, fmt.Errorf("%w: survey_type is structured but question_analyses is empty", ErrShapeMismatch)
		}
		text, err := decodeText(w.Summary, opts)
		if err != nil {
			return nil, fmt.Errorf("summary: %w", err)
		}
		findings, err := decodeFindings(w.KeyFindings, opts)
		if err != nil {
			return nil, fmt.Errorf("key_findings: %w", err)
		}
		if len(findings) == 0 {
			findings = text.findings
		}
		a.Kind = KindSimple
		a.Simple = &SimpleAnalysis{
			Summary:               text.summary,
			KeyFindings:           findings,
			OverallSentiment:      w.OverallSentiment,
			SentimentDistribution: w.SentimentDistribution,
			Topics:                w.Topics,
			OpenProblems:          w.OpenProblems,
		}
		return a, nil
	}

	questions := make([]QuestionAnalysis, 0, len(w.QuestionAnalyses))
	for i, q := range w.QuestionAnalyses {
		text, err := decodeText(q.Summary, opts)
		if err != nil {
			return nil, fmt.Errorf("question_analyses[%d].summary: %w", i, err)
		}
		findings, err := decodeFindings(q.KeyFindings, opts)
		if err != nil {
			return nil, fmt.Errorf("question_analyses[%d].key_findings: %w", i, err)
		}
		if len(findings) == 0 {
			findings = text.findings
		}
		questions = append(questions, QuestionAnalysis{
			QuestionID:    q.QuestionID,
			QuestionText:  q.QuestionText,
			ResponseCount: q.ResponseCount,
			Summary:       text.summary,
			KeyFindings:   findings,
			Sentiment:     q.Sentiment,
			Topics:        q.Topics,
			OpenProblems:  q.OpenProblems,
		})
	}

	a.Kind = KindStructured
	a.Structured = &StructuredAnalysis{
		QuestionAnalyses:      questions,
		CrossQuestionInsights: w.CrossQuestionInsights,
	}
	return a, nil
}

// decodedText is a summary plus any findings recovered alongside it.
type decodedText struct {
	summary  string
	findings []string
}

type embeddedSummary struct {
	Summary     *string  `json:"summary"`
	KeyFindings []string `json:"key_findings"`
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func looksLikeEmbeddedSummary(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), "{") && strings.Contains(s, `"summary"`)
}

func decodeText(raw json.RawMessage, opts DecodeOptions) (decodedText, error) {
	if isNull(raw) {
		return decodedText{}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		if !opts.Legacy {
			return decodedText{}, fmt.Errorf("%w: expected a string", ErrMalformedPayload)
		}
		// An object in place of the string is treated like its serialised form.
		s = string(raw)
		if !looksLikeEmbeddedSummary(s) {
			return decodedText{}, nil
		}
	}

	if !looksLikeEmbeddedSummary(s) {
		return decodedText{summary: s}, nil
	}
	if !opts.Legacy {
		return decodedText{}, fmt.Errorf("%w: summary holds an encoded JSON object", ErrMalformedPayload)
	}
	return recoverSummary(s), nil
}

// recoverSummary parses s as JSON, then falls back to a regex, then to empty.
func recoverSummary(s string) decodedText {
	var emb embeddedSummary
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &emb); err == nil && emb.Summary != nil {
		return decodedText{summary: *emb.Summary, findings: emb.KeyFindings}
	}
	if m := embeddedSummaryRe.FindStringSubmatch(s); m != nil {
		if unq, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
			return decodedText{summary: unq}
		}
		return decodedText{summary: m[1]}
	}
	return decodedText{}
}

func decodeFindings(raw json.RawMessage, opts DecodeOptions) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	if !opts.Legacy {
		return nil, fmt.Errorf("%w: expected an array of strings", ErrMalformedPayload)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &list); err == nil {
			return list, nil
		}
		return nil, nil
	}

	// Mixed arrays keep only their string elements.
	var items []any
	if err := json.Unmarshal(raw, &items); err == nil {
		for _, it := range items {
			if str, ok := it.(string); ok {
				list = append(list, str)
			}
		}
	}
	return list, nil
}
