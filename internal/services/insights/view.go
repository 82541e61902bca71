// Package insights normalises an analysis result into the view model shared
// by the dashboard and every paginated exporter.
package insights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/models"
)

const (
	// ChartTopicLimit is how many topics the topics chart shows.
	ChartTopicLimit = 7
	// LabelLength is the rune length after which chart labels are cut.
	LabelLength = 20
)

// Sentiment labels
const (
	LabelPositive = "Positive"
	LabelNegative = "Negative"
	LabelNeutral  = "Neutral"
)

// Priorities in display order
var Priorities = []string{"high", "medium", "low"}

// View is the renderer-agnostic result of Build.
type View struct {
	Kind    models.AnalysisKind
	Meta    models.AnalysisMeta
	Metrics Metrics

	Summary          string
	KeyFindings      []string
	OverallSentiment *models.SentimentResult

	Sentiment   Sentiment
	Topics      []TopicCount
	ChartTopics []ChartTopic
	Problems    []ProblemItem
	Priorities  []PriorityCount

	Questions     []QuestionView
	CrossInsights *CrossInsights
}

// Metrics are the headline numbers.
type Metrics struct {
	TotalResponses   int
	ProcessingTime   string
	AnalysisDate     string
	TopicsDetected   int
	OpenProblems     int
	KeyFindings      int
	OverallSentiment string
}

// Sentiment is the aggregate positive/negative/neutral tuple.
type Sentiment struct {
	Distribution models.SentimentDistribution
	Total        int
	// Slices is empty when Total is zero.
	Slices []SentimentSlice
}

// SentimentSlice is one sentiment class with its share of the total.
type SentimentSlice struct {
	Name    string
	Value   int
	Percent float64
	Label   string
}

// TopicCount is a topic and its aggregate count.
type TopicCount struct {
	Name     string
	Count    float64
	Keywords []string
	// Frequency is the raw frequency of a simple-analysis topic.
	Frequency string
}

// ChartTopic is a topic prepared for the bar chart.
type ChartTopic struct {
	Label    string
	FullName string
	Value    float64
}

// ProblemItem is a problem annotated with the question it came from.
type ProblemItem struct {
	models.Problem
	Question string
}

// PriorityCount is the number of problems at one priority.
type PriorityCount struct {
	Priority string
	Count    int
}

// QuestionView is one question of a structured result.
type QuestionView struct {
	ID            string
	Text          string
	ResponseCount int
	Summary       string
	KeyFindings   []string
	Sentiment     string
	Confidence    float64
	// ConfidenceLabel is empty when no confidence was reported.
	ConfidenceLabel string
	Explanation     string
	Topics          []models.Topic
	Problems        []models.Problem
}

// CrossInsights holds cross-question synthesis. OverallInsights is empty
// when the backend only produced its placeholder.
type CrossInsights struct {
	OverallInsights       string
	CommonThemes          []string
	KeyPatterns           []string
	CrossQuestionFindings []string
}

// ShowSentimentChart reports whether there is anything to plot.
func (v *View) ShowSentimentChart() bool {
	return v.Sentiment.Total > 0
}

// ShowTopicsChart reports whether there are topics to plot.
func (v *View) ShowTopicsChart() bool {
	return len(v.ChartTopics) > 0
}

// ShowPriorityChart reports whether any problem carries a known priority.
func (v *View) ShowPriorityChart() bool {
	return len(v.Priorities) > 0
}

// Build normalises a decoded analysis. A nil analysis gives an empty view.
func Build(a *models.Analysis) *View {
	v := &View{}
	if a == nil {
		v.Metrics = Metrics{ProcessingTime: "N/A", AnalysisDate: "N/A", OverallSentiment: "N/A"}
		return v
	}

	v.Kind = a.Kind
	v.Meta = a.Meta

	switch a.Kind {
	case models.KindStructured:
		buildStructured(v, a.Structured)
	default:
		buildSimple(v, a.Simple)
	}

	v.Priorities = countPriorities(v.Problems)
	v.ChartTopics = chartTopics(v.Topics)

	v.Metrics.TotalResponses = a.Meta.TotalResponsesAnalyzed
	v.Metrics.ProcessingTime = common.FormatSeconds(a.Meta.ProcessingTime)
	v.Metrics.AnalysisDate = common.FormatDate(a.Meta.CreatedAt.Time)
	v.Metrics.TopicsDetected = len(v.Topics)
	v.Metrics.OpenProblems = len(v.Problems)
	return v
}

func buildSimple(v *View, s *models.SimpleAnalysis) {
	if s == nil {
		s = &models.SimpleAnalysis{}
	}
	v.Summary = s.Summary
	v.KeyFindings = s.KeyFindings
	v.OverallSentiment = s.OverallSentiment

	var dist models.SentimentDistribution
	if s.SentimentDistribution != nil {
		dist = *s.SentimentDistribution
	}
	v.Sentiment = newSentiment(dist)

	for _, t := range s.Topics {
		v.Topics = append(v.Topics, TopicCount{
			Name:      t.Topic,
			Count:     t.Frequency.Weight(),
			Keywords:  t.Keywords,
			Frequency: t.Frequency.String(),
		})
	}

	for _, p := range s.OpenProblems {
		v.Problems = append(v.Problems, ProblemItem{Problem: p})
	}

	v.Metrics.KeyFindings = len(s.KeyFindings)
	v.Metrics.OverallSentiment = "N/A"
	if s.OverallSentiment != nil && s.OverallSentiment.Label != "" {
		v.Metrics.OverallSentiment = strings.ToUpper(strings.TrimSpace(s.OverallSentiment.Label))
	}
}

func buildStructured(v *View, s *models.StructuredAnalysis) {
	if s == nil {
		s = &models.StructuredAnalysis{}
	}

	var dist models.SentimentDistribution
	index := make(map[string]int)
	findings := 0

	for _, qa := range s.QuestionAnalyses {
		if qa.Sentiment != nil && qa.Sentiment.Distribution != nil {
			dist = dist.Add(*qa.Sentiment.Distribution)
		}

		for _, t := range qa.Topics {
			if i, ok := index[t.Topic]; ok {
				v.Topics[i].Count++
				continue
			}
			index[t.Topic] = len(v.Topics)
			v.Topics = append(v.Topics, TopicCount{Name: t.Topic, Count: 1, Keywords: t.Keywords})
		}

		for _, p := range qa.OpenProblems {
			v.Problems = append(v.Problems, ProblemItem{Problem: p, Question: qa.QuestionText})
		}

		findings += len(qa.KeyFindings)
		v.Questions = append(v.Questions, newQuestionView(qa))
	}

	sortTopics(v.Topics)
	v.Sentiment = newSentiment(dist)
	v.CrossInsights = newCrossInsights(s.CrossQuestionInsights)

	v.Metrics.KeyFindings = findings
	v.Metrics.OverallSentiment = strings.ToUpper(MajorityLabel(dist.Positive, dist.Negative))
}

func newQuestionView(qa models.QuestionAnalysis) QuestionView {
	eff := qa.Sentiment.Effective()
	qv := QuestionView{
		ID:            qa.QuestionID,
		Text:          qa.QuestionText,
		ResponseCount: qa.ResponseCount,
		Summary:       qa.Summary,
		KeyFindings:   qa.KeyFindings,
		Sentiment:     strings.ToUpper(eff.Label),
		Confidence:    eff.Confidence,
		Topics:        qa.Topics,
		Problems:      qa.OpenProblems,
	}
	if qv.Sentiment == "" {
		qv.Sentiment = strings.ToUpper(LabelNeutral)
	}
	if eff.Confidence > 0 {
		qv.ConfidenceLabel = common.FormatPercent(eff.Confidence) + " confidence"
	}
	if qa.Sentiment != nil {
		qv.Explanation = qa.Sentiment.Explanation
	}
	return qv
}

func newCrossInsights(c *models.CrossQuestionInsights) *CrossInsights {
	if c == nil {
		return nil
	}
	ci := &CrossInsights{
		CommonThemes:          c.CommonThemes,
		KeyPatterns:           c.KeyPatterns,
		CrossQuestionFindings: c.CrossQuestionFindings,
	}
	if strings.TrimSpace(c.OverallInsights) != models.CrossInsightsPlaceholder {
		ci.OverallInsights = c.OverallInsights
	}
	if ci.OverallInsights == "" && len(ci.CommonThemes) == 0 && len(ci.KeyPatterns) == 0 && len(ci.CrossQuestionFindings) == 0 {
		return nil
	}
	return ci
}

func newSentiment(d models.SentimentDistribution) Sentiment {
	s := Sentiment{Distribution: d, Total: d.Total()}
	if s.Total == 0 {
		return s
	}
	for _, part := range []struct {
		name  string
		value int
	}{
		{LabelPositive, d.Positive},
		{LabelNegative, d.Negative},
		{LabelNeutral, d.Neutral},
	} {
		pct := float64(part.value) / float64(s.Total) * 100
		s.Slices = append(s.Slices, SentimentSlice{
			Name:    part.name,
			Value:   part.value,
			Percent: pct,
			Label:   fmt.Sprintf("%.1f%%", pct),
		})
	}
	return s
}

// sortTopics orders by descending count, keeping input order on ties.
func sortTopics(topics []TopicCount) {
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Count > topics[j].Count })
}

func chartTopics(topics []TopicCount) []ChartTopic {
	n := min(len(topics), ChartTopicLimit)
	out := make([]ChartTopic, 0, n)
	for _, t := range topics[:n] {
		out = append(out, ChartTopic{
			Label:    TruncateLabel(t.Name, LabelLength),
			FullName: t.Name,
			Value:    t.Count,
		})
	}
	return out
}

func countPriorities(problems []ProblemItem) []PriorityCount {
	counts := make(map[string]int)
	for _, p := range problems {
		counts[strings.ToLower(p.Priority)]++
	}
	var out []PriorityCount
	for _, pr := range Priorities {
		if counts[pr] > 0 {
			out = append(out, PriorityCount{Priority: pr, Count: counts[pr]})
		}
	}
	return out
}

// TruncateLabel cuts s to n runes plus "..." when it is longer than n.
func TruncateLabel(s string, n int) string {
	return common.TruncateText(s, n)
}

// MajorityLabel picks the dominant polarity. Ties are Neutral.
func MajorityLabel(pos, neg int) string {
	switch {
	case pos > neg:
		return LabelPositive
	case neg > pos:
		return LabelNegative
	default:
		return LabelNeutral
	}
}
