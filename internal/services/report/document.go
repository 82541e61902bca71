package report

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/models"
	"github.com/bobmcallan/surveylens/internal/services/insights"
)

// BlockKind identifies how a block is laid out.
type BlockKind int

const (
	BlockTitle BlockKind = iota
	BlockHeading
	BlockSubheading
	BlockLabel
	BlockParagraph
	BlockKeyValues
	BlockBullets
)

// KeyValue is one row of a key/value block.
type KeyValue struct {
	Key   string
	Value string
}

// Block is one unit of a report. Only the fields relevant to Kind are set.
type Block struct {
	Kind     BlockKind
	Text     string
	Subtitle string
	Pairs    []KeyValue
	Items    []string
}

// Document is the ordered block list every paginated renderer consumes.
type Document struct {
	Title  string
	Blocks []Block
}

const reportTitle = "Survey Analysis Report"

type docBuilder struct {
	doc Document
}

func (b *docBuilder) add(blk Block) { b.doc.Blocks = append(b.doc.Blocks, blk) }

func (b *docBuilder) heading(s string)    { b.add(Block{Kind: BlockHeading, Text: s}) }
func (b *docBuilder) subheading(s string) { b.add(Block{Kind: BlockSubheading, Text: s}) }

func (b *docBuilder) paragraph(s string) {
	if strings.TrimSpace(s) != "" {
		b.add(Block{Kind: BlockParagraph, Text: s})
	}
}

func (b *docBuilder) bullets(label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.add(Block{Kind: BlockLabel, Text: label})
	b.add(Block{Kind: BlockBullets, Items: items})
}

func (b *docBuilder) pairs(kv ...KeyValue) {
	var out []KeyValue
	for _, p := range kv {
		if p.Value != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		b.add(Block{Kind: BlockKeyValues, Pairs: out})
	}
}

// BuildDocument lays out the report for one survey. survey may be nil when
// only the analysis is at hand.
func BuildDocument(survey *models.Survey, v *insights.View) Document {
	if survey == nil {
		survey = &models.Survey{SurveyID: v.Meta.SurveyID}
	}
	title := survey.Title
	if title == "" {
		title = "Untitled survey"
	}

	b := &docBuilder{doc: Document{Title: title}}
	b.add(Block{Kind: BlockTitle, Text: reportTitle, Subtitle: title})

	b.heading("Survey Information")
	surveyType := survey.SurveyType
	if surveyType == "" {
		surveyType = v.Meta.SurveyType
	}
	b.pairs(
		KeyValue{"Title", title},
		KeyValue{"Survey ID", survey.ID()},
		KeyValue{"Type", surveyType},
		KeyValue{"Status", string(survey.Status)},
		KeyValue{"Created", formatDateOrEmpty(survey.CreatedAt)},
		KeyValue{"Responses Analyzed", common.FormatNumber(v.Metrics.TotalResponses)},
		KeyValue{"Analysis Date", v.Metrics.AnalysisDate},
		KeyValue{"Processing Time", v.Metrics.ProcessingTime},
	)
	if len(survey.Tags) > 0 {
		b.pairs(KeyValue{"Tags", strings.Join(survey.Tags, ", ")})
	}

	b.heading("Overview")
	b.pairs(
		KeyValue{"Overall Sentiment", v.Metrics.OverallSentiment},
		KeyValue{"Topics Detected", fmt.Sprint(v.Metrics.TopicsDetected)},
		KeyValue{"Open Problems", fmt.Sprint(v.Metrics.OpenProblems)},
		KeyValue{"Key Findings", fmt.Sprint(v.Metrics.KeyFindings)},
	)

	if v.Kind == models.KindStructured {
		structuredSections(b, v)
	} else {
		simpleSections(b, v)
	}

	if ci := v.CrossInsights; ci != nil {
		b.heading("Cross-Question Insights")
		b.paragraph(ci.OverallInsights)
		b.bullets("Common Themes", ci.CommonThemes)
		b.bullets("Key Patterns", ci.KeyPatterns)
		b.bullets("Cross-Question Findings", ci.CrossQuestionFindings)
	}

	return b.doc
}

func structuredSections(b *docBuilder, v *insights.View) {
	b.heading("Sentiment Distribution")
	sentimentPairs(b, v)

	b.heading("Question Analysis")
	for i, q := range v.Questions {
		b.subheading(fmt.Sprintf("Q%d: %s", i+1, q.Text))
		sentiment := q.Sentiment
		if q.ConfidenceLabel != "" {
			sentiment += " (" + q.ConfidenceLabel + ")"
		}
		b.pairs(
			KeyValue{"Responses", fmt.Sprint(q.ResponseCount)},
			KeyValue{"Sentiment", sentiment},
		)
		b.paragraph(q.Summary)
		b.paragraph(q.Explanation)
		b.bullets("Key Findings", q.KeyFindings)

		topics := make([]string, 0, len(q.Topics))
		for _, t := range q.Topics {
			topics = append(topics, topicLine(t.Topic, t.Frequency.String(), t.Keywords))
		}
		b.bullets("Topics", topics)

		problems := make([]string, 0, len(q.Problems))
		for _, p := range q.Problems {
			problems = append(problems, problemLine(p))
		}
		b.bullets("Open Problems", problems)
	}
}

func simpleSections(b *docBuilder, v *insights.View) {
	if v.Summary != "" {
		b.heading("Summary")
		b.paragraph(v.Summary)
	}
	if len(v.KeyFindings) > 0 {
		b.heading("Key Findings")
		b.add(Block{Kind: BlockBullets, Items: v.KeyFindings})
	}

	b.heading("Sentiment Analysis")
	if s := v.OverallSentiment; s != nil && s.Label != "" {
		b.pairs(
			KeyValue{"Overall", strings.ToUpper(s.Label)},
			KeyValue{"Confidence", fmt.Sprintf("%.1f%%", s.Confidence*100)},
		)
	}
	sentimentPairs(b, v)

	if len(v.Topics) > 0 {
		b.heading("Topics")
		items := make([]string, 0, len(v.Topics))
		for _, t := range v.Topics {
			items = append(items, topicLine(t.Name, t.Frequency, t.Keywords))
		}
		b.add(Block{Kind: BlockBullets, Items: items})
	}

	if len(v.Problems) > 0 {
		b.heading("Open Problems")
		items := make([]string, 0, len(v.Problems))
		for _, p := range v.Problems {
			items = append(items, problemLine(p.Problem))
		}
		b.add(Block{Kind: BlockBullets, Items: items})
	}
}

func sentimentPairs(b *docBuilder, v *insights.View) {
	if !v.ShowSentimentChart() {
		b.paragraph("No sentiment data available.")
		return
	}
	kv := make([]KeyValue, 0, len(v.Sentiment.Slices))
	for _, s := range v.Sentiment.Slices {
		kv = append(kv, KeyValue{s.Name, fmt.Sprintf("%d (%s)", s.Value, s.Label)})
	}
	b.pairs(kv...)
}

func topicLine(name, frequency string, keywords []string) string {
	line := name
	if frequency != "" {
		line += " (" + frequency + ")"
	}
	if len(keywords) > 0 {
		line += ": " + strings.Join(keywords, ", ")
	}
	return line
}

func problemLine(p models.Problem) string {
	line := p.Title
	if p.Priority != "" {
		line = "[" + strings.ToUpper(p.Priority) + "] " + line
	}
	if p.Description != "" {
		line += ": " + p.Description
	}
	return line
}

func formatDateOrEmpty(ts models.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return common.FormatDate(ts.Time)
}
