package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bobmcallan/surveylens/internal/common"
	"github.com/bobmcallan/surveylens/internal/models"
	"github.com/bobmcallan/surveylens/internal/services/insights"
)

// Table is a header plus rows of loosely typed cells.
type Table struct {
	Header []string
	Rows   [][]any
}

// ToCSV serialises t. Headers are written bare, string cells are quoted with
// embedded quotes doubled, numbers and bools are raw, nil is empty. A table
// with no rows gives "".
func ToCSV(t Table) string {
	if len(t.Rows) == 0 {
		return ""
	}
	lines := make([]string, 0, len(t.Rows)+1)
	lines = append(lines, strings.Join(t.Header, ","))
	for _, row := range t.Rows {
		cells := make([]string, len(t.Header))
		for i := range t.Header {
			if i < len(row) {
				cells[i] = csvCell(row[i])
			}
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}

func csvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return `"` + strings.ReplaceAll(x, `"`, `""`) + `"`
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return csvCell(x.String())
	default:
		return fmt.Sprint(x)
	}
}

// TopicsTable lists the aggregated topics.
func TopicsTable(v *insights.View) Table {
	t := Table{Header: []string{"topic", "count", "keywords"}}
	for _, tc := range v.Topics {
		t.Rows = append(t.Rows, []any{tc.Name, tc.Count, strings.Join(tc.Keywords, "; ")})
	}
	return t
}

// ProblemsTable lists the flattened open problems.
func ProblemsTable(v *insights.View) Table {
	t := Table{Header: []string{"title", "description", "category", "priority", "question"}}
	for _, p := range v.Problems {
		t.Rows = append(t.Rows, []any{p.Title, p.Description, p.Category, p.Priority, nilIfEmpty(p.Question)})
	}
	return t
}

// QuestionsTable lists per-question results of a structured analysis.
func QuestionsTable(v *insights.View) Table {
	t := Table{Header: []string{"question_id", "question_text", "response_count", "sentiment", "confidence", "summary"}}
	for _, q := range v.Questions {
		var conf any
		if q.Confidence > 0 {
			conf = q.Confidence
		}
		t.Rows = append(t.Rows, []any{q.ID, q.Text, q.ResponseCount, q.Sentiment, conf, q.Summary})
	}
	return t
}

// SurveysTable lists surveys the way the dashboard list shows them.
func SurveysTable(surveys []models.Survey) Table {
	t := Table{Header: []string{"survey_id", "title", "status", "survey_type", "total_responses", "created_at"}}
	for _, s := range surveys {
		created := any(nil)
		if !s.CreatedAt.IsZero() {
			created = common.FormatDate(s.CreatedAt.Time)
		}
		t.Rows = append(t.Rows, []any{s.ID(), s.Title, string(s.Status), nilIfEmpty(s.SurveyType), s.ResponseCount(), created})
	}
	return t
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
