package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// RenderMarkdown renders the document as markdown.
func RenderMarkdown(doc Document) string {
	return renderMarkdown(doc, func(s string) string { return s })
}

// RenderHTML renders the document to an HTML fragment. Survey text is escaped
// before conversion so it cannot inject markup.
func RenderHTML(doc Document) []byte {
	md := renderMarkdown(doc, html.EscapeString)
	return blackfriday.Run([]byte(md), blackfriday.WithExtensions(blackfriday.CommonExtensions))
}

func renderMarkdown(doc Document, esc func(string) string) string {
	var sb strings.Builder
	for _, blk := range doc.Blocks {
		switch blk.Kind {
		case BlockTitle:
			sb.WriteString(fmt.Sprintf("# %s\n\n", esc(blk.Text)))
			if blk.Subtitle != "" {
				sb.WriteString(fmt.Sprintf("**%s**\n\n", esc(blk.Subtitle)))
			}
		case BlockHeading:
			sb.WriteString(fmt.Sprintf("## %s\n\n", esc(blk.Text)))
		case BlockSubheading:
			sb.WriteString(fmt.Sprintf("### %s\n\n", esc(blk.Text)))
		case BlockLabel:
			sb.WriteString(fmt.Sprintf("**%s**\n\n", esc(blk.Text)))
		case BlockParagraph:
			sb.WriteString(esc(blk.Text))
			sb.WriteString("\n\n")
		case BlockKeyValues:
			sb.WriteString("| Field | Value |\n")
			sb.WriteString("|-------|-------|\n")
			for _, kv := range blk.Pairs {
				sb.WriteString(fmt.Sprintf("| %s | %s |\n", cell(esc(kv.Key)), cell(esc(kv.Value))))
			}
			sb.WriteString("\n")
		case BlockBullets:
			for _, item := range blk.Items {
				sb.WriteString("- ")
				sb.WriteString(esc(oneLine(item)))
				sb.WriteString("\n")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// cell makes s safe inside a markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", `\|`)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
