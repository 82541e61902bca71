package report

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TextLayout controls the plain-text renderer.
type TextLayout struct {
	Width        int
	LinesPerPage int
}

// Default text layout
const (
	DefaultTextWidth    = 80
	DefaultLinesPerPage = 60
	// minTextWidth and minLinesPerPage keep a page able to hold its header and some content.
	minTextWidth    = 20
	minLinesPerPage = 8
)

func (l TextLayout) normalised() TextLayout {
	if l.Width <= 0 {
		l.Width = DefaultTextWidth
	}
	if l.LinesPerPage <= 0 {
		l.LinesPerPage = DefaultLinesPerPage
	}
	l.Width = max(l.Width, minTextWidth)
	l.LinesPerPage = max(l.LinesPerPage, minLinesPerPage)
	return l
}

type textPager struct {
	layout    TextLayout
	title     string
	pages     [][]string
	cur       []string
	headerLen int
}

// ensure starts a new page unless n more lines fit on the current one.
// A page holding nothing but its header is never abandoned.
func (p *textPager) ensure(n int) {
	if len(p.cur)+n > p.layout.LinesPerPage && len(p.cur) > p.headerLen {
		p.newPage()
	}
}

func (p *textPager) newPage() {
	p.pages = append(p.pages, p.cur)
	header := fmt.Sprintf("%s  (page %d)", p.title, len(p.pages)+1)
	p.cur = []string{truncateRunes(header, p.layout.Width), strings.Repeat("-", p.layout.Width), ""}
	p.headerLen = len(p.cur)
}

func (p *textPager) line(s string) {
	if len(p.cur) >= p.layout.LinesPerPage {
		p.newPage()
	}
	p.cur = append(p.cur, s)
}

func (p *textPager) blank() {
	// Blanks at the top or bottom of a page are noise.
	if len(p.cur) == 0 || len(p.cur) >= p.layout.LinesPerPage || p.cur[len(p.cur)-1] == "" {
		return
	}
	p.line("")
}

// block writes lines that should stay together when they fit on one page.
func (p *textPager) block(lines []string) {
	if len(lines) <= p.layout.LinesPerPage-3 {
		p.ensure(len(lines))
	}
	for _, l := range lines {
		p.line(l)
	}
}

func (p *textPager) String() string {
	pages := append(p.pages, p.cur)
	out := make([]string, len(pages))
	for i, pg := range pages {
		out[i] = strings.Join(pg, "\n")
	}
	return strings.Join(out, "\n\f")
}

// RenderText renders the document as paginated plain text. Pages are
// separated by a form feed and every page after the first starts with a header.
func RenderText(doc Document, layout TextLayout) string {
	layout = layout.normalised()
	p := &textPager{layout: layout, title: doc.Title}
	w := layout.Width

	for _, blk := range doc.Blocks {
		switch blk.Kind {
		case BlockTitle:
			band := strings.Repeat("=", w)
			lines := []string{band, center(blk.Text, w)}
			if blk.Subtitle != "" {
				for _, l := range wrap(blk.Subtitle, w) {
					lines = append(lines, center(l, w))
				}
			}
			lines = append(lines, band)
			p.block(lines)
			p.blank()
		case BlockHeading:
			text := strings.ToUpper(blk.Text)
			lines := wrap(text, w)
			lines = append(lines, strings.Repeat("=", min(utf8.RuneCountInString(text), w)))
			// Keep a heading with at least one line of its content.
			p.blank()
			p.ensure(len(lines) + 1)
			p.block(lines)
		case BlockSubheading:
			lines := wrap(blk.Text, w)
			lines = append(lines, strings.Repeat("-", min(utf8.RuneCountInString(blk.Text), w)))
			p.blank()
			p.ensure(len(lines) + 1)
			p.block(lines)
		case BlockLabel:
			p.ensure(2)
			p.line(blk.Text + ":")
		case BlockParagraph:
			for _, l := range wrap(blk.Text, w) {
				p.line(l)
			}
			p.blank()
		case BlockKeyValues:
			keyWidth := 0
			for _, kv := range blk.Pairs {
				keyWidth = max(keyWidth, utf8.RuneCountInString(kv.Key))
			}
			for _, kv := range blk.Pairs {
				prefix := kv.Key + ":" + strings.Repeat(" ", keyWidth-utf8.RuneCountInString(kv.Key)+1)
				p.block(hanging(prefix, kv.Value, w))
			}
			p.blank()
		case BlockBullets:
			for _, item := range blk.Items {
				p.block(hanging("  - ", item, w))
			}
			p.blank()
		}
	}
	return p.String()
}

// hanging wraps text after prefix and indents continuation lines to match.
func hanging(prefix, text string, width int) []string {
	indent := utf8.RuneCountInString(prefix)
	if indent >= width/2 {
		// Long prefix: put it on its own line and indent the text under it.
		out := []string{truncateRunes(strings.TrimRight(prefix, " "), width)}
		for _, l := range wrap(text, width-4) {
			out = append(out, "    "+l)
		}
		return out
	}
	lines := wrap(text, width-indent)
	if len(lines) == 0 {
		return []string{strings.TrimRight(prefix, " ")}
	}
	out := make([]string, len(lines))
	out[0] = prefix + lines[0]
	for i := 1; i < len(lines); i++ {
		out[i] = strings.Repeat(" ", indent) + lines[i]
	}
	return out
}

// wrap breaks s into lines of at most width runes on word boundaries.
// Words longer than width are split.
func wrap(s string, width int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		var cur []rune
		for _, word := range words {
			wr := []rune(word)
			for len(wr) > width {
				if len(cur) > 0 {
					lines = append(lines, string(cur))
					cur = nil
				}
				lines = append(lines, string(wr[:width]))
				wr = wr[width:]
			}
			if len(wr) == 0 {
				continue
			}
			switch {
			case len(cur) == 0:
				cur = append(cur, wr...)
			case len(cur)+1+len(wr) <= width:
				cur = append(cur, ' ')
				cur = append(cur, wr...)
			default:
				lines = append(lines, string(cur))
				cur = append([]rune(nil), wr...)
			}
		}
		if len(cur) > 0 {
			lines = append(lines, string(cur))
		}
	}
	return lines
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return truncateRunes(s, width)
	}
	return strings.Repeat(" ", (width-n)/2) + s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
