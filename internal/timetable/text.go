package timetable

import (
	"strings"

	"golang.org/x/net/html"
)

// lineTags end the current text line when opened or closed.
var lineTags = map[string]bool{
	"br":    true,
	"td":    true,
	"th":    true,
	"tr":    true,
	"div":   true,
	"p":     true,
	"li":    true,
	"ul":    true,
	"ol":    true,
	"table": true,
	"tbody": true,
	"thead": true,
}

// skipTags have text content that never reaches the reader.
var skipTags = map[string]bool{
	"script": true,
	"style":  true,
}

// textLines renders an HTML fragment as plain text, one line per table cell
// or <br>-separated segment. Entities are decoded, whitespace is collapsed and
// blank lines are dropped.
func textLines(fragment string) []string {
	z := html.NewTokenizer(strings.NewReader(fragment))

	var (
		lines []string
		cur   strings.Builder
		skip  int
	)
	flush := func() {
		line := strings.Join(strings.Fields(cur.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			return lines
		case html.TextToken:
			if skip == 0 {
				cur.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipTags[tag] {
				switch tt {
				case html.StartTagToken:
					skip++
				case html.EndTagToken:
					if skip > 0 {
						skip--
					}
				}
				continue
			}
			if lineTags[tag] {
				flush()
			}
		}
	}
}
