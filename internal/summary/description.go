package summary

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// maxDescriptionRunes bounds the description quoted in a prompt.
const maxDescriptionRunes = 2000

// plainDescription reduces a PR body to readable text. HTML comments
// (such as PR template hints) and script or style content are dropped,
// tags are removed, and runs of blank lines are collapsed.
func plainDescription(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))

	var sb strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return collapseBlankLines(body)
			}
			return truncateRunes(collapseBlankLines(sb.String()), maxDescriptionRunes)
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
			case "br", "p", "div", "li", "tr", "summary", "details":
				sb.WriteString("\n")
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
