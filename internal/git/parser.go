package git

import (
	"strconv"
	"strings"
)

// ParseDiff parses a git-style unified diff ("diff --git" headers). Lines
// before the first header are ignored.
func ParseDiff(diffText string) (*Diff, error) {
	p := &parser{diff: &Diff{Files: []FileDiff{}}}
	if strings.TrimSpace(diffText) != "" {
		forEachLine(diffText, p.feed)
		p.flush()
	}
	p.diff.CalculateStats()
	return p.diff, nil
}

// ParsePatch parses the hunks of a single file, as found in the "patch"
// field of the GitHub pull request files API.
func ParsePatch(path, patch string) *FileDiff {
	p := &parser{
		diff: &Diff{},
		file: &FileDiff{Path: path, Status: FileModified},
	}
	forEachLine(patch, p.feed)
	p.flush()
	return &p.diff.Files[0]
}

// parser is a line-at-a-time state machine: a file header opens a file,
// "@@" opens a hunk, and body lines belong to the open hunk.
type parser struct {
	diff *Diff
	file *FileDiff
	hunk *Hunk

	// next line numbers on each side of the open hunk
	oldNo, newNo int
}

// forEachLine calls fn for every line, dropping a trailing "\r". Text
// after the last newline is a line only when non-empty.
func forEachLine(text string, fn func(string)) {
	for text != "" {
		line := text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line, text = text[:i], text[i+1:]
		} else {
			text = ""
		}
		fn(strings.TrimSuffix(line, "\r"))
	}
}

func (p *parser) feed(line string) {
	switch {
	case strings.HasPrefix(line, "diff --git "):
		p.flush()
		oldPath, newPath := splitGitHeader(line)
		p.file = &FileDiff{Path: newPath, OldPath: oldPath, Status: FileModified}
	case p.file == nil:
	case strings.HasPrefix(line, "@@"):
		p.closeHunk()
		p.hunk = parseHunkHeader(line)
		p.oldNo, p.newNo = p.hunk.OldStart, p.hunk.NewStart
	case p.hunk == nil:
		p.fileHeader(line)
	default:
		p.body(line)
	}
}

// fileHeader reads the extended header lines between "diff --git" and
// the first hunk.
func (p *parser) fileHeader(line string) {
	switch {
	case strings.HasPrefix(line, "new file"):
		p.file.Status = FileAdded
	case strings.HasPrefix(line, "deleted file"):
		p.file.Status = FileDeleted
	case strings.HasPrefix(line, "rename from"):
		p.file.Status = FileRenamed
	case strings.HasPrefix(line, "Binary files"):
		p.file.IsBinary = true
	}
}

func (p *parser) body(line string) {
	// editors strip the space of blank context lines
	if line == "" {
		line = " "
	}

	var l Line
	switch line[0] {
	case '+':
		l = Line{Type: LineAddition, NewNumber: p.newNo}
		p.newNo++
		p.file.Additions++
	case '-':
		l = Line{Type: LineDeletion, OldNumber: p.oldNo}
		p.oldNo++
		p.file.Deletions++
	case ' ':
		l = Line{Type: LineContext, OldNumber: p.oldNo, NewNumber: p.newNo}
		p.oldNo++
		p.newNo++
	default:
		// "\ No newline at end of file" and anything unknown
		return
	}
	l.Content = line[1:]
	p.hunk.Lines = append(p.hunk.Lines, l)
}

func (p *parser) closeHunk() {
	if p.hunk != nil {
		p.file.Hunks = append(p.file.Hunks, *p.hunk)
		p.hunk = nil
	}
}

func (p *parser) flush() {
	if p.file == nil {
		return
	}
	p.closeHunk()
	p.diff.Files = append(p.diff.Files, *p.file)
	p.file = nil
}

// splitGitHeader extracts both paths from "diff --git a/old b/new".
func splitGitHeader(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	i := strings.Index(rest, " b/")
	if i < 0 {
		return "", ""
	}
	return strings.TrimPrefix(rest[:i], "a/"), rest[i+len(" b/"):]
}

// parseHunkHeader reads "@@ -old[,n] +new[,n] @@ section". Missing counts
// default to 1.
func parseHunkHeader(line string) *Hunk {
	h := &Hunk{Header: line, OldLines: 1, NewLines: 1}

	ranges := strings.TrimPrefix(line, "@@ ")
	if ranges == line {
		return h
	}
	if end := strings.Index(ranges, " @@"); end >= 0 {
		ranges = ranges[:end]
	}

	fields := strings.Fields(ranges)
	if len(fields) < 2 {
		return h
	}
	if r, ok := strings.CutPrefix(fields[0], "-"); ok {
		h.OldStart, h.OldLines = parseRange(r, h.OldLines)
	}
	if r, ok := strings.CutPrefix(fields[1], "+"); ok {
		h.NewStart, h.NewLines = parseRange(r, h.NewLines)
	}
	return h
}

// parseRange parses "start,count" or "start". Unparseable parts are zero
// and count keeps def.
func parseRange(s string, def int) (start, count int) {
	count = def
	startText, countText, hasCount := strings.Cut(s, ",")
	start, _ = strconv.Atoi(startText)
	if hasCount {
		if n, err := strconv.Atoi(countText); err == nil {
			count = n
		}
	}
	return start, count
}
