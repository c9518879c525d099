// Package git parses unified diffs and reads changes from a local
// repository.
package git

// Diff represents a complete diff with multiple files.
type Diff struct {
	Files []FileDiff `json:"files"`
	Stats DiffStats  `json:"stats"`
}

// FileDiff represents the diff for a single file.
type FileDiff struct {
	Path      string     `json:"path"`
	OldPath   string     `json:"old_path,omitempty"` // For renames
	Status    FileStatus `json:"status"`
	IsBinary  bool       `json:"is_binary"`
	Hunks     []Hunk     `json:"hunks"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

// FileStatus represents the status of a file in the diff.
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileDeleted  FileStatus = "deleted"
	FileRenamed  FileStatus = "renamed"
)

// Hunk represents a section of changes in a file.
type Hunk struct {
	Header   string `json:"header"` // @@ -start,count +start,count @@
	OldStart int    `json:"old_start"`
	OldLines int    `json:"old_lines"`
	NewStart int    `json:"new_start"`
	NewLines int    `json:"new_lines"`
	Lines    []Line `json:"lines"`
}

// Line represents a single line in a hunk.
type Line struct {
	Type      LineType `json:"type"`
	Content   string   `json:"content"`
	OldNumber int      `json:"old_number,omitempty"`
	NewNumber int      `json:"new_number,omitempty"`
}

// LineType represents the type of a diff line.
type LineType string

const (
	LineContext  LineType = "context"
	LineAddition LineType = "addition"
	LineDeletion LineType = "deletion"
)

// DiffStats contains summary statistics about a diff.
type DiffStats struct {
	FilesChanged int `json:"files_changed"`
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
}

// CalculateStats calculates statistics from the diff.
func (d *Diff) CalculateStats() {
	d.Stats = DiffStats{
		FilesChanged: len(d.Files),
	}
	for _, f := range d.Files {
		d.Stats.Additions += f.Additions
		d.Stats.Deletions += f.Deletions
	}
}

// SparseText rebuilds the new side of the file from its hunks. Each line
// sits at its real line number and lines outside the hunks are left
// blank, so issue line numbers match the file.
func (f *FileDiff) SparseText() string {
	var lines []string
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Type == LineDeletion || l.NewNumber <= 0 {
				continue
			}
			for len(lines) < l.NewNumber {
				lines = append(lines, "")
			}
			lines[l.NewNumber-1] = l.Content
		}
	}
	if len(lines) == 0 {
		return ""
	}

	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	buf := make([]byte, 0, n)
	for _, l := range lines {
		buf = append(buf, l...)
		buf = append(buf, '\n')
	}
	return string(buf)
}

// AddedLines returns the new-side line numbers of added lines.
func (f *FileDiff) AddedLines() map[int]bool {
	added := make(map[int]bool)
	for _, h := range f.Hunks {
		for _, l := range h.Lines {
			if l.Type == LineAddition {
				added[l.NewNumber] = true
			}
		}
	}
	return added
}
