package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator translates headings and row labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		if t != nil {
			f.t = t
		}
	}
}

// WithVersion adds the tool version to the footer.
func WithVersion(v string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = v
	}
}

// MarkdownFormatter renders a Summary as Markdown tables.
type MarkdownFormatter struct {
	t       func(string) string
	version string
}

// NewMarkdownFormatter creates a formatter. Without a translator labels
// stay in English.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{t: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", f.t("Sampling Summary"))
	fmt.Fprintf(&b, "%s: %s\n", f.t("Generated"), s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if s.Result.Warning != "" {
		fmt.Fprintf(&b, "\n> **%s**: %s\n", f.t("Warning"), s.Result.Warning)
	}

	f.section(&b, "Results", [][2]string{
		{"Session", orNA(s.Result.SessionID)},
		{"Frames Written", fmt.Sprint(s.Result.Written)},
		{"Frames Padded", fmt.Sprint(s.Result.Padded)},
		{"Frames Dropped", fmt.Sprint(s.Result.Dropped)},
		{"Seek Distance", fmt.Sprintf("%.3f s", s.Result.SeekDistance)},
		{"Seek Fallback", f.yesNo(s.Result.Fallback)},
		{"Elapsed", fmt.Sprintf("%d ms", s.Result.ElapsedMs)},
		{"Buffer Size", formatBytes(int64(s.Result.BufferBytes))},
	})

	req := s.Request
	rows := [][2]string{
		{"Mode", orNA(req.Mode)},
		{"Frame Size", formatSize(req.Width, req.Height)},
		{"Frames", fmt.Sprint(req.Frames)},
		{"Pixel Format", orNA(req.PixelFormat)},
	}
	if req.Mode == "frames" {
		rows = append(rows,
			[2]string{"Indices", formatIndices(req.Indices)},
			[2]string{"Seek", f.yesNo(req.Seek)},
		)
	} else {
		rows = append(rows,
			[2]string{"FPS Cap", fmt.Sprintf("%.2f", req.FPSCap)},
			[2]string{"Random Seek", f.yesNo(req.RandomSeek)},
		)
	}
	f.section(&b, "Settings", rows)

	st := s.Stream
	f.section(&b, "Video Details", [][2]string{
		{"File", orNA(s.Source.Path)},
		{"File Size", formatBytes(s.Source.Size)},
		{"Backend", orNA(s.Source.Backend)},
		{"Codec", orNA(st.Codec)},
		{"Resolution", fmt.Sprintf("%dx%d", st.Width, st.Height)},
		{"Frame Count", fmt.Sprint(st.FrameCount)},
		{"Duration", fmt.Sprintf("%.3f s", st.DurationSec)},
		{"Frame Rate", fmt.Sprintf("%.3f fps", st.FrameRate)},
	})

	b.WriteString("\n---\n\n")
	if f.version != "" {
		fmt.Fprintf(&b, "%s vidsample %s\n", f.t("Generated by"), f.version)
	} else {
		fmt.Fprintf(&b, "%s vidsample\n", f.t("Generated by"))
	}
	return b.String()
}

func (f *MarkdownFormatter) section(b *strings.Builder, title string, rows [][2]string) {
	fmt.Fprintf(b, "\n## %s\n\n", f.t(title))
	fmt.Fprintf(b, "| %s | %s |\n", f.t("Item"), f.t("Value"))
	b.WriteString("|------|-------|\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", f.t(row[0]), row[1])
	}
}

func (f *MarkdownFormatter) yesNo(v bool) string {
	if v {
		return f.t("Yes")
	}
	return f.t("No")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatSize(w, h int) string {
	if w == 0 && h == 0 {
		return "native"
	}
	return fmt.Sprintf("%dx%d", w, h)
}

func formatIndices(indices []int64) string {
	if len(indices) == 0 {
		return "N/A"
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = fmt.Sprint(idx)
	}
	return strings.Join(parts, ", ")
}

// formatBytes formats a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}

var _ Formatter = (*MarkdownFormatter)(nil)
