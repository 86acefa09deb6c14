// Package notes assembles the final Markdown note from authored text, key
// moments, and the screenshots chosen for them.
package notes

import (
	"fmt"
	"strings"

	"github.com/vidnote/vidnote/internal/types"
)

// Placeholder is the token the authoring model is instructed to leave where a
// moment's screenshot belongs. Substitution is deterministic string work so a
// sloppy model cannot corrupt image references.
func Placeholder(momentID string) string {
	return fmt.Sprintf("{{screenshot:%s}}", momentID)
}

// Render replaces each moment's placeholder with an image link, or removes it
// when that moment has no usable screenshot. Successful moments whose
// placeholder the model dropped are appended in a trailing section so no
// chosen screenshot is lost.
func Render(authored string, moments []types.KeyMoment, results []types.SelectionResult, imagePath func(momentID string) (string, bool)) string {
	resultByID := make(map[string]types.SelectionResult, len(results))
	for _, r := range results {
		resultByID[r.MomentID] = r
	}

	out := authored
	var orphans []string
	for _, m := range moments {
		ph := Placeholder(m.ID)
		r, ok := resultByID[m.ID]
		path, havePath := imagePath(m.ID)
		usable := ok && !r.Failed() && havePath

		if !usable {
			out = strings.ReplaceAll(out, ph, "")
			continue
		}
		img := imageMarkdown(m, path)
		if strings.Contains(out, ph) {
			out = strings.ReplaceAll(out, ph, img)
		} else {
			orphans = append(orphans, img)
		}
	}

	if len(orphans) > 0 {
		out = strings.TrimRight(out, "\n") + "\n\n## Screenshots\n\n" + strings.Join(orphans, "\n\n") + "\n"
	}
	return collapseBlankLines(out)
}

// Fallback builds a deterministic note straight from the transcript when the
// authoring model is unavailable. It emits the same placeholders Render
// substitutes, so both paths share one substitution step.
func Fallback(title string, tr types.Transcript, moments []types.KeyMoment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	for _, m := range moments {
		fmt.Fprintf(&b, "## %s\n\n", TimestampLabel(m.Timestamp))
		b.WriteString(Placeholder(m.ID))
		b.WriteString("\n\n")
		if text := textAround(tr, m.Timestamp); text != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// TimestampLabel formats seconds as m:ss or h:mm:ss.
func TimestampLabel(sec float64) string {
	total := int(sec)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func imageMarkdown(m types.KeyMoment, path string) string {
	return fmt.Sprintf("![screenshot at %s](%s)", TimestampLabel(m.Timestamp), path)
}

// textAround returns transcript text within a small window of the timestamp.
func textAround(tr types.Transcript, ts float64) string {
	const window = 15.0
	var parts []string
	for _, seg := range tr.Segments {
		if seg.End < ts-window || seg.Start > ts+window {
			continue
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
