// Package moments extracts the timestamps of a transcript worth illustrating
// with a screenshot.
package moments

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/vidnote/vidnote/internal/types"
)

var (
	reNum    = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`)
	reSignal = regexp.MustCompile(`(?i)\b(important|key|remember|note|in\s+summary|the\s+point|takeaway|conclusion)\b`)
	reHow    = regexp.MustCompile(`(?i)\b(how\s+to|step\s+\d+|first|second|third|for\s+example|let'?s\s+look\s+at)\b`)
)

// minSpacingSec keeps selected moments apart so candidate frame windows do
// not overlap and the note is not wallpapered with near-duplicate screenshots.
const minSpacingSec = 20.0

// Score rates one transcript segment's worth as a screenshot anchor.
// Lightweight heuristic on purpose: deterministic, cheap, and good enough to
// rank segments before the selection engine picks the actual frame.
func Score(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	lower := strings.ToLower(t)

	s := float64(len(reNum.FindAllStringIndex(t, -1))) * 0.5
	if reHow.MatchString(lower) {
		s += 1.2
	}
	s += float64(len(reSignal.FindAllStringIndex(lower, -1))) * 0.9
	// Longer segments carry more to illustrate, up to a point.
	s += min(float64(len([]rune(t)))*0.004, 1.0)

	return clamp(s, 0, 10)
}

// Extract returns up to maxMoments key moments ordered by time. Rank 1 is the
// highest-scoring moment. Segments closer than the spacing threshold to an
// already-selected moment are skipped.
func Extract(tr types.Transcript, maxMoments int) []types.KeyMoment {
	if maxMoments <= 0 || len(tr.Segments) == 0 {
		return nil
	}

	type scored struct {
		ts    float64
		score float64
	}
	cands := make([]scored, 0, len(tr.Segments))
	for _, seg := range tr.Segments {
		s := Score(seg.Text)
		if s <= 0 {
			continue
		}
		cands = append(cands, scored{ts: seg.Start, score: s})
	}
	if len(cands) == 0 {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score == cands[j].score {
			return cands[i].ts < cands[j].ts
		}
		return cands[i].score > cands[j].score
	})

	picked := make([]scored, 0, maxMoments)
	for _, c := range cands {
		if len(picked) >= maxMoments {
			break
		}
		spaced := true
		for _, p := range picked {
			if absFloat(c.ts-p.ts) < minSpacingSec {
				spaced = false
				break
			}
		}
		if !spaced {
			continue
		}
		picked = append(picked, c)
	}

	out := make([]types.KeyMoment, len(picked))
	for i, c := range picked {
		out[i] = types.KeyMoment{Timestamp: c.ts, Rank: i + 1}
	}
	// IDs follow timeline order so note sections read top to bottom.
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	for i := range out {
		out[i].ID = fmt.Sprintf("m%03d", i+1)
	}
	return out
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
