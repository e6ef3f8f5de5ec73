package transcribe

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Raikerian/go-discord-recorder/internal/export"
)

// Output files written into the session directory.
const (
	JSONFile = "transcript.json"
	SRTFile  = "transcript.srt"
	TextFile = "transcript.txt"
)

// TranscriptVersion is the transcript.json format.
const TranscriptVersion = 1

// Line is one segment placed on the session timeline.
type Line struct {
	Speaker   string  `json:"speaker"`
	Track     string  `json:"track"`
	SpeakerID uint64  `json:"speaker_id,omitempty"`
	Chunk     int     `json:"chunk"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
}

// Transcript is the content of transcript.json.
type Transcript struct {
	Version      int       `json:"version"`
	SessionDir   string    `json:"session_dir"`
	CreatedAt    time.Time `json:"created_at"`
	Model        string    `json:"model"`
	Language     string    `json:"language,omitempty"`
	AudioSeconds float64   `json:"audio_seconds"`
	CostUSD      *float64  `json:"estimated_cost_usd,omitempty"`
	Lines        []Line    `json:"lines"`
	Failures     []string  `json:"failures,omitempty"`
}

// chunkResult is what one chunk contributed.
type chunkResult struct {
	chunk    export.ChunkEntry
	segments []Segment
}

// assemble re-anchors chunk-relative segments onto the session timeline and
// orders them by start time. Segment times are clamped to the chunk.
func assemble(m *export.Manifest, results []chunkResult) []Line {
	lines := make([]Line, 0)
	for _, r := range results {
		speaker, _ := m.Speaker(r.chunk.Speaker)
		label := speaker.Label()
		if label == "" {
			label = r.chunk.Speaker
		}

		base := r.chunk.AbsoluteStart()
		length := r.chunk.EndSecs - r.chunk.StartSecs
		for _, s := range r.segments {
			start := clamp(s.Start, 0, length)
			end := clamp(s.End, start, length)
			lines = append(lines, Line{
				Speaker:   label,
				Track:     r.chunk.Speaker,
				SpeakerID: speaker.SpeakerID,
				Chunk:     r.chunk.Index,
				Start:     base + start,
				End:       base + end,
				Text:      s.Text,
			})
		}
	}

	slices.SortStableFunc(lines, func(a, b Line) int {
		return cmp.Or(
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(a.Track, b.Track),
		)
	})
	return lines
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// RenderSRT formats lines as SubRip subtitles.
func RenderSRT(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s: %s\n\n",
			i+1, srtTimestamp(l.Start), srtTimestamp(l.End), l.Speaker, l.Text)
	}
	return b.String()
}

// RenderText formats lines as a plain "[mm:ss] Speaker: text" log.
func RenderText(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		fmt.Fprintf(&b, "[%s] %s: %s\n", clockTimestamp(l.Start), l.Speaker, l.Text)
	}
	return b.String()
}

func srtTimestamp(secs float64) string {
	ms := int64(math.Round(max(secs, 0) * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}

func clockTimestamp(secs float64) string {
	s := int64(max(secs, 0))
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
