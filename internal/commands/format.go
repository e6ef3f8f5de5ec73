package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Raikerian/go-discord-recorder/internal/export"
	sessions "github.com/Raikerian/go-discord-recorder/internal/session"
	"github.com/Raikerian/go-discord-recorder/internal/transcribe"
	"github.com/Raikerian/go-discord-recorder/pkg/audio"
)

func formatStarted(s *sessions.Session) string {
	return fmt.Sprintf("🔴 Recording started in <#%s>\n🆔 Session `%s`", s.ChannelID, s.ID)
}

func formatStatus(st sessions.Status) string {
	captured := time.Duration(st.Ticks) * audio.TickDuration
	return fmt.Sprintf("🔴 Recording in <#%s> (%s)\n🆔 Session `%s`\n⏱️ Elapsed: %s, captured %s\n👥 Speakers: %d, streams: %d",
		st.ChannelID, st.Lifecycle, st.SessionID,
		st.Elapsed.Round(time.Second), captured.Round(time.Second),
		st.Speakers, st.Streams)
}

// formatStopReport renders a finished session. prefix names why it stopped.
func formatStopReport(prefix string, r *sessions.StopReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n🆔 Session `%s`\n⏱️ Duration: %s, captured %s\n👥 Speakers: %d, streams: %d",
		prefix, r.SessionID,
		r.Duration.Round(time.Second), r.CapturedDuration().Round(time.Second),
		r.SpeakerCount, r.StreamCount)

	if r.StorageErr != nil {
		fmt.Fprintf(&b, "\n⚠️ Some audio may not have been saved: %v", r.StorageErr)
	}

	switch {
	case errors.Is(r.ExportErr, export.ErrNoAudio):
		b.WriteString("\n🔇 No audio was captured.")
	case r.ExportErr != nil:
		fmt.Fprintf(&b, "\n⚠️ Export failed: %v", r.ExportErr)
		fmt.Fprintf(&b, "\n🔁 Retry with `/record action:reconstruct session:%s`", r.SessionID)
	case r.Export != nil:
		b.WriteString("\n")
		writeExportSummary(&b, r.Export)
	}

	return b.String()
}

func formatReexport(sessionID string, res *export.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔁 Reconstructed `%s`\n", sessionID)
	writeExportSummary(&b, res)
	return b.String()
}

func writeExportSummary(b *strings.Builder, res *export.Result) {
	labels := make([]string, 0, len(res.Speakers))
	for _, s := range res.Speakers {
		labels = append(labels, s.Label())
	}
	fmt.Fprintf(b, "📁 Exported %d track(s) and %d chunk(s): %s",
		len(res.Speakers), len(res.Chunks), strings.Join(labels, ", "))
	if n := len(res.Warnings); n > 0 {
		fmt.Fprintf(b, "\n⚠️ %d export warning(s), see the manifest.", n)
	}
}

func formatTranscript(sessionID string, res *transcribe.Result) string {
	speakers := make(map[string]struct{})
	for _, l := range res.Lines {
		speakers[l.Speaker] = struct{}{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📝 Transcript for `%s` ready: %d line(s) from %d speaker(s), %s of audio",
		sessionID, len(res.Lines), len(speakers),
		(time.Duration(res.AudioSeconds * float64(time.Second))).Round(time.Second))
	if res.CostUSD != nil {
		fmt.Fprintf(&b, " (~$%.3f)", *res.CostUSD)
	}
	if n := len(res.Failures); n > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d chunk(s) could not be transcribed.", n)
	}
	return b.String()
}
