package subtitles

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forPelevin/reelcut/internal/types"
)

// Timing selects how the single caption cue is stretched over the clip.
type Timing string

const (
	// TimingExact shows the caption for the full clip duration.
	TimingExact Timing = "exact"
	// TimingWholeSeconds truncates the cue end to whole seconds.
	TimingWholeSeconds Timing = "whole_seconds"
)

func (t Timing) Valid() bool {
	return t == TimingExact || t == TimingWholeSeconds
}

// BuildCaption maps a segment onto the clip-local timeline, which starts at 0.
func BuildCaption(seg types.ScoredSegment, timing Timing) types.CaptionSpec {
	d := seg.End - seg.Start
	if d < 0 {
		d = 0
	}
	if timing == TimingWholeSeconds {
		d = math.Floor(d)
	}
	return types.CaptionSpec{
		Text:         SanitizeText(seg.Text),
		DisplayStart: 0,
		DisplayEnd:   d,
	}
}

// Style is the caption look: white bold text on a black box near the bottom.
type Style struct {
	FontName string
	FontSize int
	MarginV  int
	// PlayResX/PlayResY should match the rendered frame so libass does not
	// stretch glyphs.
	PlayResX int
	PlayResY int
}

func DefaultStyle(width, height int) Style {
	return Style{
		FontName: "Arial",
		FontSize: 48,
		MarginV:  120,
		PlayResX: width,
		PlayResY: height,
	}
}

// RenderASS produces a one-cue ASS document for the caption.
func RenderASS(c types.CaptionSpec, st Style) string {
	var b strings.Builder
	b.WriteString(assHeader(st))
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	b.WriteString("Dialogue: 0,")
	b.WriteString(assTime(seconds(c.DisplayStart)))
	b.WriteString(",")
	b.WriteString(assTime(seconds(c.DisplayEnd)))
	b.WriteString(",Caption,,0,0,0,,")
	b.WriteString(sanitizeASS(c.Text))
	b.WriteString("\n")
	return b.String()
}

func assHeader(st Style) string {
	if st.PlayResX <= 0 {
		st.PlayResX = 1080
	}
	if st.PlayResY <= 0 {
		st.PlayResY = 1920
	}
	if st.FontName == "" {
		st.FontName = "Arial"
	}
	if st.FontSize <= 0 {
		st.FontSize = 48
	}
	// BorderStyle 3 draws an opaque box in BackColour behind the text.
	return fmt.Sprintf(strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption, %s, %d, &H00FFFFFF, &H00FFFFFF, &H00000000, &H00000000, -1,0,0,0,100,100,0,0,3,8,0,2, 40,40,%d,1
`), st.PlayResX, st.PlayResY, st.FontName, st.FontSize, st.MarginV)
}

// assTime formats d as H:MM:SS.cc, truncating below centiseconds.
func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

// SanitizeText trims the caption and strips quote characters, which break
// the subtitle filter argument parsing downstream.
func SanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '`', '‘', '’', '“', '”':
			return -1
		case '\n', '\r', '\t':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}

// seconds rounds to the millisecond before assTime truncates, so float
// noise such as 2.9999999 does not drop a whole centisecond.
func seconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1000)) * time.Millisecond
}
