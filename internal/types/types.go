package types

import "time"

type Transcript struct {
	Segments []Segment `json:"segments"`
}

// Segment is one timestamped span of transcript text. Times are seconds
// from the start of the source media.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (s Segment) Duration() float64 { return s.End - s.Start }

// Sentiment is the classifier verdict for one piece of text.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ScoredSegment is a Segment with its highlight verdict. Index is the
// segment's position in transcript order.
type ScoredSegment struct {
	Segment
	Index  int     `json:"index"`
	Label  string  `json:"label"`
	Score  float64 `json:"score"`
	Passes bool    `json:"passes"`
}

// Selection is the bounded, transcript-ordered list of segments to render.
type Selection []ScoredSegment

type CropGeometry struct {
	X1           int
	X2           int
	OutputHeight int

	SourceWidth  int
	SourceHeight int
}

func (g CropGeometry) Width() int { return g.X2 - g.X1 }

// CaptionSpec is a single caption cue in the clip's own timeline.
type CaptionSpec struct {
	Text         string
	DisplayStart float64
	DisplayEnd   float64
}

type ClipArtifact struct {
	Path         string
	SubtitlePath string
	Segment      ScoredSegment
}

type SegmentFailure struct {
	Segment ScoredSegment
	Kind    ErrorKind
	Step    string
	Reason  string
}

type MediaInfo struct {
	Width     int
	Height    int
	Duration  time.Duration
	FrameRate float64
}

// OutputTarget is where one clip and its subtitle file are written.
type OutputTarget struct {
	ClipPath     string
	SubtitlePath string
}

type Manifest struct {
	Input    string            `json:"input"`
	Source   string            `json:"source"`
	Clips    []ManifestClip    `json:"clips"`
	Failures []ManifestFailure `json:"failures"`
}

type ManifestClip struct {
	ID        string  `json:"id"`
	Segment   int     `json:"segment"`
	StartSec  float64 `json:"start_sec"`
	EndSec    float64 `json:"end_sec"`
	Score     float64 `json:"score"`
	Text      string  `json:"text"`
	File      string  `json:"file"`
	Subtitles string  `json:"subtitles"`
}

type ManifestFailure struct {
	Segment  int     `json:"segment"`
	StartSec float64 `json:"start_sec"`
	EndSec   float64 `json:"end_sec"`
	Kind     string  `json:"kind"`
	Step     string  `json:"step,omitempty"`
	Reason   string  `json:"reason"`
}
