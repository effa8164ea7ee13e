package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/reelcut/internal/domain/reframe"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
	enc     Encoding
}

// Encoding holds libx264/aac output settings.
type Encoding struct {
	Preset       string
	CRF          int
	AudioBitrate string
	Threads      int
}

func DefaultEncoding() Encoding {
	return Encoding{Preset: "veryfast", CRF: 18, AudioBitrate: "192k", Threads: 4}
}

func New(ffmpegPath, ffprobePath string, enc Encoding) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	def := DefaultEncoding()
	if enc.Preset == "" {
		enc.Preset = def.Preset
	}
	if enc.CRF <= 0 {
		enc.CRF = def.CRF
	}
	if enc.AudioBitrate == "" {
		enc.AudioBitrate = def.AudioBitrate
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, enc: enc}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inMP4,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

// RenderClip cuts [Start, End) from the source, crops, scales to the target
// height, burns the subtitle file and encodes h264/aac in one pass.
func (a *Adapter) RenderClip(ctx context.Context, req ports.RenderRequest) error {
	args := renderArgs(req, a.enc)
	cmd := exec.CommandContext(ctx, a.ffmpeg, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg render clip: %w\n%s", err, tail(string(b), 2000))
	}
	return nil
}

func renderArgs(req ports.RenderRequest, enc Encoding) []string {
	vf := reframe.Filter(req.Crop)
	if req.SubtitlePath != "" {
		vf += ",subtitles=" + escapeFilterPath(req.SubtitlePath)
	}
	args := []string{
		"-y",
		"-ss", fmtSeconds(req.Start),
		"-to", fmtSeconds(req.End),
		"-i", req.Source,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-vf", vf,
		"-c:v", "libx264",
		"-preset", enc.Preset,
		"-crf", strconv.Itoa(enc.CRF),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", enc.AudioBitrate,
		"-movflags", "+faststart",
	}
	if enc.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(enc.Threads))
	}
	// Output muxer is named explicitly because the caller writes to a
	// temporary name before the final rename.
	args = append(args, "-f", "mp4", req.OutputPath)
	return args
}

type probeResult struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the first video stream's geometry and the container duration.
func (a *Adapter) Probe(ctx context.Context, inMP4 string) (types.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "stream=codec_type,width,height,avg_frame_rate,duration:format=duration",
		"-of", "json",
		"--", inMP4,
	)
	b, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return types.MediaInfo{}, fmt.Errorf("ffprobe: %w\n%s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return types.MediaInfo{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(b)
}

func parseProbe(b []byte) (types.MediaInfo, error) {
	var pr probeResult
	if err := json.Unmarshal(b, &pr); err != nil {
		return types.MediaInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	var info types.MediaInfo
	videoDur := 0.0
	for _, s := range pr.Streams {
		if !strings.EqualFold(s.CodecType, "video") {
			continue
		}
		info.Width = s.Width
		info.Height = s.Height
		info.FrameRate = parseRate(s.AvgFrameRate)
		videoDur = parseFloat(s.Duration)
		break
	}
	if info.Width == 0 || info.Height == 0 {
		return types.MediaInfo{}, errors.New("ffprobe: no video stream")
	}
	sec := videoDur
	if sec <= 0 {
		sec = parseFloat(pr.Format.Duration)
	}
	info.Duration = time.Duration(math.Round(sec * float64(time.Second)))
	return info, nil
}

func parseRate(s string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func fmtSeconds(d time.Duration) string {
	sec := float64(d) / float64(time.Second)
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

// escapeFilterPath escapes a path for use as a filter option value inside
// -vf. ffmpeg unescapes twice: once when splitting the filtergraph and once
// when parsing the filter's options.
func escapeFilterPath(p string) string {
	return graphEscaper.Replace(optionEscaper.Replace(p))
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
