package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
	"github.com/forPelevin/reelcut/internal/usecase"
)

func buildManifest(input, source, runDir string, res usecase.Result) types.Manifest {
	m := types.Manifest{
		Input:    input,
		Source:   source,
		Clips:    []types.ManifestClip{},
		Failures: []types.ManifestFailure{},
	}
	for _, a := range res.Artifacts {
		id := strings.TrimSuffix(filepath.Base(a.Path), filepath.Ext(a.Path))
		m.Clips = append(m.Clips, types.ManifestClip{
			ID:        id,
			Segment:   a.Segment.Index,
			StartSec:  a.Segment.Start,
			EndSec:    a.Segment.End,
			Score:     a.Segment.Score,
			Text:      a.Segment.Text,
			File:      relSlash(runDir, a.Path),
			Subtitles: relSlash(runDir, a.SubtitlePath),
		})
	}
	for _, f := range res.Failures {
		m.Failures = append(m.Failures, types.ManifestFailure{
			Segment:  f.Segment.Index,
			StartSec: f.Segment.Start,
			EndSec:   f.Segment.End,
			Kind:     f.Kind.String(),
			Step:     f.Step,
			Reason:   f.Reason,
		})
	}
	return m
}

func writeManifest(runDir string, m types.Manifest) (string, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(runDir, "manifest.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func relSlash(base, p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(base, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
