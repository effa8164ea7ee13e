package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

const transcriptFile = "transcript.json"

// transcribe returns the transcript for src, reusing <cache>/runs/<content
// hash>/transcript.json when present. The cache dir is locked for the
// duration so concurrent runs on the same media transcribe it once.
func transcribe(
	ctx context.Context,
	video ports.VideoTool,
	asr ports.ASR,
	src, cacheRoot string,
	log logrus.FieldLogger,
) (types.Transcript, bool, error) {
	fail := func(step string, err error) (types.Transcript, bool, error) {
		if ctx.Err() != nil {
			return types.Transcript{}, false, ctx.Err()
		}
		return types.Transcript{}, false, types.NewError(types.KindTranscription, step, err)
	}

	key, err := hashFile(src)
	if err != nil {
		return fail("hash", err)
	}
	dir := filepath.Join(cacheRoot, "runs", key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail("cache", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	ok, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return fail("cache", fmt.Errorf("lock transcript cache: %w", err))
	}
	if !ok {
		return fail("cache", fmt.Errorf("transcript cache %s is locked", dir))
	}
	defer func() { _ = lock.Unlock() }()

	cachePath := filepath.Join(dir, transcriptFile)
	if tr, err := readTranscript(cachePath); err == nil {
		return tr, true, nil
	} else if !os.IsNotExist(err) {
		log.WithError(err).Warn("ignoring unreadable transcript cache")
	}

	wav := filepath.Join(dir, "audio.wav")
	log.Info("extracting audio")
	if err := video.ExtractAudioMono16k(ctx, src, wav); err != nil {
		return fail("audio", err)
	}
	log.Info("transcribing")
	tr, err := asr.Transcribe(ctx, wav, dir)
	if err != nil {
		return fail("asr", err)
	}
	if err := writeTranscript(cachePath, tr); err != nil {
		log.WithError(err).Warn("write transcript cache")
	}
	return tr, false, nil
}

func readTranscript(path string) (types.Transcript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Transcript{}, err
	}
	var tr types.Transcript
	if err := json.Unmarshal(b, &tr); err != nil {
		return types.Transcript{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return tr, nil
}

func writeTranscript(path string, tr types.Transcript) error {
	b, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:12], nil
}
