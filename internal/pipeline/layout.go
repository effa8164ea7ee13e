package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/forPelevin/reelcut/internal/types"
)

// runLayout places clips under <run>/clips and captions under
// <run>/subtitles. A random suffix keeps names unique across reruns into the
// same directory.
type runLayout struct {
	dir string
}

func newRunLayout(dir string) runLayout { return runLayout{dir: dir} }

func (l runLayout) Locate(idx int, _ types.ScoredSegment) (types.OutputTarget, error) {
	name := fmt.Sprintf("%03d-%s", idx+1, uuid.NewString()[:8])
	return types.OutputTarget{
		ClipPath:     filepath.Join(l.dir, "clips", name+".mp4"),
		SubtitlePath: filepath.Join(l.dir, "subtitles", name+".ass"),
	}, nil
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	base := input
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizePathSegment lowercases s, folds accents (é -> e) and collapses
// every other non-alphanumeric run into a single dash.
func normalizePathSegment(s string) string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
