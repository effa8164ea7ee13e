// Package acquire resolves a source locator to a local media file.
package acquire

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

// Router dispatches on the locator shape: s3://bucket/key goes to S3,
// http(s) URLs go to Remote, anything else must be an existing local file.
// Either remote acquirer may be nil when it is not configured.
type Router struct {
	S3     ports.Acquirer
	Remote ports.Acquirer
}

func (r *Router) Acquire(ctx context.Context, locator, destDir string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", types.NewError(types.KindAcquisition, "locate", errors.New("empty locator"))
	}

	switch scheme(locator) {
	case "s3":
		return r.remote(ctx, r.S3, "s3", locator, destDir)
	case "http", "https":
		return r.remote(ctx, r.Remote, "download", locator, destDir)
	default:
		return local(locator)
	}
}

func (r *Router) remote(ctx context.Context, a ports.Acquirer, step, locator, destDir string) (string, error) {
	if a == nil {
		return "", types.NewError(types.KindAcquisition, step, errors.Errorf("no acquirer configured for %q", locator))
	}
	p, err := a.Acquire(ctx, locator, destDir)
	if err != nil {
		return "", types.NewError(types.KindAcquisition, step, err)
	}
	return p, nil
}

func local(p string) (string, error) {
	st, err := os.Stat(p)
	if err != nil {
		return "", types.NewError(types.KindAcquisition, "open", errors.Wrap(err, "stat input"))
	}
	if !st.Mode().IsRegular() {
		return "", types.NewError(types.KindAcquisition, "open", errors.Errorf("input is not a regular file: %s", p))
	}
	return p, nil
}

func scheme(locator string) string {
	i := strings.Index(locator, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(locator[:i])
}
