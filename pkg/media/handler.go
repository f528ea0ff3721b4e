package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"qqbridge/internal/constants"
	"qqbridge/internal/database"
	apperrors "qqbridge/internal/errors"
	"qqbridge/internal/models"
	"qqbridge/pkg/onebot"

	"github.com/sirupsen/logrus"
)

// Resolver turns a media segment's remote reference into a locally
// stored, publicly linkable asset.
type Resolver interface {
	Resolve(ctx context.Context, seg models.MessageSegment) (*models.MediaAsset, error)
}

type handler struct {
	dir           string
	publicBaseURL string
	db            *database.Database
	files         onebot.FileResolver
	httpClient    *http.Client
	logger        *logrus.Logger

	// per-ref locks give at-most-once download under concurrent
	// resolution of the same reference
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	seq atomic.Int64
	now func() time.Time
}

// NewHandler creates the resolver. dir is created if missing; the
// sqlite index is the cache's source of truth, so the cache survives
// restarts and is never evicted.
func NewHandler(dir, publicBaseURL string, db *database.Database, files onebot.FileResolver, logger *logrus.Logger) (Resolver, error) {
	if err := os.MkdirAll(dir, constants.MediaDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}

	return &handler{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		db:            db,
		files:         files,
		httpClient: &http.Client{
			Timeout: time.Duration(constants.DefaultDownloadTimeoutSec) * time.Second,
		},
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
	}, nil
}

func (h *handler) Resolve(ctx context.Context, seg models.MessageSegment) (*models.MediaAsset, error) {
	ref := seg.RemoteRef
	if ref == "" {
		return nil, apperrors.New(apperrors.ErrCodeMediaResolution, "empty remote reference")
	}

	lock := h.refLock(ref)
	lock.Lock()
	defer lock.Unlock()

	if asset, err := h.db.GetAsset(ctx, ref); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMediaResolution, "cache lookup failed")
	} else if asset != nil {
		h.logger.WithField("ref", ref).Debug("Media cache hit")
		return asset, nil
	}

	resolvedURL := ref
	if !isHTTPURL(ref) {
		u, err := h.files.ResolveFileURL(ctx, ref)
		if err != nil {
			return nil, err
		}
		resolvedURL = u
	}

	if !isHTTPURL(resolvedURL) {
		return nil, apperrors.New(apperrors.ErrCodeMediaResolution,
			fmt.Sprintf("unsupported media URL scheme: %s", resolvedURL))
	}

	asset, err := h.download(ctx, seg.Type, ref, resolvedURL)
	if err != nil {
		return nil, err
	}

	if err := h.db.SaveAsset(ctx, asset); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMediaResolution, "cache store failed")
	}

	h.logger.WithFields(logrus.Fields{
		"ref":  ref,
		"path": asset.LocalPath,
		"size": asset.Size,
	}).Info("Media downloaded")

	return asset, nil
}

func (h *handler) download(ctx context.Context, segType models.SegmentType, ref, mediaURL string) (*models.MediaAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMediaResolution, "failed to create request")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.WrapRetryable(err, apperrors.ErrCodeMediaResolution, "download failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.ErrCodeMediaResolution,
			fmt.Sprintf("download failed with status %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	filename := h.buildFilename(segType, extensionFor(contentType, mediaURL))
	path := filepath.Join(h.dir, filename)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, constants.MediaFilePerm)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMediaResolution, "failed to create media file")
	}

	size, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.Remove(path)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMediaResolution, "failed to stream media")
	}
	if closeErr != nil {
		os.Remove(path)
		return nil, apperrors.Wrap(closeErr, apperrors.ErrCodeMediaResolution, "failed to flush media file")
	}

	return &models.MediaAsset{
		RemoteRef:    ref,
		ResolvedURL:  mediaURL,
		LocalPath:    path,
		PublicLink:   h.publicBaseURL + "/media/" + filename,
		ContentType:  contentType,
		Size:         size,
		DownloadedAt: h.now(),
	}, nil
}

// buildFilename yields <type>_<unixts>_<seq>.<ext>; the sequence keeps
// names collision-free within one second.
func (h *handler) buildFilename(segType models.SegmentType, ext string) string {
	prefix := typePrefix(segType)
	seq := h.seq.Add(1)
	return fmt.Sprintf("%s_%d_%d%s", prefix, h.now().Unix(), seq, ext)
}

func typePrefix(segType models.SegmentType) string {
	switch segType {
	case models.SegmentImage:
		return "image"
	case models.SegmentVoice:
		return "voice"
	case models.SegmentVideo:
		return "video"
	case models.SegmentFile:
		return "file"
	}
	return "media"
}

func extensionFor(contentType, mediaURL string) string {
	if contentType != "" {
		base := contentType
		if idx := strings.IndexByte(base, ';'); idx >= 0 {
			base = base[:idx]
		}
		if exts, err := mime.ExtensionsByType(strings.TrimSpace(base)); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}

	if u, err := url.Parse(mediaURL); err == nil {
		if ext := filepath.Ext(u.Path); ext != "" {
			return ext
		}
	}

	return ".bin"
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (h *handler) refLock(ref string) *sync.Mutex {
	h.locksMu.Lock()
	defer h.locksMu.Unlock()
	lock, ok := h.locks[ref]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[ref] = lock
	}
	return lock
}
