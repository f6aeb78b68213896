package pano

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	_ "github.com/ftrvxmtrx/tga"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// TextureSource is either an identifier (file path or URL) resolved through
// a Loader, or an already-decoded image used as is.
type TextureSource struct {
	Src   string
	Image image.Image
}

// Source returns an identifier texture source.
func Source(src string) TextureSource { return TextureSource{Src: src} }

// Decoded returns a texture source for an already-decoded image.
func Decoded(img image.Image) TextureSource { return TextureSource{Image: img} }

// Sources converts identifiers to texture sources.
func Sources(srcs ...string) []TextureSource {
	out := make([]TextureSource, len(srcs))
	for i, s := range srcs {
		out[i] = Source(s)
	}
	return out
}

// sourceIDs returns the identifiers of the sources that go through the cache.
func sourceIDs(sources []TextureSource) []string {
	var ids []string
	for _, s := range sources {
		if s.Image == nil && s.Src != "" {
			ids = append(ids, s.Src)
		}
	}
	return ids
}

// Fetcher opens the raw bytes behind a texture identifier.
type Fetcher interface {
	Fetch(ctx context.Context, src string) (io.ReadCloser, error)
}

// FileFetcher reads identifiers as paths in FS. A nil FS reads the
// operating system's file system relative to the working directory.
type FileFetcher struct {
	FS fs.FS
}

// Fetch implements Fetcher.
func (f FileFetcher) Fetch(ctx context.Context, src string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.FS == nil {
		return os.Open(src)
	}
	return f.FS.Open(strings.TrimPrefix(src, "/"))
}

// HTTPFetcher downloads identifiers as URLs.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch implements Fetcher.
func (f HTTPFetcher) Fetch(ctx context.Context, src string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", src, resp.Status)
	}
	return resp.Body, nil
}

// AutoFetcher dispatches http and https URLs to HTTP and everything else to
// File.
type AutoFetcher struct {
	File FileFetcher
	HTTP HTTPFetcher
}

// Fetch implements Fetcher.
func (f AutoFetcher) Fetch(ctx context.Context, src string) (io.ReadCloser, error) {
	if u, err := url.Parse(src); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.HTTP.Fetch(ctx, src)
	}
	return f.File.Fetch(ctx, src)
}

// Decode decodes a texture in any registered format: JPEG, PNG, WebP, BMP or
// TGA.
func Decode(r io.Reader) (image.Image, string, error) {
	return image.Decode(r)
}

// LoaderOption configures NewLoader.
type LoaderOption func(*Loader)

// WithLoaderLogger sets the logger for prefetch failures.
func WithLoaderLogger(l zerolog.Logger) LoaderOption {
	return func(ld *Loader) { ld.logger = l }
}

// Loader is the image cache shared by every scene of a viewer. Each
// identifier is fetched and decoded at most once; concurrent requests for
// the same identifier share one load. Entries are never evicted.
type Loader struct {
	fetcher Fetcher
	logger  zerolog.Logger

	mu    sync.RWMutex
	cache map[string]image.Image

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewLoader creates a loader reading through fetcher.
func NewLoader(fetcher Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher: fetcher,
		logger:  zerolog.Nop(),
		cache:   make(map[string]image.Image),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cached returns the cached image for src, if any.
func (l *Loader) Cached(src string) (image.Image, bool) {
	l.mu.RLock()
	img, ok := l.cache[src]
	l.mu.RUnlock()
	return img, ok
}

// Len returns the number of cached images.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

// Load returns the image for src, fetching and decoding it if absent. A
// cancelled ctx ends only this caller's wait: the shared load keeps running
// for the other callers and the cache.
func (l *Loader) Load(ctx context.Context, src string) (image.Image, error) {
	if img, ok := l.Cached(src); ok {
		return img, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(src, func() (any, error) {
		if img, ok := l.Cached(src); ok {
			return img, nil
		}
		img, err := l.fetch(shared, src)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		if prev, ok := l.cache[src]; ok {
			img = prev
		} else {
			l.cache[src] = img
		}
		l.mu.Unlock()
		return img, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load %s: %w: %w", src, ErrTextureLoad, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	}
}

func (l *Loader) fetch(ctx context.Context, src string) (image.Image, error) {
	rc, err := l.fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w: %w", src, ErrTextureLoad, err)
	}
	defer rc.Close()
	img, _, err := Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", src, ErrTextureLoad, err)
	}
	return img, nil
}

// Resolve turns a texture set into images, in order. Identifiers load in
// parallel through the cache; decoded sources pass through.
func (l *Loader) Resolve(ctx context.Context, sources []TextureSource) ([]image.Image, error) {
	out := make([]image.Image, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range sources {
		if s.Image != nil {
			out[i] = s.Image
			continue
		}
		g.Go(func() error {
			img, err := l.Load(ctx, s.Src)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Prefetch starts loading srcs in the background and returns at once.
// Requests are issued in order. Failures are logged; Wait blocks until every
// prefetch has ended.
func (l *Loader) Prefetch(ctx context.Context, srcs []string) {
	for _, src := range srcs {
		if _, ok := l.Cached(src); ok {
			continue
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			if _, err := l.Load(ctx, src); err != nil {
				l.logger.Warn().Err(err).Str("src", src).Msg("prefetch")
			}
		}()
	}
}

// Wait blocks until all prefetches have ended.
func (l *Loader) Wait() {
	l.wg.Wait()
}
