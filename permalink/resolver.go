// Package permalink pins the file references of a manifest to a commit. Every
// resolved reference gets a details sidecar recording the original value, the
// verified permanent URL (when reachable), when it was last seen and its file
// format. The visible field value is never changed.
package permalink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/metrics"
	"github.com/c360studio/krawl/transport"
)

// DefaultRawHost serves repository files by commit.
const DefaultRawHost = "https://raw.githubusercontent.com"

// ErrUnreachable is wrapped by UnreachableError.
var ErrUnreachable = errors.New("permalink unreachable")

// UnreachableError reports a pinned URL that did not answer. The reference
// still gets best-effort details without permaURL.
type UnreachableError struct {
	Field string
	URL   string
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Field, e.URL, ErrUnreachable)
}

func (e *UnreachableError) Unwrap() error {
	return ErrUnreachable
}

// Prober issues lightweight existence checks.
type Prober interface {
	Head(ctx context.Context, rawURL string) (*transport.Response, error)
}

// Resolver builds and verifies commit-pinned URLs.
type Resolver struct {
	prober  Prober
	rawHost string
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRawHost overrides the raw content host.
func WithRawHost(host string) Option {
	return func(r *Resolver) {
		r.rawHost = host
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver probing through p.
func NewResolver(p Prober, opts ...Option) *Resolver {
	r := &Resolver{
		prober:  p,
		rawHost: DefaultRawHost,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URL joins the raw host, repository, sha and path, trimming slashes
// between segments.
func (r *Resolver) URL(repoName, sha, path string) string {
	segments := []string{r.rawHost, repoName, sha, path}
	for i, s := range segments {
		segments[i] = strings.Trim(s, "/")
	}
	return strings.Join(segments, "/")
}

// Resolve writes the details sidecar of a module file field. It is a no-op
// when the field is empty or the repository has no owner/project name. The
// returned error is an *UnreachableError when the pinned URL did not answer;
// the details are written regardless.
func (r *Resolver) Resolve(ctx context.Context, m *manifest.Manifest, field, sha string) error {
	ref := m.FileRef(field)
	repoName, ok := manifest.RepoName(m.Repo)
	if ref == "" || !ok {
		return nil
	}
	details, err := r.resolve(ctx, field, repoName, ref, sha)
	m.SetDetails(field, details)
	return err
}

// ResolvePart writes the details of a part's source and rewrites relative
// export entries to their pinned form. Exports are not probed.
func (r *Resolver) ResolvePart(ctx context.Context, m *manifest.Manifest, p *manifest.Part, sha string) error {
	repoName, ok := manifest.RepoName(m.Repo)
	if !ok {
		return nil
	}

	var err error
	if p.Source != "" {
		var details manifest.FileDetails
		details, err = r.resolve(ctx, manifest.PartFieldSource, repoName, p.Source, sha)
		p.SetDetails(manifest.PartFieldSource, details)
	}

	for i, export := range p.Export {
		if !isAbsolute(export) {
			p.Export[i] = r.URL(repoName, sha, export)
		}
	}
	return err
}

// ResolveAll resolves every module file field and every part. Unreachable
// references are logged and do not stop resolution; only cancellation does.
func (r *Resolver) ResolveAll(ctx context.Context, m *manifest.Manifest, sha string) error {
	for _, field := range manifest.FileFields {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logUnreachable(m, r.Resolve(ctx, m, field, sha))
	}
	for i := range m.Parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.logUnreachable(m, r.ResolvePart(ctx, m, &m.Parts[i], sha))
	}
	return nil
}

func (r *Resolver) logUnreachable(m *manifest.Manifest, err error) {
	if err == nil {
		return
	}
	r.logger.Debug("Permalink unreachable, keeping original reference", "repo", m.Repo, "error", err)
}

func (r *Resolver) resolve(ctx context.Context, field, repoName, ref, sha string) (manifest.FileDetails, error) {
	details := manifest.FileDetails{
		OriginalURL: ref,
		FileFormat:  FileFormat(ref),
	}
	stamp := r.now().UTC().Format(time.RFC3339)

	if !isAbsolute(ref) {
		perma := r.URL(repoName, sha, ref)
		if r.reachable(ctx, perma) {
			details.PermaURL = perma
			details.LastSeen = stamp
			details.LastRequested = stamp
			return details, nil
		}
		details.LastSeen = stamp
		return details, &UnreachableError{Field: field, URL: perma}
	}

	r.reachable(ctx, ref)
	details.LastSeen = stamp
	return details, nil
}

func (r *Resolver) reachable(ctx context.Context, rawURL string) bool {
	resp, err := r.prober.Head(ctx, rawURL)
	ok := err == nil && resp.OK()
	metrics.RecordProbe(ok)
	return ok
}

// FileFormat returns the lower-cased extension of the final path segment, or
// "" when the segment has no dot.
func FileFormat(ref string) string {
	path := ref
	if u, err := url.Parse(ref); err == nil {
		path = u.Path
	}
	name := path[strings.LastIndex(path, "/")+1:]
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToLower(parts[len(parts)-1])
}

func isAbsolute(ref string) bool {
	return strings.HasPrefix(ref, "http")
}
