package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/c360studio/krawl/ledger"
	"github.com/c360studio/krawl/manifest"
	"github.com/c360studio/krawl/metrics"
	"github.com/c360studio/krawl/source/github"
	"github.com/c360studio/krawl/source/wikifactory"
	"github.com/c360studio/krawl/storage"
)

// GitHubSource finds and downloads manifests.
type GitHubSource interface {
	Search(ctx context.Context, format manifest.Format, fn func(github.Hit) error) error
	Download(ctx context.Context, hit github.Hit) (*github.File, error)
	LatestCommit(ctx context.Context, repoName string) (string, error)
}

// WikifactorySource lists project nodes.
type WikifactorySource interface {
	Crawl(ctx context.Context, fn func(node map[string]any) error) (int, error)
}

// CrawlGitHub searches every format and processes each new hit on the
// worker pool. Hits already recorded in the ledger are skipped.
func (p *Pipeline) CrawlGitHub(ctx context.Context, src GitHubSource, db *ledger.Ledger, formats []manifest.Format) (Summary, error) {
	w := p.newPool(ctx, SourceGitHub)
	var searchErr error
	for _, format := range formats {
		err := src.Search(ctx, format, func(hit github.Hit) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			w.submit(hit.FullName(), func(ctx context.Context) error {
				return p.processHit(ctx, src, db, format, hit)
			})
			return nil
		})
		if err != nil {
			w.logger.Error("GitHub search failed", "format", format, "error", err)
			searchErr = errors.Join(searchErr, fmt.Errorf("search %s: %w", format, err))
		}
	}
	s, err := w.wait()
	if err != nil {
		return s, err
	}
	return s, searchErr
}

func (p *Pipeline) processHit(ctx context.Context, src GitHubSource, db *ledger.Ledger, format manifest.Format, hit github.Hit) error {
	repo, err := db.CreateRepo(ctx, ledger.Repo{
		Hoster:   github.Hoster,
		URL:      hit.Repository.HTMLURL,
		FullName: hit.Repository.FullName,
	})
	if err != nil {
		return err
	}
	if _, err := db.GetManifest(ctx, repo.ID, hit.SHA); err == nil {
		metrics.RecordManifest(SourceGitHub, metrics.StatusSkipped)
		return ErrSkipped
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return err
	}

	record := ledger.Manifest{
		RepoID:       repo.ID,
		OriginalName: hit.Name,
		SHA:          hit.SHA,
		FileFormat:   string(format),
	}
	path, err := p.fetchHit(ctx, src, format, hit, &record)
	if record.DownloadSuccess || err == nil {
		record.FilePath = path
		if _, insErr := db.InsertManifest(ctx, record); insErr != nil {
			err = errors.Join(err, insErr)
		}
	}
	if err != nil {
		metrics.RecordManifest(SourceGitHub, metrics.StatusFailed)
		return fmt.Errorf("%s: %w", hit.FullName(), err)
	}
	metrics.RecordManifest(SourceGitHub, metrics.StatusOK)
	return nil
}

// fetchHit downloads, stores and normalizes one hit. It returns the path of
// the raw manifest once stored.
func (p *Pipeline) fetchHit(ctx context.Context, src GitHubSource, format manifest.Format, hit github.Hit, record *ledger.Manifest) (string, error) {
	file, err := src.Download(ctx, hit)
	if err != nil {
		return "", err
	}
	record.DownloadURL = file.DownloadURL
	record.DownloadSuccess = true

	doc, parseErr := manifest.Parse(file.Data, format)
	doc = manifest.SetVersion(doc)
	path, err := p.deps.Layout.SaveRaw(hit.FullName(), manifest.VersionOf(doc), format, file.Data)
	if err != nil {
		return "", err
	}
	if parseErr != nil {
		return path, parseErr
	}

	m, err := p.normalizeOKH(doc)
	if err != nil {
		return path, err
	}
	m.ManifestFile = file.DownloadURL
	m.Timestamp = file.LastModified

	if manifest.IsGitHub(m.Repo) {
		if name, ok := manifest.RepoName(m.Repo); ok {
			sha, err := src.LatestCommit(ctx, name)
			if err != nil {
				p.logger.Warn("No commit to pin permalinks to", "repo", m.Repo, "error", err)
			} else if err := p.deps.Resolver.ResolveAll(ctx, m, sha); err != nil {
				return path, err
			}
		}
	}

	if _, err := storage.SaveNormalized(filepath.Dir(path), m); err != nil {
		return path, err
	}
	return path, nil
}

// FetchWikifactory saves every project node as record.json. Nodes whose
// version cannot be derived are skipped.
func (p *Pipeline) FetchWikifactory(ctx context.Context, src WikifactorySource) (Summary, error) {
	s := Summary{}
	_, err := src.Crawl(ctx, func(node map[string]any) error {
		if err := p.saveRecord(node); err != nil {
			s.Failed++
			metrics.RecordManifest(SourceWikifactory, metrics.StatusFailed)
			p.logger.Warn("Skipping Wikifactory project", "id", node["id"], "error", err)
			return nil
		}
		s.Processed++
		return nil
	})
	p.logger.Info("Wikifactory fetch finished", "saved", s.Processed, "failed", s.Failed)
	return s, err
}

func (p *Pipeline) saveRecord(raw map[string]any) error {
	node, err := wikifactory.DecodeNode(raw)
	if err != nil {
		return err
	}
	version, err := manifest.WikifactoryVersion(node.LastActivityAt)
	if err != nil {
		return err
	}
	name := node.Slug
	if name == "" {
		name = node.Name
	}
	_, err = p.deps.Layout.SaveRecord(node.SpaceSlug(), name, version, raw)
	return err
}

// ConvertRecord normalizes a saved record.json into normalized.toml next
// to it.
func (p *Pipeline) ConvertRecord(_ context.Context, path string) (string, error) {
	node, err := wikifactory.LoadRecord(path)
	if err != nil {
		return "", err
	}
	m, err := p.deps.Normalizer.NormalizeWikifactory(node)
	if err == nil {
		err = manifest.Validate(m)
	}
	if err != nil {
		metrics.RecordManifest(SourceWikifactory, metrics.StatusFailed)
		return "", err
	}
	out, err := storage.SaveNormalized(filepath.Dir(path), m)
	if err != nil {
		return "", err
	}
	metrics.RecordManifest(SourceWikifactory, metrics.StatusOK)
	return out, nil
}
