package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/creativeprojects/go-selfupdate"
)

// Release is a published build of the station.
type Release struct {
	Version     string
	Notes       string
	URL         string
	PublishedAt time.Time
	AssetSize   int
	// Newer reports whether the release is newer than the running build.
	Newer bool

	raw *selfupdate.Release
}

// releaseSource finds and installs releases.
type releaseSource interface {
	Latest(ctx context.Context, current string) (*Release, bool, error)
	Install(ctx context.Context, rel *Release, execPath string) error
}

// githubReleases reads releases of one GitHub repository.
type githubReleases struct {
	repo    selfupdate.Repository
	updater *selfupdate.Updater
}

func newGitHubReleases(slug string, prerelease bool) (*githubReleases, error) {
	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}
	return &githubReleases{repo: selfupdate.ParseSlug(slug), updater: updater}, nil
}

// Latest returns the newest release for this platform. A current version of
// "dev" treats every release as newer.
func (g *githubReleases) Latest(ctx context.Context, current string) (*Release, bool, error) {
	rel, found, err := g.updater.DetectLatest(ctx, g.repo)
	if err != nil || !found {
		return nil, found, err
	}
	return &Release{
		Version:     rel.Version(),
		Notes:       rel.ReleaseNotes,
		URL:         rel.URL,
		PublishedAt: rel.PublishedAt,
		AssetSize:   rel.AssetByteSize,
		Newer:       current == "dev" || rel.GreaterThan(current),
		raw:         rel,
	}, true, nil
}

// Install downloads rel and replaces the binary at execPath.
func (g *githubReleases) Install(ctx context.Context, rel *Release, execPath string) error {
	if rel.raw == nil {
		return fmt.Errorf("release %s was not detected by this source", rel.Version)
	}
	return g.updater.UpdateTo(ctx, rel.raw, execPath)
}
