// Package hub downloads model files (tokenizer models, mostly) from HuggingFace repositories, caching
// them locally.
//
// Example:
//
//	repo := hub.New("albert/albert-base-v2").WithAuth(hfAuthToken)
//	modelPath, err := repo.DownloadFile("spiece.model")
//	if err != nil {
//		panic(err)
//	}
package hub

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// DefaultEndpoint is the HuggingFace server.
	DefaultEndpoint = "https://huggingface.co"

	// DefaultRevision is the branch used if none is set.
	DefaultRevision = "main"

	// DefaultDirCreationPerm is used when creating cache directories.
	DefaultDirCreationPerm = 0755
)

// DefaultCacheDir returns the directory where downloaded files are stored: $HF_HOME/hub if HF_HOME is set,
// otherwise <user cache dir>/huggingface/hub.
func DefaultCacheDir() string {
	if hfHome := os.Getenv("HF_HOME"); hfHome != "" {
		return filepath.Join(hfHome, "hub")
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "huggingface", "hub")
}

// Repo is a HuggingFace repository from which files can be downloaded.
// Create it with New, and configure it with the With* methods.
type Repo struct {
	ID       string
	Revision string
	Endpoint string
	CacheDir string

	authToken string
}

// New creates a Repo for the given repository id (e.g. "albert/albert-base-v2"), using the
// default endpoint, revision and cache directory.
//
// The auth token is read from the HF_TOKEN environment variable, if set.
func New(id string) *Repo {
	return &Repo{
		ID:        id,
		Revision:  DefaultRevision,
		Endpoint:  DefaultEndpoint,
		CacheDir:  DefaultCacheDir(),
		authToken: os.Getenv("HF_TOKEN"),
	}
}

// WithAuth sets the token used to access private or gated repositories.
func (r *Repo) WithAuth(token string) *Repo {
	r.authToken = token
	return r
}

// WithRevision sets the branch, tag or commit to download from.
func (r *Repo) WithRevision(revision string) *Repo {
	r.Revision = revision
	return r
}

// WithCacheDir sets the local cache directory.
func (r *Repo) WithCacheDir(dir string) *Repo {
	r.CacheDir = dir
	return r
}

// WithEndpoint sets the server URL, for mirrors.
func (r *Repo) WithEndpoint(endpoint string) *Repo {
	r.Endpoint = strings.TrimSuffix(endpoint, "/")
	return r
}

// String implements fmt.Stringer.
func (r *Repo) String() string {
	return fmt.Sprintf("hub.Repo(%s@%s)", r.ID, r.Revision)
}

// FileURL returns the URL of fileName in the repository.
func (r *Repo) FileURL(fileName string) string {
	return r.Endpoint + "/" + path.Join(r.ID, "resolve", url.PathEscape(r.Revision), fileName)
}

// LocalPath returns where fileName is stored in the cache.
func (r *Repo) LocalPath(fileName string) string {
	return filepath.Join(r.CacheDir, "models--"+strings.ReplaceAll(r.ID, "/", "--"), r.Revision, filepath.FromSlash(fileName))
}

// DownloadFile downloads fileName, unless it's already cached, and returns its local path.
func (r *Repo) DownloadFile(fileName string) (string, error) {
	return r.DownloadFileContext(context.Background(), fileName)
}

// DownloadFileContext is like DownloadFile, but can be cancelled with ctx.
func (r *Repo) DownloadFileContext(ctx context.Context, fileName string) (string, error) {
	filePath := r.LocalPath(fileName)
	if err := r.lockedDownload(ctx, r.FileURL(fileName), filePath, false); err != nil {
		return "", err
	}
	return filePath, nil
}
