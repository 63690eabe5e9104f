package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/FocuswithJustin/JuniperHelps/core/errors"
	"github.com/FocuswithJustin/JuniperHelps/internal/dcs"
	"github.com/FocuswithJustin/JuniperHelps/internal/fallback"
	"github.com/FocuswithJustin/JuniperHelps/internal/logging"
	"github.com/FocuswithJustin/JuniperHelps/internal/retry"
)

// Transport selects the endpoint used to download files.
type Transport string

const (
	// TransportContents uses the JSON contents endpoint.
	TransportContents Transport = "contents"
	// TransportRaw downloads raw files.
	TransportRaw Transport = "raw"
)

// ContentClient is the part of the content service the fetcher needs.
type ContentClient interface {
	GetContents(ctx context.Context, fullName, path, ref string) ([]byte, error)
	GetRaw(ctx context.Context, fullName, path, ref string) ([]byte, error)
	Exists(ctx context.Context, fullName, path, ref string) (bool, error)
}

// Fetcher downloads repository files, trying each of the repository's refs
// in order with an independent retry budget per ref.
type Fetcher struct {
	client    ContentClient
	transport Transport
	retry     retry.Config
	logger    *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithTransport selects the download endpoint.
func WithTransport(t Transport) FetcherOption {
	return func(f *Fetcher) {
		if t == TransportContents || t == TransportRaw {
			f.transport = t
		}
	}
}

// WithRetry sets the per-ref retry policy.
func WithRetry(cfg retry.Config) FetcherOption {
	return func(f *Fetcher) {
		f.retry = cfg
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher using the contents endpoint by default.
func NewFetcher(client ContentClient, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    client,
		transport: TransportContents,
		retry:     retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.Component(f.logger, "fetcher")
	return f
}

// Fetch returns the content of path in repo. Refs are tried in the order
// given by repo.Refs; the first successful response wins. When every ref
// fails the error is an *ExhaustedRetriesError listing each ref's failure.
// It also matches ErrNotFound when every ref answered not found.
func (f *Fetcher) Fetch(ctx context.Context, repo dcs.Repository, path string) (string, error) {
	data, _, err := fallback.First(ctx, "ref", repo.Refs(),
		func(ctx context.Context, ref string) ([]byte, error) {
			return retry.DoWithResult(ctx, f.retryFor(repo, path, ref), func(ctx context.Context) ([]byte, error) {
				if f.transport == TransportRaw {
					return f.client.GetRaw(ctx, repo.FullName, path, ref)
				}
				return f.client.GetContents(ctx, repo.FullName, path, ref)
			})
		},
		fallback.WithFailureHook(func(ref string, err error) {
			logging.FetchAttempt(f.logger, repo.FullName, path, ref, 0, err, "outcome", "ref_failed")
		}))
	if err != nil {
		return "", f.exhausted(ctx, repo, path, err)
	}
	return string(data), nil
}

// Exists reports whether path is present at any of repo's refs.
func (f *Fetcher) Exists(ctx context.Context, repo dcs.Repository, path string) (bool, error) {
	_, _, err := fallback.First(ctx, "ref", repo.Refs(),
		func(ctx context.Context, ref string) (bool, error) {
			ok, err := retry.DoWithResult(ctx, f.retryFor(repo, path, ref), func(ctx context.Context) (bool, error) {
				return f.client.Exists(ctx, repo.FullName, path, ref)
			})
			if err != nil {
				return false, err
			}
			if !ok {
				return false, errors.NewNotFound("file", path)
			}
			return true, nil
		})
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, f.exhausted(ctx, repo, path, err)
	}
	return true, nil
}

func (f *Fetcher) retryFor(repo dcs.Repository, path, ref string) retry.Config {
	cfg := f.retry
	onRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.FetchAttempt(f.logger, repo.FullName, path, ref, attempt, err, "backoff_ms", delay.Milliseconds())
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	return cfg
}

func (f *Fetcher) exhausted(ctx context.Context, repo dcs.Repository, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	failures := fallback.Failures(err)
	if failures == nil {
		return err
	}
	return &errors.ExhaustedRetriesError{Resource: repo.FullName, Path: path, Failures: failures}
}
