package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/prsignal/internal/cache"
	"github.com/dshills/prsignal/internal/config"
	"github.com/dshills/prsignal/internal/github"
	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/output"
	"github.com/dshills/prsignal/internal/review"
)

var (
	flagGHOwner   string
	flagGHRepo    string
	flagGHComment bool
	flagGHNoCache bool
)

var githubCmd = &cobra.Command{
	Use:   "github <pr>",
	Short: "Analyse a GitHub pull request",
	Long: "Fetch a pull request's changed files and diff from GitHub, analyse them, and optionally " +
		"create or update a single summary comment on the PR. <pr> is a number, owner/repo#number or a PR URL.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := github.ParsePRRef(args[0])
		if err != nil {
			fail(cmd, ExitUsageError, err)
			return nil
		}

		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		// Flags win over the reference; git remote is the fallback.
		owner, repo := ref.Owner, ref.Repo
		if flagGHOwner != "" {
			owner = flagGHOwner
		}
		if flagGHRepo != "" {
			repo = flagGHRepo
		}
		if owner == "" || repo == "" {
			detected, detectedRepo, err := github.DetectRepo(ctx)
			if err != nil {
				fail(cmd, ExitRuntimeError, fmt.Errorf("%w\nUse --owner and --repo flags to specify manually", err))
				return nil
			}
			if owner == "" {
				owner = detected
			}
			if repo == "" {
				repo = detectedRepo
			}
		}

		client, err := github.NewClient(ctx, cfg.GitHub.Token, cfg.GitHub.APIURL, logger)
		if err != nil {
			fail(cmd, ghExitCode(err), err)
			return nil
		}

		start := time.Now()
		logger.Info("fetching pull request", "owner", owner, "repo", repo, "number", ref.Number)

		pr, err := client.GetPR(ctx, owner, repo, ref.Number)
		if err != nil {
			fail(cmd, ghExitCode(err), err)
			return nil
		}
		snap, err := fetchSnapshot(ctx, client, owner, repo, pr, cfg)
		if err != nil {
			fail(cmd, ghExitCode(err), err)
			return nil
		}

		in := review.Input{
			Files: snap.Files,
			Diff:  snap.Diff,
			Mode:  "github",
			Range: pr.BaseRef + "..." + pr.HeadRef,
			Repo: review.RepoInfo{
				Head:   pr.HeadSHA,
				Branch: pr.HeadRef,
				Owner:  owner,
				Name:   repo,
				PR:     pr.Number,
			},
			GatherMs: time.Since(start).Milliseconds(),
		}

		report := runAnalysis(cmd, in, cfg)
		if report == nil || !flagGHComment {
			return nil
		}

		body, err := output.Comment(report, cfg.Comment.Marker)
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}
		url, created, err := client.UpsertComment(ctx, owner, repo, ref.Number, cfg.Comment.Marker, body)
		if err != nil {
			fail(cmd, ghExitCode(err), fmt.Errorf("posting comment: %w", err))
			return nil
		}
		logger.Info("pull request comment updated", "url", url, "created", created)
		verb := "Updated"
		if created {
			verb = "Created"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s comment on PR #%d: %s\n", verb, ref.Number, url)
		return nil
	},
}

// prSnapshot is the cached content of a pull request at one head commit.
type prSnapshot struct {
	Files []model.ChangedFile `json:"files"`
	Diff  string              `json:"diff"`
}

// fetchSnapshot returns the pull request's files and diff, from the cache when
// the head commit was seen before. Cache failures only cost a refetch.
func fetchSnapshot(ctx context.Context, client *github.Client, owner, repo string, pr github.PRInfo, cfg config.Config) (prSnapshot, error) {
	c, err := cache.New(cfg.Cache.Enabled && !flagGHNoCache, cfg.Cache.Dir, cfg.Cache.TTLSeconds)
	if err != nil {
		logger.Warn("cache unavailable", "error", err)
		c, _ = cache.New(false, "", 0)
	}
	key := cache.PRKey(client.Host(), owner, repo, pr.Number, pr.HeadSHA)

	var snap prSnapshot
	if pr.HeadSHA != "" && c.Get(key, &snap) {
		logger.Info("using cached pull request snapshot", "head", pr.HeadSHA, "files", len(snap.Files))
		return snap, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Files, err = client.GetPRFiles(gctx, owner, repo, pr.Number)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Diff, err = client.GetPRDiff(gctx, owner, repo, pr.Number)
		return err
	})
	if err := g.Wait(); err != nil {
		return prSnapshot{}, err
	}

	if pr.HeadSHA != "" {
		if err := c.Put(key, snap); err != nil {
			logger.Warn("caching pull request snapshot failed", "error", err)
		}
	}
	return snap, nil
}

// ghExitCode maps a GitHub error to an exit code.
func ghExitCode(err error) int {
	switch {
	case github.IsAuthError(err):
		return ExitAuthError
	case errors.Is(err, github.ErrBadRef):
		return ExitUsageError
	default:
		return ExitRuntimeError
	}
}

func init() {
	addAnalysisFlags(githubCmd)
	githubCmd.Flags().StringVar(&flagGHOwner, "owner", "", "GitHub repository owner (auto-detected if omitted)")
	githubCmd.Flags().StringVar(&flagGHRepo, "repo", "", "GitHub repository name (auto-detected if omitted)")
	githubCmd.Flags().BoolVar(&flagGHComment, "comment", false, "Create or update the prsignal comment on the PR")
	githubCmd.Flags().BoolVar(&flagGHNoCache, "no-cache", false, "Always fetch files and diff from GitHub")
}
