// Command check-apis verifies the configured platform credentials and
// prints the authenticated identities and current rate-limit budgets.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/platform"
	"github.com/gitpulse/gitpulse/internal/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	store := storage.NewMemoryStore()
	platforms := []platform.Platform{
		platform.NewGitHub(cfg.GitHubToken, cfg.GitHubBaseURL, store),
		platform.NewGitLab(cfg.GitLabToken, cfg.GitLabBaseURL, store),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	failed := false
	for _, p := range platforms {
		if !p.Enabled() {
			fmt.Printf("%-8s no token configured\n", p.Name())
			continue
		}

		identity, err := p.Verify(ctx)
		if err != nil {
			fmt.Printf("%-8s FAILED: %v\n", p.Name(), err)
			failed = true
			continue
		}

		limit := p.RateLimit()
		fmt.Printf("%-8s ok: %s (%s), %d/%d requests remaining\n",
			p.Name(), identity.Login, identity.Name, limit.Remaining, limit.Limit)
	}

	if failed {
		os.Exit(1)
	}
}
