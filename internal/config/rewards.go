package config

import (
	"fmt"
	"os"
	"path/filepath"

	"shard-rewards-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type rewardEntry struct {
	Kind   string `yaml:"kind"`
	Shards string `yaml:"shards"`
}

type rewardsFile struct {
	DeveloperRewards []rewardEntry `yaml:"developer_rewards"`
}

// LoadRewardsFile reads a developer reward table from YAML, replacing the
// built-in defaults wholesale.
func LoadRewardsFile(path string) (map[models.ContributionKind]decimal.Decimal, error) {
	if !filepath.IsAbs(path) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	var file rewardsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}
	if len(file.DeveloperRewards) == 0 {
		return nil, fmt.Errorf("%s contains no developer rewards", path)
	}

	rewards := make(map[models.ContributionKind]decimal.Decimal, len(file.DeveloperRewards))
	for i, entry := range file.DeveloperRewards {
		if entry.Kind == "" {
			return nil, fmt.Errorf("reward at index %d missing kind", i)
		}
		shards, err := decimal.NewFromString(entry.Shards)
		if err != nil {
			return nil, fmt.Errorf("reward %s has invalid shards %q: %w", entry.Kind, entry.Shards, err)
		}
		rewards[models.ContributionKind(entry.Kind)] = shards
	}
	return rewards, nil
}
