package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"shard-rewards-go/internal/models"

	"github.com/shopspring/decimal"
)

// snapshotDayFormat keys snapshot entries by UTC calendar day.
const snapshotDayFormat = "2006-01-02"

// SnapshotPosition is one vault holding in a snapshot file. Either UsdValue is
// set directly, or TokenAmount is priced through a Pricer at load time.
type SnapshotPosition struct {
	VaultAddress string          `json:"vault_address"`
	Chain        string          `json:"chain"`
	Symbol       string          `json:"symbol"`
	UsdValue     decimal.Decimal `json:"usd_value"`
	TokenAmount  decimal.Decimal `json:"token_amount"`
}

// SnapshotContribution is one developer event in a snapshot file.
type SnapshotContribution struct {
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
}

// SnapshotDay holds one wallet's feed inputs for one day.
type SnapshotDay struct {
	Positions     []SnapshotPosition     `json:"positions"`
	SocialPoints  decimal.Decimal        `json:"social_points"`
	Contributions []SnapshotContribution `json:"contributions"`
}

// Snapshot is the on-disk shape: wallet -> day -> inputs.
type Snapshot struct {
	SeasonId int64                             `json:"season_id"`
	Wallets  map[string]map[string]SnapshotDay `json:"wallets"`
}

// SnapshotFeed serves all three accrual feeds from a point-in-time snapshot
// file. Used by the batch accrual binary, where the upstream indexers export
// one file per day. Token amounts without a USD value are priced through the
// optional pricer.
type SnapshotFeed struct {
	snapshot Snapshot
	pricer   Pricer
}

func LoadSnapshot(path string, pricer Pricer) (*SnapshotFeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read snapshot file %s: %w", path, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unable to parse snapshot file %s: %w", path, err)
	}

	// Wallet keys compare lowercase everywhere else in the system.
	normalized := make(map[string]map[string]SnapshotDay, len(snapshot.Wallets))
	for wallet, days := range snapshot.Wallets {
		normalized[strings.ToLower(wallet)] = days
	}
	snapshot.Wallets = normalized

	return &SnapshotFeed{snapshot: snapshot, pricer: pricer}, nil
}

// SeasonId returns the season the snapshot was exported for.
func (f *SnapshotFeed) SeasonId() int64 {
	return f.snapshot.SeasonId
}

// Wallets lists every wallet present in the snapshot.
func (f *SnapshotFeed) Wallets() []string {
	wallets := make([]string, 0, len(f.snapshot.Wallets))
	for wallet := range f.snapshot.Wallets {
		wallets = append(wallets, wallet)
	}
	return wallets
}

func (f *SnapshotFeed) day(wallet string, date time.Time) (SnapshotDay, bool) {
	days, ok := f.snapshot.Wallets[strings.ToLower(wallet)]
	if !ok {
		return SnapshotDay{}, false
	}
	entry, ok := days[date.UTC().Format(snapshotDayFormat)]
	return entry, ok
}

func (f *SnapshotFeed) Positions(ctx context.Context, wallet string, seasonId int64, date time.Time) ([]models.VaultPosition, error) {
	entry, ok := f.day(wallet, date)
	if !ok {
		return nil, nil
	}

	positions := make([]models.VaultPosition, 0, len(entry.Positions))
	for _, p := range entry.Positions {
		usd := p.UsdValue
		if usd.IsZero() && p.TokenAmount.IsPositive() {
			if f.pricer == nil {
				return nil, fmt.Errorf("position in vault %s has a token amount but no pricer is configured", p.VaultAddress)
			}
			price, err := f.pricer.UsdPrice(ctx, p.Symbol)
			if err != nil {
				return nil, fmt.Errorf("unable to price %s: %w", p.Symbol, err)
			}
			usd = p.TokenAmount.Mul(price)
		}
		positions = append(positions, models.VaultPosition{
			VaultAddress: strings.ToLower(p.VaultAddress),
			Chain:        models.Chain(p.Chain),
			Symbol:       p.Symbol,
			UsdValue:     usd,
		})
	}
	return positions, nil
}

func (f *SnapshotFeed) Points(ctx context.Context, wallet string, seasonId int64, date time.Time) (decimal.Decimal, error) {
	entry, ok := f.day(wallet, date)
	if !ok {
		return decimal.Zero, nil
	}
	return entry.SocialPoints, nil
}

func (f *SnapshotFeed) Contributions(ctx context.Context, wallet string, seasonId int64, date time.Time) ([]models.ContributionEvent, error) {
	entry, ok := f.day(wallet, date)
	if !ok {
		return nil, nil
	}

	events := make([]models.ContributionEvent, 0, len(entry.Contributions))
	for _, c := range entry.Contributions {
		events = append(events, models.ContributionEvent{
			Kind:       models.ContributionKind(c.Kind),
			Reference:  c.Reference,
			OccurredAt: date.UTC(),
		})
	}
	return events, nil
}
