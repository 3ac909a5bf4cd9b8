package marketdata

import (
	"context"
	"encoding/json"
	"os"

	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/models"
)

// Snapshot is a serialized market snapshot: everything one scan cycle
// needs, keyed by symbol. Replaying the same snapshot reproduces the same
// ranked output.
type Snapshot struct {
	Universe     []string                           `json:"universe"`
	Indices      map[string][]float64               `json:"indices"`
	Fundamentals map[string]models.Fundamentals     `json:"fundamentals"`
	Technicals   map[string]models.Technicals       `json:"technicals"`
	Chains       map[string][]models.OptionContract `json:"chains"`
}

// SnapshotProvider serves a Snapshot through the Provider contract. Used
// for offline scans and deterministic tests; symbols absent from the
// snapshot fail as not found.
type SnapshotProvider struct {
	snap Snapshot
}

// NewSnapshotProvider creates a provider over an in-memory snapshot.
func NewSnapshotProvider(snap Snapshot) *SnapshotProvider {
	return &SnapshotProvider{snap: snap}
}

// LoadSnapshot reads a snapshot from a JSON file.
func LoadSnapshot(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, scanerrors.Wrap(err, "reading snapshot")
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, scanerrors.Wrap(err, "parsing snapshot")
	}
	return snap, nil
}

// Universe returns the snapshot's symbol list.
func (p *SnapshotProvider) Universe() []string {
	return p.snap.Universe
}

// FetchFundamentals implements Provider.
func (p *SnapshotProvider) FetchFundamentals(_ context.Context, symbol string) (models.Fundamentals, error) {
	f, ok := p.snap.Fundamentals[symbol]
	if !ok {
		return models.Fundamentals{}, scanerrors.Wrapf(scanerrors.ErrNotFound, "fundamentals for %s", symbol)
	}
	return f, nil
}

// FetchQuote implements Provider.
func (p *SnapshotProvider) FetchQuote(_ context.Context, symbol string) (models.Technicals, error) {
	t, ok := p.snap.Technicals[symbol]
	if !ok {
		return models.Technicals{}, scanerrors.Wrapf(scanerrors.ErrNotFound, "quote for %s", symbol)
	}
	return t, nil
}

// FetchOptionChain implements Provider. The snapshot stores full chains;
// the expiry range filter is applied by Layer 3's DTE criteria.
func (p *SnapshotProvider) FetchOptionChain(_ context.Context, symbol string, _ ExpiryRange) ([]models.OptionContract, error) {
	chain, ok := p.snap.Chains[symbol]
	if !ok {
		return nil, scanerrors.Wrapf(scanerrors.ErrNotFound, "option chain for %s", symbol)
	}
	return chain, nil
}

// FetchIndexSeries implements Provider.
func (p *SnapshotProvider) FetchIndexSeries(_ context.Context, indexID string, _ int) (models.IndexSeries, error) {
	closes, ok := p.snap.Indices[indexID]
	if !ok {
		return models.IndexSeries{}, scanerrors.Wrapf(scanerrors.ErrNotFound, "index series %s", indexID)
	}
	return models.IndexSeries{IndexID: indexID, Closes: closes}, nil
}

var _ Provider = (*SnapshotProvider)(nil)
