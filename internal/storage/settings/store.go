// Package settings persists the operator settings document and applies imports.
package settings

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/dexsnipe/internal/domain"
)

// DefaultPath location of the settings document.
const DefaultPath = "./wal/settings.json"

// Document serialized settings. Every field is optional so that an import can
// carry only the keys it wants to change.
type Document struct {
	Endpoint       *string                  `json:"endpoint,omitempty"`
	AutoScan       *bool                    `json:"autoScan,omitempty"`
	ScanSec        *int                     `json:"scanSec,omitempty"`
	RecentOnlyMins *float64                 `json:"recentOnlyMins,omitempty"`
	MinLiq         *float64                 `json:"minLiq,omitempty"`
	MinVol         *float64                 `json:"minVol,omitempty"`
	MaxFdv         *float64                 `json:"maxFdv,omitempty"`
	MinH1          *float64                 `json:"minH1,omitempty"`
	MaxH1          *float64                 `json:"maxH1,omitempty"`
	SlippageBps    *int                     `json:"slippageBps,omitempty"`
	BuySol         *decimal.Decimal         `json:"buySol,omitempty"`
	SellPct        *decimal.Decimal         `json:"sellPct,omitempty"`
	MaxImpactPct   *decimal.Decimal         `json:"maxImpactPct,omitempty"`
	PrioFee        *uint64                  `json:"prioFee,omitempty"`
	Commitment     *domain.Commitment       `json:"commitment,omitempty"`
	PreSim         *bool                    `json:"preSim,omitempty"`
	WL             []string                 `json:"wl"`
	BL             []string                 `json:"bl"`
	Ladders        map[string]domain.Ladder `json:"ladders,omitempty"`
}

// FromSettings builds a complete document from the live settings and ladder map.
func FromSettings(s domain.Settings, ladders map[string]domain.Ladder) Document {
	scanSec := int(s.ScanInterval / time.Second)
	f := s.Filters.Clone()
	tp := s.Trading

	return Document{
		Endpoint:       &s.Endpoint,
		AutoScan:       &s.AutoScan,
		ScanSec:        &scanSec,
		RecentOnlyMins: &f.MaxAgeMinutes,
		MinLiq:         &f.MinLiquidityUSD,
		MinVol:         &f.MinVolume24h,
		MaxFdv:         &f.MaxFDV,
		MinH1:          &f.MinChangeH1,
		MaxH1:          &f.MaxChangeH1,
		SlippageBps:    &tp.SlippageBps,
		BuySol:         &tp.BuySOL,
		SellPct:        &tp.DefaultSellPct,
		MaxImpactPct:   &tp.MaxImpactPct,
		PrioFee:        &tp.PriorityFeeLamports,
		Commitment:     &tp.Commitment,
		PreSim:         &tp.PreTradeSimulation,
		WL:             nonNil(f.Allow),
		BL:             nonNil(f.Deny),
		Ladders:        ladders,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Decode reads a whole document before anything is applied.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, errors.Wrap(domain.ErrValidation, "decode settings: "+err.Error())
	}
	return doc, nil
}

// Apply overlays the present fields onto base and validates the result.
// base is never modified.
func (d Document) Apply(base domain.Settings) (domain.Settings, error) {
	s := base.Clone()

	if d.Endpoint != nil {
		s.Endpoint = strings.TrimSpace(*d.Endpoint)
	}
	if d.AutoScan != nil {
		s.AutoScan = *d.AutoScan
	}
	if d.ScanSec != nil {
		if *d.ScanSec < 0 {
			return base, errors.Wrapf(domain.ErrValidation, "scanSec %d must not be negative", *d.ScanSec)
		}
		s.ScanInterval = time.Duration(*d.ScanSec) * time.Second
	}
	if d.RecentOnlyMins != nil {
		s.Filters.MaxAgeMinutes = *d.RecentOnlyMins
	}
	if d.MinLiq != nil {
		s.Filters.MinLiquidityUSD = *d.MinLiq
	}
	if d.MinVol != nil {
		s.Filters.MinVolume24h = *d.MinVol
	}
	if d.MaxFdv != nil {
		s.Filters.MaxFDV = *d.MaxFdv
	}
	if d.MinH1 != nil {
		s.Filters.MinChangeH1 = *d.MinH1
	}
	if d.MaxH1 != nil {
		s.Filters.MaxChangeH1 = *d.MaxH1
	}
	if d.SlippageBps != nil {
		s.Trading.SlippageBps = *d.SlippageBps
	}
	if d.BuySol != nil {
		s.Trading.BuySOL = *d.BuySol
	}
	if d.SellPct != nil {
		s.Trading.DefaultSellPct = *d.SellPct
	}
	if d.MaxImpactPct != nil {
		s.Trading.MaxImpactPct = *d.MaxImpactPct
	}
	if d.PrioFee != nil {
		s.Trading.PriorityFeeLamports = *d.PrioFee
	}
	if d.Commitment != nil {
		s.Trading.Commitment = *d.Commitment
	}
	if d.PreSim != nil {
		s.Trading.PreTradeSimulation = *d.PreSim
	}
	if d.WL != nil {
		s.Filters.Allow = cleanList(d.WL)
	}
	if d.BL != nil {
		s.Filters.Deny = cleanList(d.BL)
	}

	if err := s.Validate(); err != nil {
		return base, err
	}
	return s, nil
}

// ValidateLadders checks every ladder carried by the document.
func (d Document) ValidateLadders() error {
	for mint, l := range d.Ladders {
		if strings.TrimSpace(mint) == "" {
			return errors.Wrap(domain.ErrValidation, "ladder with empty mint")
		}
		if err := l.Validate(); err != nil {
			return errors.Wrapf(err, "ladder %s", mint)
		}
	}
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Store keeps the settings document on disk.
type Store struct {
	path string
}

// NewStore creates a store backed by path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create settings dir")
	}
	return &Store{path: path}, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document; nil when nothing was saved yet.
func (s *Store) Load() (*Document, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read settings")
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	return &doc, nil
}

// Save writes the document atomically via temp file.
func (s *Store) Save(doc Document) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode settings")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return errors.Wrap(err, "write settings temp file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "persist settings")
	}
	return nil
}
