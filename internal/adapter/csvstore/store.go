// Package csvstore loads the canonical metering tables from CSV exports.
//
// Which physical directory holds which record type is an explicit
// configuration contract (storage.interval_dir / storage.billing_dir); this
// package never guesses.
package csvstore

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/energy"
)

// Store reads both CSV directories into an immutable energy.Snapshot.
type Store struct {
	intervalDir string
	billingDir  string
}

// New creates a Store over the configured data directories.
func New(cfg config.Storage) *Store {
	return &Store{
		intervalDir: cfg.IntervalDir,
		billingDir:  cfg.BillingDir,
	}
}

// Load reads both record sets and returns a fresh immutable snapshot.
// Both directories load concurrently; either failing fails the load.
func (s *Store) Load(ctx context.Context) (*energy.Snapshot, error) {
	var (
		intervals []energy.IntervalRecord
		bills     []energy.BillingPeriod
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		intervals, err = s.loadIntervals()
		return err
	})
	g.Go(func() error {
		var err error
		bills, err = s.loadBills()
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &energy.Snapshot{
		Intervals: intervals,
		Bills:     bills,
		LoadedAt:  time.Now(),
	}, nil
}

// loadIntervals combines every CSV file in the interval directory, sorted by
// filename for a stable table order.
func (s *Store) loadIntervals() ([]energy.IntervalRecord, error) {
	files, err := filepath.Glob(filepath.Join(s.intervalDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", s.intervalDir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no interval data files in %s: %w", s.intervalDir, domain.ErrStorageNotFound)
	}
	sort.Strings(files)

	var records []energy.IntervalRecord
	readable := 0
	for _, file := range files {
		rows, err := readCSV(file)
		if err != nil {
			slog.Warn("skipping unreadable interval file", "file", file, "error", err)
			continue
		}
		readable++
		records = append(records, parseIntervalRows(rows)...)
	}
	if readable == 0 {
		return nil, fmt.Errorf("no interval data files in %s could be read: %w", s.intervalDir, domain.ErrStorageUnreadable)
	}
	return records, nil
}

// loadBills reads the billing directory. The upstream export writes a single
// billing file; the first file in sorted order is used.
func (s *Store) loadBills() ([]energy.BillingPeriod, error) {
	files, err := filepath.Glob(filepath.Join(s.billingDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", s.billingDir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no billing data files in %s: %w", s.billingDir, domain.ErrStorageNotFound)
	}
	sort.Strings(files)

	rows, err := readCSV(files[0])
	if err != nil {
		return nil, fmt.Errorf("read billing data %s: %w", files[0], domain.ErrStorageUnreadable)
	}
	return parseBillRows(rows), nil
}
