// Package purchase implements the credit purchase handoff.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hostwise/assistant/internal/domain"
	"github.com/hostwise/assistant/internal/log"
)

var (
	// ErrPurchaseInFlight is returned while another checkout is loading.
	ErrPurchaseInFlight = errors.New("a purchase is already in progress")
	// ErrPackUnavailable is returned for packs the server marked unavailable
	// or does not list.
	ErrPackUnavailable = errors.New("credit pack is not available")
)

// API is the transport used by the flow.
type API interface {
	ListCreditPacks(ctx context.Context) ([]domain.CreditPack, error)
	Checkout(ctx context.Context, packIndex int) (string, error)
}

// Navigator hands the session over to an external URL. Once Navigate
// succeeds the session is considered finished.
type Navigator interface {
	Navigate(url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string) error

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(url string) error {
	return f(url)
}

// Flow lists credit packs and starts checkouts, one at a time.
type Flow struct {
	api       API
	navigator Navigator
	logger    *zap.Logger

	mu        sync.Mutex
	packs     []domain.CreditPack
	loaded    bool
	loading   bool
	loadingAt int
	handedOff bool
}

// NewFlow creates a purchase flow.
func NewFlow(api API, navigator Navigator, logger *zap.Logger) *Flow {
	return &Flow{
		api:       api,
		navigator: navigator,
		logger:    log.OrNop(logger),
	}
}

// LoadPacks fetches the pack list from the server.
func (f *Flow) LoadPacks(ctx context.Context) ([]domain.CreditPack, error) {
	packs, err := f.api.ListCreditPacks(ctx)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.packs = append([]domain.CreditPack(nil), packs...)
	f.loaded = true
	f.mu.Unlock()
	return packs, nil
}

// Packs returns the last loaded pack list.
func (f *Flow) Packs() []domain.CreditPack {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.CreditPack(nil), f.packs...)
}

// Loading returns the index of the pack being checked out, if any.
func (f *Flow) Loading() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadingAt, f.loading
}

// HandedOff reports whether a checkout URL was handed to the navigator.
func (f *Flow) HandedOff() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handedOff
}

// Purchase requests a checkout for packIndex and navigates to it. On
// failure nothing is navigated and the flow returns to idle.
func (f *Flow) Purchase(ctx context.Context, packIndex int) error {
	if err := f.begin(packIndex); err != nil {
		return err
	}

	url, err := f.api.Checkout(ctx, packIndex)
	if err != nil {
		f.logger.Warn("checkout failed", zap.Int("pack_index", packIndex), zap.Error(err))
		f.reset()
		return err
	}

	if err := f.navigator.Navigate(url); err != nil {
		f.logger.Warn("checkout navigation failed", zap.Int("pack_index", packIndex), zap.Error(err))
		f.reset()
		return fmt.Errorf("failed to navigate to checkout: %w", err)
	}

	f.mu.Lock()
	f.handedOff = true
	f.mu.Unlock()
	f.logger.Info("handed off to checkout", zap.Int("pack_index", packIndex))
	return nil
}

func (f *Flow) begin(packIndex int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loading || f.handedOff {
		return ErrPurchaseInFlight
	}
	if f.loaded && !f.purchasable(packIndex) {
		return ErrPackUnavailable
	}
	f.loading = true
	f.loadingAt = packIndex
	return nil
}

func (f *Flow) purchasable(packIndex int) bool {
	for _, p := range f.packs {
		if p.Index == packIndex {
			return p.Available
		}
	}
	return false
}

func (f *Flow) reset() {
	f.mu.Lock()
	f.loading = false
	f.loadingAt = 0
	f.mu.Unlock()
}
