// Package region owns the set of named rectangular canvas regions, the
// derived per-node membership table, and auto-growth of region bounds.
//
// The membership table is derived state: it must always equal the set of
// regions whose bounds currently overlap a node's bounding box. It is
// recomputed incrementally by CheckNodePosition on every position change
// and is never independently authoritative.
package region

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/skovalik/cognograph/errors"
	"github.com/skovalik/cognograph/geo"
	"github.com/skovalik/cognograph/metric"
)

// DefaultPadding is the clearance kept around a node when auto-growing a
// region, in canvas units.
const DefaultPadding = 20

// Region is a user-authored rectangle on the canvas. Districts are purely
// visual grouping: they are excluded from membership and never trigger
// region-enter/exit events.
type Region struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Bounds            geo.Rect `json:"bounds"`
	IsDistrict        bool     `json:"is_district,omitempty"`
	LinkedActionIDs   []string `json:"linked_action_ids,omitempty"`
	PresentationOrder int      `json:"presentation_order,omitempty"`
}

// Update describes a partial region update. Nil fields are left unchanged.
type Update struct {
	Name              *string
	Bounds            *geo.Rect
	IsDistrict        *bool
	LinkedActionIDs   *[]string
	PresentationOrder *int
}

// Store holds the region set and the node membership table.
type Store struct {
	mu         sync.RWMutex
	padding    float64
	regions    map[string]*Region
	membership map[string]map[string]struct{} // nodeID -> set of regionIDs
	logger     *slog.Logger
	metrics    *storeMetrics
}

// Option configures a Store.
type Option func(*Store)

// WithPadding overrides the auto-grow padding.
func WithPadding(p float64) Option {
	return func(s *Store) {
		if p > 0 {
			s.padding = p
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics. A nil registry disables metrics.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Store) {
		s.metrics = newStoreMetrics(registry)
	}
}

// NewStore creates an empty region store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		padding:    DefaultPadding,
		regions:    make(map[string]*Region),
		membership: make(map[string]map[string]struct{}),
		logger:     slog.Default().With("component", "region-store"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// AddRegion adds a region and returns its id. An empty id is assigned a
// fresh UUID; a duplicate id is rejected.
func (s *Store) AddRegion(r Region) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := s.regions[r.ID]; exists {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "Store", "AddRegion",
			"region id already exists: "+r.ID)
	}

	copied := r
	s.regions[r.ID] = &copied
	s.updateGauges()

	s.logger.Debug("Region added", "region_id", r.ID, "name", r.Name)
	return r.ID, nil
}

// UpdateRegion applies a partial update to a region.
func (s *Store) UpdateRegion(id string, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.regions[id]
	if !exists {
		return errors.WrapInvalid(errors.ErrRegionNotFound, "Store", "UpdateRegion", "lookup "+id)
	}

	if update.Name != nil {
		r.Name = *update.Name
	}
	if update.Bounds != nil {
		r.Bounds = *update.Bounds
	}
	if update.IsDistrict != nil {
		r.IsDistrict = *update.IsDistrict
	}
	if update.LinkedActionIDs != nil {
		r.LinkedActionIDs = append([]string(nil), (*update.LinkedActionIDs)...)
	}
	if update.PresentationOrder != nil {
		r.PresentationOrder = *update.PresentationOrder
	}
	return nil
}

// DeleteRegion removes a region and purges it from every node's membership
// set.
func (s *Store) DeleteRegion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.regions[id]; !exists {
		return errors.WrapInvalid(errors.ErrRegionNotFound, "Store", "DeleteRegion", "lookup "+id)
	}

	delete(s.regions, id)
	for nodeID, set := range s.membership {
		delete(set, id)
		if len(set) == 0 {
			delete(s.membership, nodeID)
		}
	}
	s.updateGauges()

	s.logger.Debug("Region deleted", "region_id", id)
	return nil
}

// CheckNodePosition recomputes which regions the node's box overlaps, diffs
// against the stored membership set, persists the new set, and returns the
// regions entered and exited (sorted for determinism). Districts never
// participate. Calling twice with identical inputs returns empty diffs the
// second time and does not touch stored state when nothing changed.
func (s *Store) CheckNodePosition(nodeID string, box geo.Rect) (entered, exited []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]struct{})
	for id, r := range s.regions {
		if r.IsDistrict {
			continue
		}
		if geo.Overlaps(box, r.Bounds) {
			current[id] = struct{}{}
		}
	}

	previous := s.membership[nodeID]

	for id := range current {
		if _, was := previous[id]; !was {
			entered = append(entered, id)
		}
	}
	for id := range previous {
		if _, still := current[id]; !still {
			exited = append(exited, id)
		}
	}

	// Leave stored state untouched on a no-op so repeated calls are
	// observably idempotent.
	if len(entered) == 0 && len(exited) == 0 {
		return nil, nil
	}

	if len(current) == 0 {
		delete(s.membership, nodeID)
	} else {
		s.membership[nodeID] = current
	}
	s.updateGauges()

	sort.Strings(entered)
	sort.Strings(exited)
	return entered, exited
}

// AutoGrow expands a region so the node's box, padded on every side, is
// fully contained. Each edge is tested independently; growing the left or
// top edge moves the origin and grows the dimension so the opposite edge
// stays fixed. Bounds never shrink. Returns true if the bounds changed.
func (s *Store) AutoGrow(regionID string, nodeBox geo.Rect) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.regions[regionID]
	if !exists {
		return false, errors.WrapInvalid(errors.ErrRegionNotFound, "Store", "AutoGrow", "lookup "+regionID)
	}

	padded := geo.Pad(nodeBox, s.padding)
	b := r.Bounds
	grown := false

	if padded.X < b.X {
		delta := b.X - padded.X
		b.X = padded.X
		b.Width += delta
		grown = true
	}
	if padded.Y < b.Y {
		delta := b.Y - padded.Y
		b.Y = padded.Y
		b.Height += delta
		grown = true
	}
	if padded.X+padded.Width > b.X+b.Width {
		b.Width = padded.X + padded.Width - b.X
		grown = true
	}
	if padded.Y+padded.Height > b.Y+b.Height {
		b.Height = padded.Y + padded.Height - b.Y
		grown = true
	}

	if !grown {
		return false, nil
	}

	r.Bounds = b
	s.logger.Debug("Region auto-grown", "region_id", regionID,
		"x", b.X, "y", b.Y, "width", b.Width, "height", b.Height)
	return true, nil
}

// LoadRegions replaces the whole region set and resets the membership
// table. Used when a persisted canvas is loaded.
func (s *Store) LoadRegions(regions []Region) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.regions = make(map[string]*Region, len(regions))
	for i := range regions {
		r := regions[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.regions[r.ID] = &r
	}
	s.membership = make(map[string]map[string]struct{})
	s.updateGauges()

	s.logger.Info("Regions loaded", "region_count", len(s.regions))
}

// Region returns a copy of the region with the given id.
func (s *Store) Region(id string) (Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.regions[id]
	if !exists {
		return Region{}, false
	}
	return *r, true
}

// Regions returns a copy of all regions, ordered by presentation order and
// then by name. Suitable for persistence round-tripping.
func (s *Store) Regions() []Region {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Region, 0, len(s.regions))
	for _, r := range s.regions {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PresentationOrder != out[j].PresentationOrder {
			return out[i].PresentationOrder < out[j].PresentationOrder
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MembershipCount returns how many nodes currently overlap the region.
func (s *Store) MembershipCount(regionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, set := range s.membership {
		if _, ok := set[regionID]; ok {
			count++
		}
	}
	return count
}

// RegionsForNode returns the ids of the regions the node currently
// overlaps, sorted.
func (s *Store) RegionsForNode(nodeID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.membership[nodeID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RemoveNode purges a deleted node from the membership table.
func (s *Store) RemoveNode(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.membership, nodeID)
	s.updateGauges()
}

// updateGauges refreshes the metrics gauges. Must be called with the lock
// held.
func (s *Store) updateGauges() {
	if s.metrics == nil {
		return
	}
	entries := 0
	for _, set := range s.membership {
		entries += len(set)
	}
	s.metrics.updateCounts(len(s.regions), entries)
}
