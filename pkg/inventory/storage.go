package inventory

import (
	"encoding/json"
	"log/slog"
	"sort"
)

// Option configures storage construction.
type Option func(*Storage)

// WithFilter restricts the storage to the given produce types. Passing no
// definitions yields a storage that accepts nothing.
func WithFilter(defs ...*ProduceDefinition) Option {
	return func(s *Storage) {
		s.filter = make(map[ProduceID]struct{}, len(defs))
		s.allowed = s.allowed[:0]
		for _, d := range defs {
			if d == nil {
				continue
			}
			if _, dup := s.filter[d.Name]; dup {
				continue
			}
			s.filter[d.Name] = struct{}{}
			s.allowed = append(s.allowed, d.Name)
		}
	}
}

// WithLogger attaches a logger for diagnostics. Storage is silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRejectHandler registers a callback invoked whenever Add refuses produce
// because the filter does not allow it.
func WithRejectHandler(fn func(ProduceQuantity)) Option {
	return func(s *Storage) {
		s.onReject = fn
	}
}

// Storage holds produce amounts keyed by type. MaxCapacity bounds each type
// independently; there is no aggregate cap. A storage is owned by a single
// producer and is not safe for concurrent use.
type Storage struct {
	maxCapacity int
	filter      map[ProduceID]struct{} // nil means every type is allowed
	allowed     []ProduceID
	stored      map[ProduceID]int

	logger   *slog.Logger
	onReject func(ProduceQuantity)
}

// NewStorage creates an empty storage with a per-type capacity.
func NewStorage(maxCapacity int, opts ...Option) *Storage {
	s := &Storage{
		maxCapacity: maxCapacity,
		stored:      make(map[ProduceID]int),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// MaxCapacity returns the per-type capacity.
func (s *Storage) MaxCapacity() int { return s.maxCapacity }

// Allowed returns the allow-list in configuration order, or nil when the
// storage accepts every type.
func (s *Storage) Allowed() []ProduceID {
	if s.filter == nil {
		return nil
	}
	out := make([]ProduceID, len(s.allowed))
	copy(out, s.allowed)
	return out
}

// FilterAllows reports whether id may be stored.
func (s *Storage) FilterAllows(id ProduceID) bool {
	if s.filter == nil {
		return true
	}
	_, ok := s.filter[id]
	return ok
}

// CanAdd reports whether all of q fits without overflow.
func (s *Storage) CanAdd(q ProduceQuantity) bool {
	if !s.FilterAllows(q.ID()) {
		return false
	}
	return s.stored[q.ID()]+q.Quantity <= s.maxCapacity
}

// Add stores as much of q as fits and returns the remainder. overflowed is
// false when everything was stored. Disallowed produce is returned whole.
func (s *Storage) Add(q ProduceQuantity) (rest ProduceQuantity, overflowed bool) {
	id := q.ID()
	if !s.FilterAllows(id) {
		s.logger.Warn("attempt to add disallowed produce", "produce", id, "quantity", q.Quantity)
		if s.onReject != nil {
			s.onReject(q)
		}
		return q, true
	}
	if q.Quantity < 0 {
		s.logger.Warn("attempt to add negative quantity", "produce", id, "quantity", q.Quantity)
		return q, true
	}

	current := s.stored[id]
	toAdd := min(s.maxCapacity-current, q.Quantity)
	if toAdd < 0 {
		toAdd = 0
	}
	remainder := q.Quantity - toAdd
	s.logger.Debug("adding produce", "produce", id, "added", toAdd, "returned", remainder)
	s.stored[id] = current + toAdd

	if remainder > 0 {
		return ProduceQuantity{Produce: q.Produce, Quantity: remainder}, true
	}
	return ProduceQuantity{}, false
}

// AddAll adds each quantity in order and returns the non-empty remainders.
func (s *Storage) AddAll(qs []ProduceQuantity) []ProduceQuantity {
	var leftovers []ProduceQuantity
	for _, q := range qs {
		if rest, overflowed := s.Add(q); overflowed {
			leftovers = append(leftovers, rest)
		}
	}
	return leftovers
}

// Contains reports whether at least q.Quantity of the type is stored. A type
// that was never stored is not contained, even for a zero request.
func (s *Storage) Contains(q ProduceQuantity) bool {
	stored, ok := s.stored[q.ID()]
	return ok && stored >= q.Quantity
}

// QuantityOf returns the stored amount of id, 0 if absent.
func (s *Storage) QuantityOf(id ProduceID) int {
	return s.stored[id]
}

// EnforceConsume removes q from storage or fails without side effects.
func (s *Storage) EnforceConsume(q ProduceQuantity) error {
	id := q.ID()
	stored := s.stored[id]
	if stored < q.Quantity {
		return &InsufficientQuantityError{Produce: id, Requested: q.Quantity, Available: stored}
	}
	if q.Quantity > 0 {
		s.stored[id] = stored - q.Quantity
	}
	return nil
}

// Snapshot returns a copy of the stored amounts.
func (s *Storage) Snapshot() map[ProduceID]int {
	out := make(map[ProduceID]int, len(s.stored))
	for id, qty := range s.stored {
		out[id] = qty
	}
	return out
}

// storageSnapshot is the compact JSON form of a storage.
type storageSnapshot struct {
	MaxCapacity int               `json:"max_capacity"`
	Allowed     []ProduceID       `json:"allowed,omitempty"`
	Stored      map[ProduceID]int `json:"stored"`
}

// MarshalJSON encodes capacity, allow-list and stored amounts.
func (s *Storage) MarshalJSON() ([]byte, error) {
	allowed := s.Allowed()
	sort.Slice(allowed, func(i, j int) bool { return allowed[i] < allowed[j] })
	return json.Marshal(storageSnapshot{
		MaxCapacity: s.maxCapacity,
		Allowed:     allowed,
		Stored:      s.Snapshot(),
	})
}
