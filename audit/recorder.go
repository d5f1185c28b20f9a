// Package audit appends privileged actions to the activity log as a keyed
// hash chain and verifies the chain on demand.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/id"
)

var (
	// ErrChainBroken is returned by Verify when an entry does not link to
	// its predecessor or its digest does not match its content.
	ErrChainBroken = errors.New("audit: hash chain broken")

	// ErrInvalidKey is returned for keys that are not KeySize bytes.
	ErrInvalidKey = errors.New("audit: key must be 32 bytes")
)

// BreakError locates the first broken link.
type BreakError struct {
	Seq    int64
	Reason string
}

func (e *BreakError) Error() string {
	return fmt.Sprintf("audit: hash chain broken at seq %d: %s", e.Seq, e.Reason)
}

func (e *BreakError) Is(target error) bool { return target == ErrChainBroken }

// Event is a privileged action to record.
type Event struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]any
	RequestID    string
}

// Report summarizes a successful verification.
type Report struct {
	Entries  int64  `json:"entries"`
	HeadSeq  int64  `json:"head_seq"`
	HeadHash string `json:"head_hash,omitempty"`
}

// Recorder appends entries to an activity.Store. A Recorder serializes its
// own appends; concurrent Recorders over the same store resolve races
// through the store's unique sequence constraint and retry.
type Recorder struct {
	store    activity.Store
	hasher   hasher
	retries  int
	pageSize int
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex
}

// Option configures a Recorder.
type Option func(*Recorder) error

// WithKey sets the chain key. It must be KeySize bytes.
func WithKey(key []byte) Option {
	return func(r *Recorder) error {
		if len(key) != KeySize {
			return ErrInvalidKey
		}
		copy(r.hasher.key[:], key)
		return nil
	}
}

// WithRetries sets how many times an append is retried after losing a
// sequence race.
func WithRetries(n int) Option {
	return func(r *Recorder) error {
		r.retries = n
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) error {
		r.logger = l
		return nil
	}
}

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) error {
		r.now = now
		return nil
	}
}

// NewRecorder creates a Recorder writing to s.
func NewRecorder(s activity.Store, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		store:    s,
		hasher:   hasher{key: DefaultKey},
		retries:  5,
		pageSize: 500,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Record appends one entry and returns it as stored.
func (r *Recorder) Record(ctx context.Context, ev Event) (*activity.Entry, error) {
	details, err := normalizeDetails(ev.Details)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		e, err := r.next(ctx, ev, details)
		if err != nil {
			return nil, err
		}
		err = r.store.AppendEntry(ctx, e)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, activity.ErrSequenceConflict) {
			return nil, fmt.Errorf("audit: append entry: %w", err)
		}
		lastErr = err
		r.logger.Debug("audit sequence conflict, retrying",
			slog.Int64("seq", e.Seq),
			slog.Int("attempt", attempt+1),
		)
	}
	return nil, fmt.Errorf("audit: append entry after %d retries: %w", r.retries, lastErr)
}

// next builds the entry that would follow the current head.
func (r *Recorder) next(ctx context.Context, ev Event, details map[string]any) (*activity.Entry, error) {
	var seq int64 = 1
	var prev string
	head, err := r.store.LastEntry(ctx)
	switch {
	case err == nil:
		seq = head.Seq + 1
		prev = head.Hash
	case errors.Is(err, activity.ErrNotFound):
	default:
		return nil, fmt.Errorf("audit: read chain head: %w", err)
	}

	e := &activity.Entry{
		ID:           id.NewActivityID(),
		Seq:          seq,
		ActorID:      ev.ActorID,
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		Details:      details,
		RequestID:    ev.RequestID,
		PrevHash:     prev,
		CreatedAt:    r.now().UTC().Truncate(time.Millisecond),
	}
	e.Hash, err = r.hasher.Sum(e)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Verify walks the whole chain in sequence order. It returns a *BreakError
// matching ErrChainBroken at the first entry that fails.
func (r *Recorder) Verify(ctx context.Context) (*Report, error) {
	rep := &Report{}
	var prevHash string
	var afterSeq int64
	for {
		page, err := r.store.ListEntries(ctx, &activity.QueryFilter{AfterSeq: afterSeq, Limit: r.pageSize})
		if err != nil {
			return nil, fmt.Errorf("audit: list entries: %w", err)
		}
		for _, e := range page {
			if e.Seq != rep.HeadSeq+1 {
				return nil, &BreakError{Seq: e.Seq, Reason: fmt.Sprintf("expected seq %d", rep.HeadSeq+1)}
			}
			if e.PrevHash != prevHash {
				return nil, &BreakError{Seq: e.Seq, Reason: "previous hash mismatch"}
			}
			sum, err := r.hasher.Sum(e)
			if err != nil {
				return nil, err
			}
			if sum != e.Hash {
				return nil, &BreakError{Seq: e.Seq, Reason: "content hash mismatch"}
			}
			prevHash = e.Hash
			rep.HeadSeq = e.Seq
			rep.HeadHash = e.Hash
			rep.Entries++
		}
		if len(page) < r.pageSize {
			return rep, nil
		}
		afterSeq = rep.HeadSeq
	}
}
