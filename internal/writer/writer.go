// Package writer is the index write path. Record is invoked synchronously on
// the host's critical path but defers the durable mutation onto the task
// queue, so a slow or failing index write never delays or fails the action
// being recorded. Nothing here returns an error to the caller; every failure
// mode is logged and counted instead.
package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/wikimesh/centralindex/internal/core/config"
	"github.com/wikimesh/centralindex/internal/core/debounce"
	"github.com/wikimesh/centralindex/internal/core/iphex"
	"github.com/wikimesh/centralindex/internal/core/storage"
	"github.com/wikimesh/centralindex/internal/identity"
	"github.com/wikimesh/centralindex/internal/metrics"
	"github.com/wikimesh/centralindex/internal/sitemap"
	"github.com/wikimesh/centralindex/internal/taskqueue"
)

const taskName = "central-index-write"

// Event is one trackable action observed by the host.
type Event struct {
	Performer identity.UserRef
	// IP is the acting IP address, empty when unknown.
	IP     string
	SiteID string
	// Timestamp is when the action happened, not when it was recorded.
	Timestamp time.Time
	// HasQualifyingAction marks actions significant enough (e.g. an edit) to
	// also refresh the temp-account IP index.
	HasQualifyingAction bool
}

// Writer applies exclusion rules and the debounce policy, then upserts the
// activity rows through the task queue.
type Writer struct {
	enabled   bool
	resolver  identity.Resolver
	mapper    *sitemap.Mapper
	store     storage.ActivityStore
	policy    *debounce.Policy
	scheduler taskqueue.Scheduler

	excludedGroups map[string]struct{}
	excludedRanges []netip.Prefix

	// isSystem marks identities expected to lack a global id by design, so
	// their resolution failures are demoted from error to debug.
	isSystem func(identity.UserRef) bool
}

// New builds a writer from the index configuration. Malformed excluded-range
// entries are skipped with a warning; they never become a match-all rule and
// never block construction. A nil isSystem treats no identity as a system
// account.
func New(
	cfg config.IndexConfig,
	resolver identity.Resolver,
	mapper *sitemap.Mapper,
	store storage.ActivityStore,
	policy *debounce.Policy,
	scheduler taskqueue.Scheduler,
	isSystem func(identity.UserRef) bool,
) *Writer {
	groups := make(map[string]struct{}, len(cfg.ExcludedGroups))
	for _, g := range cfg.ExcludedGroups {
		groups[g] = struct{}{}
	}

	ranges, malformed := cfg.ParseExcludedRanges()
	for _, entry := range malformed {
		slog.Warn("[Writer] Skipping malformed excluded range", "entry", entry)
	}

	if isSystem == nil {
		isSystem = func(identity.UserRef) bool { return false }
	}

	return &Writer{
		enabled:        cfg.Enabled,
		resolver:       resolver,
		mapper:         mapper,
		store:          store,
		policy:         policy,
		scheduler:      scheduler,
		excludedGroups: groups,
		excludedRanges: ranges,
		isSystem:       isSystem,
	}
}

// Record observes one trackable action and schedules the index mutation for
// immediate deferred execution.
func (w *Writer) Record(ctx context.Context, evt Event) {
	if task, ok := w.prepare(ctx, evt); ok {
		w.scheduler.Schedule(task)
	}
}

// RecordInUnitOfWork is like Record but holds the mutation inside the given
// unit of work: it runs only if the unit commits and is discarded on
// rollback.
func (w *Writer) RecordInUnitOfWork(ctx context.Context, uow *taskqueue.UnitOfWork, evt Event) {
	if task, ok := w.prepare(ctx, evt); ok {
		uow.Schedule(task, true)
	}
}

// prepare runs the synchronous part of the write path: the on/off switch,
// exclusion checks and identity resolution. Returns the deferred mutation
// task, or ok=false when the write is abandoned.
func (w *Writer) prepare(ctx context.Context, evt Event) (taskqueue.Task, bool) {
	if !w.enabled {
		metrics.WriterAbandoned.WithLabelValues("disabled").Inc()
		return taskqueue.Task{}, false
	}

	if group, excluded := w.excludedGroup(evt.Performer); excluded {
		metrics.WriterAbandoned.WithLabelValues("excluded_group").Inc()
		slog.Debug("[Writer] Performer in excluded group, skipping",
			"performer", evt.Performer.Name,
			"group", group)
		return taskqueue.Task{}, false
	}

	if w.excludedIP(evt.IP) {
		metrics.WriterAbandoned.WithLabelValues("excluded_ip").Inc()
		slog.Debug("[Writer] Acting IP in excluded range, skipping",
			"performer", evt.Performer.Name)
		return taskqueue.Task{}, false
	}

	globalID, err := w.resolver.GlobalID(ctx, evt.Performer)
	if err != nil {
		metrics.WriterAbandoned.WithLabelValues("no_global_id").Inc()
		if errors.Is(err, identity.ErrNoGlobalID) && w.isSystem(evt.Performer) {
			// System identities lack global ids by design.
			slog.Debug("[Writer] No global id for system identity, skipping",
				"performer", evt.Performer.Name)
		} else {
			slog.Error("[Writer] Failed to resolve performer to a global id, abandoning write",
				"performer", evt.Performer.Name,
				"site_id", evt.SiteID,
				"error", err)
		}
		return taskqueue.Task{}, false
	}

	task := taskqueue.NewTask(taskName, func(ctx context.Context) error {
		if err := w.apply(ctx, globalID, evt); err != nil {
			metrics.WriteFailures.Inc()
			return err
		}
		return nil
	})
	return task, true
}

// apply is the deferred durable mutation: resolve the site key, consult the
// debounce policy against the recorded timestamp and issue the conditional
// upserts. Runs on a task queue worker, never on the caller.
func (w *Writer) apply(ctx context.Context, globalID int64, evt Event) error {
	siteKey, err := w.mapper.Resolve(ctx, evt.SiteID)
	if err != nil {
		return fmt.Errorf("resolve site %q: %w", evt.SiteID, err)
	}

	candidate := evt.Timestamp.UTC()

	prev, hasPrev, err := w.store.UserLastSeen(ctx, globalID, siteKey)
	if err != nil {
		return fmt.Errorf("read user activity: %w", err)
	}
	decision := w.policy.Decide(prev, hasPrev, candidate)
	metrics.WriterDecisions.WithLabelValues("user_activity", decision.String()).Inc()
	if decision == debounce.Write {
		err := w.store.UpsertUserActivity(ctx, storage.UserActivityRow{
			GlobalUserID: globalID,
			SiteKey:      siteKey,
			LastSeen:     candidate,
		})
		if err != nil {
			return fmt.Errorf("upsert user activity: %w", err)
		}
	}

	if !evt.Performer.IsTemp || !evt.HasQualifyingAction || evt.IP == "" {
		return nil
	}

	ipHex, err := iphex.FromString(evt.IP)
	if err != nil {
		return fmt.Errorf("normalize acting ip: %w", err)
	}

	prev, hasPrev, err = w.store.TempIPLastSeen(ctx, ipHex, siteKey)
	if err != nil {
		return fmt.Errorf("read temp ip activity: %w", err)
	}
	decision = w.policy.Decide(prev, hasPrev, candidate)
	metrics.WriterDecisions.WithLabelValues("temp_ip_activity", decision.String()).Inc()
	if decision == debounce.Write {
		err := w.store.UpsertTempIPActivity(ctx, storage.TempIPActivityRow{
			IPHex:    ipHex,
			SiteKey:  siteKey,
			LastSeen: candidate,
		})
		if err != nil {
			return fmt.Errorf("upsert temp ip activity: %w", err)
		}
	}

	return nil
}

func (w *Writer) excludedGroup(user identity.UserRef) (string, bool) {
	for _, g := range user.Groups {
		if _, ok := w.excludedGroups[g]; ok {
			return g, true
		}
	}
	return "", false
}

func (w *Writer) excludedIP(ip string) bool {
	if ip == "" || len(w.excludedRanges) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		// An unparseable acting IP cannot match any configured range.
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range w.excludedRanges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
