package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"appletcore/internal/changes"
	"appletcore/internal/infra/persistence/memory"
	"appletcore/internal/validation"
	"appletcore/internal/version"
	"appletcore/pkg/domain"
)

// DefaultTxTimeout bounds every transaction unless WithTxTimeout overrides it.
const DefaultTxTimeout = 30 * time.Second

// Logger is the subset of *slog.Logger the service writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Archiver receives every committed history snapshot. Failures are logged
// and never undo the commit.
type Archiver interface {
	Archive(ctx context.Context, snap domain.AppletHistoryFull) error
}

// Service sequences validation, versioning, the current-tree rewrite, history
// recording and schedule rebinding inside one transaction per call.
type Service struct {
	store       domain.PersistentStore
	validator   *validation.Validator
	logger      Logger
	audit       AuditRecorder
	metrics     MetricsRecorder
	tracer      Tracer
	clock       Clock
	archiver    Archiver
	txTimeout   time.Duration
	defaultBump version.Bump
	newID       func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger routes operation logs to logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAuditRecorder records mutating operations.
func WithAuditRecorder(rec AuditRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.audit = rec
		}
	}
}

// WithMetricsRecorder observes every operation.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer opens a span per operation.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithArchiver hands committed snapshots to archiver.
func WithArchiver(archiver Archiver) Option {
	return func(s *Service) { s.archiver = archiver }
}

// WithTxTimeout bounds each transaction. Non-positive values keep the default.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

// WithDefaultBump sets the bump applied when an update asks for BumpNone.
func WithDefaultBump(b version.Bump) Option {
	return func(s *Service) {
		if b != "" && b != version.BumpNone {
			s.defaultBump = b
		}
	}
}

// WithIDGenerator replaces uuid.NewString for new entity ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		validator:   validation.New(),
		logger:      slog.Default(),
		audit:       noopAuditRecorder{},
		metrics:     noopMetricsRecorder{},
		tracer:      noopTracer{},
		clock:       ClockFunc(func() time.Time { return time.Now().UTC() }),
		txTimeout:   DefaultTxTimeout,
		defaultBump: version.BumpPatch,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

func (s *Service) write(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.store.RunInTransaction(ctx, fn)
}

func (s *Service) read(ctx context.Context, fn func(domain.TransactionView) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()
	return s.store.View(ctx, fn)
}

// run wraps one operation with tracing, metrics, audit and logging. The
// returned error is already classified.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) (outcome, error)) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	out, err := fn(ctx)
	err = classify(op, err)
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	s.recordAudit(ctx, op, out, err, duration)
	s.logOutcome(op, out, err, duration)
	return err
}

func (s *Service) logOutcome(op string, out outcome, err error, duration time.Duration) {
	args := []any{"op", op, "applet_id", out.entityID, "duration", duration}
	if out.version != "" {
		args = append(args, "version", out.version)
	}
	switch {
	case err == nil:
		s.logger.Info("applet operation completed", args...)
	case domain.IsValidation(err), domain.IsConflict(err), domain.IsNotFound(err):
		s.logger.Warn("applet operation rejected", append(args, "error", err)...)
	default:
		s.logger.Error("applet operation failed", append(args, "error", err)...)
	}
}

func (s *Service) archive(ctx context.Context, snap domain.AppletHistoryFull) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, snap); err != nil {
		s.logger.Warn("archive snapshot failed", "applet_id", snap.ID, "version", snap.Version, "error", err)
	}
}

// lockLive takes the applet row lock and rejects soft-deleted applets.
func lockLive(tx domain.Transaction, appletID string) (domain.Applet, error) {
	applet, err := tx.LockApplet(appletID)
	if err != nil {
		return domain.Applet{}, err
	}
	if applet.IsDeleted {
		return domain.Applet{}, &domain.NotFoundError{Entity: domain.EntityApplet, ID: appletID}
	}
	return applet, nil
}

func findLive(view domain.TransactionView, appletID string) (domain.Applet, error) {
	applet, err := view.FindApplet(appletID)
	if err != nil {
		return domain.Applet{}, err
	}
	if applet.IsDeleted {
		return domain.Applet{}, &domain.NotFoundError{Entity: domain.EntityApplet, ID: appletID}
	}
	return applet, nil
}

// CreateApplet validates req and writes the applet at the initial version
// together with its first history snapshot.
func (s *Service) CreateApplet(ctx context.Context, ownerID string, req domain.AppletRequest) (domain.AppletFull, domain.Result, error) {
	var (
		created domain.AppletFull
		snap    domain.AppletHistoryFull
		res     domain.Result
	)
	err := s.run(ctx, OpCreateApplet, func(ctx context.Context) (outcome, error) {
		out := outcome{userID: ownerID}
		target := validation.Target{OwnerID: ownerID}
		if err := s.validator.CheckRequest(req); err != nil {
			return out, err
		}
		now := s.clock.Now()
		appletID := s.newID()
		out.entityID = appletID
		var err error
		res, err = s.write(ctx, func(tx domain.Transaction) error {
			if err := validation.CheckDisplayName(req.DisplayName, target, tx); err != nil {
				return err
			}
			if err := validation.ValidateTree(req); err != nil {
				return err
			}
			t, err := buildTree(appletID, req, now, s.newID)
			if err != nil {
				return err
			}
			applet := domain.Applet{
				ID:        appletID,
				OwnerID:   ownerID,
				Version:   version.Initial,
				CreatedAt: now,
				UpdatedAt: now,
			}
			applyRequest(&applet, req)
			if err := tx.InsertApplet(applet); err != nil {
				return fmt.Errorf("insert applet %s: %w", appletID, err)
			}
			if err := writeTree(tx, t); err != nil {
				return err
			}
			h, err := recordHistory(tx, ownerID, applet, t)
			if err != nil {
				return err
			}
			created, snap = fullOf(applet, t), h
			return nil
		})
		if err != nil {
			return out, err
		}
		out.version = version.Initial
		return out, nil
	})
	if err != nil {
		return domain.AppletFull{}, res, err
	}
	s.archive(ctx, snap)
	return created, res, nil
}

// UpdateApplet rewrites the current tree of appletID from req under a new
// version computed with bump. BumpNone selects the configured default.
func (s *Service) UpdateApplet(ctx context.Context, appletID, userID string, req domain.AppletRequest, bump version.Bump) (domain.AppletFull, domain.Result, error) {
	var (
		updated domain.AppletFull
		snap    domain.AppletHistoryFull
		res     domain.Result
	)
	err := s.run(ctx, OpUpdateApplet, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID, userID: userID}
		if err := s.validator.CheckRequest(req); err != nil {
			return out, err
		}
		var err error
		res, err = s.write(ctx, func(tx domain.Transaction) error {
			prev, err := lockLive(tx, appletID)
			if err != nil {
				return err
			}
			if req.ExpectedVersion != "" && req.ExpectedVersion != prev.Version {
				return &domain.ConflictError{
					Kind:     domain.ConflictConcurrentUpdate,
					AppletID: appletID,
					Message:  fmt.Sprintf("expected version %s but found %s", req.ExpectedVersion, prev.Version),
				}
			}
			target := validation.Target{OwnerID: prev.OwnerID, AppletID: appletID}
			if err := validation.CheckDisplayName(req.DisplayName, target, tx); err != nil {
				return err
			}
			if err := validation.ValidateTree(req); err != nil {
				return err
			}
			updated, snap, err = s.applyUpdate(tx, prev, userID, req, bump)
			return err
		})
		if err != nil {
			return out, err
		}
		out.version = updated.Version
		return out, nil
	})
	if err != nil {
		return domain.AppletFull{}, res, err
	}
	s.archive(ctx, snap)
	return updated, res, nil
}

// applyUpdate is the shared body of update and reindex: bump, rewrite the
// current tree, record history, rebind schedule links.
func (s *Service) applyUpdate(tx domain.Transaction, prev domain.Applet, userID string, req domain.AppletRequest, bump version.Bump) (domain.AppletFull, domain.AppletHistoryFull, error) {
	if bump == "" || bump == version.BumpNone {
		bump = s.defaultBump
	}
	next, err := version.Next(prev.Version, bump)
	if err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, fmt.Errorf("bump %s: %w", prev.Version, err)
	}
	now := s.clock.Now()
	t, err := buildTree(prev.ID, req, now, s.newID)
	if err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, err
	}
	activities, err := tx.ListActivities(prev.ID)
	if err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, err
	}
	flows, err := tx.ListFlows(prev.ID)
	if err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, err
	}
	t.keepCreatedAt(activities, flows)

	if err := tx.DeleteAppletTree(prev.ID); err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, fmt.Errorf("delete tree of %s: %w", prev.ID, err)
	}
	if err := writeTree(tx, t); err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, err
	}
	applet, err := tx.UpdateApplet(prev.ID, func(a *domain.Applet) error {
		applyRequest(a, req)
		a.Version = next
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, fmt.Errorf("update applet %s: %w", prev.ID, err)
	}
	snap, err := recordHistory(tx, userID, applet, t)
	if err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, err
	}
	if _, err := rebindEvents(tx, prev.ID, prev.Version, next, now); err != nil {
		return domain.AppletFull{}, domain.AppletHistoryFull{}, err
	}
	return fullOf(applet, t), snap, nil
}

// DeleteApplet soft-deletes the current row. History and links stay.
func (s *Service) DeleteApplet(ctx context.Context, appletID, userID string) (domain.Result, error) {
	var res domain.Result
	err := s.run(ctx, OpDeleteApplet, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID, userID: userID}
		var err error
		res, err = s.write(ctx, func(tx domain.Transaction) error {
			prev, err := lockLive(tx, appletID)
			if err != nil {
				return err
			}
			out.version = prev.Version
			_, err = tx.UpdateApplet(appletID, func(a *domain.Applet) error {
				a.IsDeleted = true
				a.UpdatedAt = s.clock.Now()
				return nil
			})
			return err
		})
		return out, err
	})
	return res, err
}

// GetApplet returns the current tree of a live applet.
func (s *Service) GetApplet(ctx context.Context, appletID string) (domain.AppletFull, error) {
	var full domain.AppletFull
	err := s.run(ctx, OpGetApplet, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID}
		err := s.read(ctx, func(view domain.TransactionView) error {
			applet, err := findLive(view, appletID)
			if err != nil {
				return err
			}
			full, err = loadTree(view, applet)
			return err
		})
		out.version = full.Version
		return out, err
	})
	if err != nil {
		return domain.AppletFull{}, err
	}
	return full, nil
}

// GetAppletVersions lists the recorded versions of appletID in chronological
// order. Deleted applets keep their history.
func (s *Service) GetAppletVersions(ctx context.Context, appletID string) ([]string, error) {
	var versions []string
	err := s.run(ctx, OpListVersions, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID}
		err := s.read(ctx, func(view domain.TransactionView) error {
			rows, err := view.ListAppletHistories(appletID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return &domain.NotFoundError{Entity: domain.EntityApplet, ID: appletID}
			}
			versions = make([]string, len(rows))
			for i, h := range rows {
				versions[i] = h.Version
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

// GetAppletAtVersion assembles the historical tree of appletID at ver.
func (s *Service) GetAppletAtVersion(ctx context.Context, appletID, ver string) (domain.AppletHistoryFull, error) {
	var snap domain.AppletHistoryFull
	err := s.run(ctx, OpGetAtVersion, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID, version: ver}
		err := s.read(ctx, func(view domain.TransactionView) error {
			var err error
			snap, err = loadHistory(view, appletID, ver)
			return err
		})
		return out, err
	})
	if err != nil {
		return domain.AppletHistoryFull{}, err
	}
	return snap, nil
}

// Diff compares two recorded versions of appletID. Both snapshots are read
// from the same view.
func (s *Service) Diff(ctx context.Context, appletID, fromVersion, toVersion string) (changes.ChangeSet, error) {
	var set changes.ChangeSet
	err := s.run(ctx, OpDiff, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID, version: toVersion}
		err := s.read(ctx, func(view domain.TransactionView) error {
			oldV, err := loadHistory(view, appletID, fromVersion)
			if err != nil {
				return err
			}
			newV, err := loadHistory(view, appletID, toVersion)
			if err != nil {
				return err
			}
			set = changes.Compare(oldV, newV)
			return nil
		})
		return out, err
	})
	if err != nil {
		return changes.ChangeSet{}, err
	}
	return set, nil
}

// ReindexOptionValues renumbers colliding selection option values and
// records the result as a patch version, inside one transaction. When no
// item collides the current tree is returned and nothing is written.
func (s *Service) ReindexOptionValues(ctx context.Context, appletID, userID string) (domain.AppletFull, domain.Result, error) {
	var (
		result  domain.AppletFull
		snap    domain.AppletHistoryFull
		changed bool
		res     domain.Result
	)
	err := s.run(ctx, OpReindex, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID, userID: userID}
		var err error
		res, err = s.write(ctx, func(tx domain.Transaction) error {
			prev, err := lockLive(tx, appletID)
			if err != nil {
				return err
			}
			current, err := loadTree(tx, prev)
			if err != nil {
				return err
			}
			req := requestOf(current)
			if changed = reindexOptions(&req); !changed {
				result = current
				return nil
			}
			if err := validation.ValidateTree(req); err != nil {
				return err
			}
			result, snap, err = s.applyUpdate(tx, prev, userID, req, version.BumpPatch)
			return err
		})
		if err != nil {
			return out, err
		}
		out.version = result.Version
		return out, nil
	})
	if err != nil {
		return domain.AppletFull{}, res, err
	}
	if changed {
		s.archive(ctx, snap)
	}
	return result, res, nil
}

// LinkEvent links a scheduler event to the current version of appletID.
// Linking an already active pair is a no-op.
func (s *Service) LinkEvent(ctx context.Context, appletID, eventIDVersion string) (domain.Result, error) {
	var res domain.Result
	err := s.run(ctx, OpLinkEvent, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID}
		var err error
		res, err = s.write(ctx, func(tx domain.Transaction) error {
			applet, err := lockLive(tx, appletID)
			if err != nil {
				return err
			}
			out.version = applet.Version
			appletIDV := domain.IDVersionOf(appletID, applet.Version)
			links, err := tx.ListEventLinks(appletIDV)
			if err != nil {
				return err
			}
			for _, l := range links {
				if l.EventIDVersion != eventIDVersion {
					continue
				}
				if l.IsDeleted {
					return &domain.ConflictError{
						Kind:     domain.ConflictEventUnlinked,
						AppletID: appletID,
						Message:  fmt.Sprintf("event %s was unlinked at version %s", eventIDVersion, applet.Version),
					}
				}
				return nil
			}
			return tx.AddEventLink(domain.EventLink{AppletIDVersion: appletIDV, EventIDVersion: eventIDVersion, CreatedAt: s.clock.Now()})
		})
		return out, err
	})
	return res, err
}

// UnlinkEvent soft-deletes the link between eventIDVersion and the current
// version of appletID. Later versions no longer carry it.
func (s *Service) UnlinkEvent(ctx context.Context, appletID, eventIDVersion string) (domain.Result, error) {
	var res domain.Result
	err := s.run(ctx, OpUnlinkEvent, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID}
		var err error
		res, err = s.write(ctx, func(tx domain.Transaction) error {
			applet, err := lockLive(tx, appletID)
			if err != nil {
				return err
			}
			out.version = applet.Version
			return tx.SoftDeleteEventLink(domain.IDVersionOf(appletID, applet.Version), eventIDVersion)
		})
		return out, err
	})
	return res, err
}

// ListEventLinks returns the active links of appletID at ver; an empty ver
// selects the current version.
func (s *Service) ListEventLinks(ctx context.Context, appletID, ver string) ([]domain.EventLink, error) {
	var links []domain.EventLink
	err := s.run(ctx, OpListEventLinks, func(ctx context.Context) (outcome, error) {
		out := outcome{entityID: appletID, version: ver}
		err := s.read(ctx, func(view domain.TransactionView) error {
			if ver == "" {
				applet, err := view.FindApplet(appletID)
				if err != nil {
					return err
				}
				ver = applet.Version
				out.version = ver
			}
			if _, err := view.FindAppletHistory(domain.IDVersionOf(appletID, ver)); err != nil {
				return err
			}
			all, err := view.ListEventLinks(domain.IDVersionOf(appletID, ver))
			if err != nil {
				return err
			}
			for _, l := range all {
				if !l.IsDeleted {
					links = append(links, l)
				}
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}
