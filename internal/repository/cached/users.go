// Package cached decorates a port.UserRepository with cache-aside reads and
// invalidate-on-write semantics. The wrapped store stays authoritative: cache
// faults are logged and absorbed, store faults propagate unchanged.
package cached

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arklim/user-directory/internal/core/domain"
	"github.com/arklim/user-directory/internal/core/port"
	"github.com/arklim/user-directory/internal/infra/cache"
	"github.com/arklim/user-directory/internal/infra/telemetry"
	"github.com/arklim/user-directory/internal/repository"
)

const (
	userKeyPrefix = "user:"
	allUsersKey   = "users:all"

	DefaultUserTTL = 30 * time.Minute
	DefaultListTTL = 15 * time.Minute
)

const tracerName = "github.com/arklim/user-directory/internal/repository/cached"

// UserKey returns the cache key of a single user record.
func UserKey(id string) string {
	return userKeyPrefix + id
}

// AllUsersKey returns the cache key of the full user collection.
func AllUsersKey() string {
	return allUsersKey
}

type Option func(*UserRepository)

func WithTTLs(user, list time.Duration) Option {
	return func(r *UserRepository) {
		if user > 0 {
			r.userTTL = user
		}
		if list > 0 {
			r.listTTL = list
		}
	}
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *UserRepository) {
		r.metrics = m
	}
}

// WithFaultLogInterval limits cache fault warnings to one per interval; the
// rest are logged at debug level.
func WithFaultLogInterval(d time.Duration) Option {
	return func(r *UserRepository) {
		r.faultLog = &rate.Sometimes{First: 1, Interval: d}
	}
}

type UserRepository struct {
	store    port.UserRepository
	cache    *cache.Client
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	userTTL  time.Duration
	listTTL  time.Duration
	faultLog *rate.Sometimes
}

var _ port.UserRepository = (*UserRepository)(nil)

func NewUserRepository(store port.UserRepository, client *cache.Client, logger *zap.Logger, opts ...Option) *UserRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &UserRepository{
		store:    store,
		cache:    client,
		logger:   logger.Named("cached_users"),
		tracer:   otel.Tracer(tracerName),
		userTTL:  DefaultUserTTL,
		listTTL:  DefaultListTTL,
		faultLog: &rate.Sometimes{First: 1, Interval: time.Minute},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByID", trace.WithAttributes(
		attribute.String("user.id", id),
	))
	defer span.End()

	key := UserKey(id)
	snap, found, err := cache.Get[userSnapshot](ctx, r.cache, key)
	switch {
	case err != nil:
		r.cacheFault("get", key, err)
	case found:
		r.metrics.ObserveCache("get_user", telemetry.CacheHit)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		user := snap.user()
		return &user, nil
	default:
		r.metrics.ObserveCache("get_user", telemetry.CacheMiss)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	user, err := r.store.GetByID(ctx, id)
	if err != nil {
		recordStoreError(span, err)
		return nil, err
	}

	// A write that invalidates between the store read and this Set leaves
	// the older row cached until userTTL expires. Accepted staleness bound.
	if err := cache.Set(ctx, r.cache, key, snapshotOf(*user), r.userTTL); err != nil {
		r.cacheFault("set", key, err)
	} else {
		r.metrics.ObserveCache("set_user", telemetry.CacheStored)
	}

	return user, nil
}

// GetByEmail always reads the store. Email-derived keys are never written.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByEmail")
	defer span.End()

	user, err := r.store.GetByEmail(ctx, email)
	if err != nil {
		recordStoreError(span, err)
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.List")
	defer span.End()

	snaps, found, err := cache.Get[[]userSnapshot](ctx, r.cache, allUsersKey)
	switch {
	case err != nil:
		r.cacheFault("get", allUsersKey, err)
	case found:
		r.metrics.ObserveCache("list_users", telemetry.CacheHit)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		users := make([]domain.User, 0, len(snaps))
		for _, s := range snaps {
			users = append(users, s.user())
		}
		return users, nil
	default:
		r.metrics.ObserveCache("list_users", telemetry.CacheMiss)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	users, err := r.store.List(ctx)
	if err != nil {
		recordStoreError(span, err)
		return nil, err
	}

	snaps = make([]userSnapshot, 0, len(users))
	for _, u := range users {
		snaps = append(snaps, snapshotOf(u))
	}
	// Same race as GetByID; bounded by listTTL.
	if err := cache.Set(ctx, r.cache, allUsersKey, snaps, r.listTTL); err != nil {
		r.cacheFault("set", allUsersKey, err)
	} else {
		r.metrics.ObserveCache("set_users", telemetry.CacheStored)
	}

	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// Create inserts the user and drops the collection entry. The new record is
// not cached individually until it is first read.
func (r *UserRepository) Create(ctx context.Context, user domain.User) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Create")
	defer span.End()

	created, err := r.store.Create(ctx, user)
	if err != nil && !mayHaveWritten(err) {
		recordStoreError(span, err)
		return nil, err
	}
	r.invalidate(ctx, allUsersKey)
	if err != nil {
		recordStoreError(span, err)
		return nil, err
	}
	return created, nil
}

func (r *UserRepository) Update(ctx context.Context, user domain.User) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Update", trace.WithAttributes(
		attribute.String("user.id", user.ID),
	))
	defer span.End()

	updated, err := r.store.Update(ctx, user)
	if err != nil && !mayHaveWritten(err) {
		recordStoreError(span, err)
		return nil, err
	}
	r.invalidate(ctx, UserKey(user.ID), allUsersKey)
	if err != nil {
		recordStoreError(span, err)
		return nil, err
	}
	return updated, nil
}

// Delete removes the record and, unless it was already absent, both cache entries.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Delete", trace.WithAttributes(
		attribute.String("user.id", id),
	))
	defer span.End()

	err := r.store.Delete(ctx, id)
	if err != nil && !mayHaveWritten(err) {
		recordStoreError(span, err)
		return err
	}
	r.invalidate(ctx, UserKey(id), allUsersKey)
	if err != nil {
		recordStoreError(span, err)
	}
	return err
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.store.EmailExists(ctx, email)
}

func (r *UserRepository) invalidate(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := r.cache.Remove(ctx, key); err != nil {
			r.cacheFault("remove", key, err)
			continue
		}
		r.metrics.ObserveCache("remove", telemetry.CacheEvict)
	}
}

func (r *UserRepository) cacheFault(op, key string, err error) {
	r.metrics.ObserveCache(op, telemetry.CacheError)

	warned := false
	r.faultLog.Do(func() {
		warned = true
		r.logger.Warn("cache unavailable, falling back to store",
			zap.String("op", op),
			zap.String("key", key),
			zap.Error(err),
		)
	})
	if !warned {
		r.logger.Debug("cache fault", zap.String("op", op), zap.String("key", key), zap.Error(err))
	}
}

// mayHaveWritten is false for store errors that guarantee nothing changed.
// Any other failure might have committed, so the cache is invalidated anyway.
func mayHaveWritten(err error) bool {
	return !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrDuplicateEmail)
}

func recordStoreError(span trace.Span, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		span.SetAttributes(attribute.Bool("user.found", false))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "store operation failed")
}
