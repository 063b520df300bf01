package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/metrics"
	red "membership-billing/internal/infra/redis"
)

var _ repository.PackageRepository = (*packageRepoCacheDecorator)(nil)

const packageListKey = "packages:all"

type packageRepoCacheDecorator struct {
	inner repository.PackageRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

// NewPackageRepoCacheDecorator caches catalog reads. Writes invalidate the
// affected keys before delegating.
func NewPackageRepoCacheDecorator(inner repository.PackageRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PackageRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "PackageCache").Logger()
	}
	return &packageRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func packageKey(id string) string { return fmt.Sprintf("package:%s", id) }

func (d *packageRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	key := packageKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.Package
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("package", "hit")
			return &p, nil
		}
	} else if !red.IsMiss(err) {
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest("package", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

func (d *packageRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	val, err := d.cache.Get(ctx, packageListKey)
	if err == nil {
		var pkgs []*model.Package
		if json.Unmarshal([]byte(val), &pkgs) == nil {
			metrics.IncCacheRequest("package_list", "hit")
			return pkgs, nil
		}
	} else if !red.IsMiss(err) {
		d.log.Warn().Err(err).Msg("cache read failed")
	}

	metrics.IncCacheRequest("package_list", "miss")
	pkgs, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(pkgs) > 0 {
		if b, err := json.Marshal(pkgs); err == nil {
			_ = d.cache.Set(ctx, packageListKey, b, d.ttl)
		}
	}
	return pkgs, nil
}

func (d *packageRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	_ = d.cache.Del(ctx, packageKey(p.ID), packageListKey)
	return d.inner.Save(ctx, tx, p)
}
