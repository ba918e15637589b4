package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/models"
)

// RedisStore keeps the memory in Redis: one hash of severities, one hash of
// JSON status entries and a plain key holding the update time.
type RedisStore struct {
	*state
	client *redis.Client
	prefix string
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewRedisStore(client *redis.Client, prefix string, clock clockwork.Clock, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		state:  newState(),
		client: client,
		prefix: prefix,
		clock:  clock,
		logger: logger,
	}
}

func (r *RedisStore) severityKey() string { return r.prefix + "memory" }
func (r *RedisStore) citiesKey() string   { return r.prefix + "cities" }
func (r *RedisStore) updatedKey() string  { return r.prefix + "updated" }

// Load replaces the in-process memory with the Redis contents. On any error
// the memory is left empty.
func (r *RedisStore) Load(ctx context.Context) error {
	severities, err := r.client.HGetAll(ctx, r.severityKey()).Result()
	if err != nil {
		r.clear()
		return fmt.Errorf("load severities: %w", err)
	}
	cities, err := r.client.HGetAll(ctx, r.citiesKey()).Result()
	if err != nil {
		r.clear()
		return fmt.Errorf("load cities: %w", err)
	}

	snap := models.StatusSnapshot{
		Memory: make(map[string]models.MemoryEntry, len(severities)),
	}
	for name, raw := range severities {
		sev, err := models.ParseSeverity(raw)
		if err != nil {
			r.logger.Warn("Ignoring stored severity", zap.String("city", name), zap.Error(err))
			continue
		}
		snap.Memory[name] = models.MemoryEntry{LastSeverity: sev}
	}
	for name, raw := range cities {
		var status models.CityStatus
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			r.logger.Warn("Ignoring stored city status", zap.String("city", name), zap.Error(err))
			continue
		}
		snap.Cities = append(snap.Cities, status)
	}
	if updated, err := r.client.Get(ctx, r.updatedKey()).Result(); err == nil {
		snap.UpdateTime, _ = time.Parse(time.RFC3339Nano, updated)
	}

	r.restore(snap)
	return nil
}

// Flush rewrites both hashes in one transaction.
func (r *RedisStore) Flush(ctx context.Context) error {
	now := r.clock.Now()
	r.touch(now)
	snap := r.Snapshot()

	severities := make(map[string]interface{}, len(snap.Memory))
	for name, entry := range snap.Memory {
		severities[name] = strconv.Itoa(int(entry.LastSeverity))
	}
	cities := make(map[string]interface{}, len(snap.Cities))
	for _, c := range snap.Cities {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode city %s: %w", c.Name, err)
		}
		cities[c.Name] = string(data)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.severityKey(), r.citiesKey())
	if len(severities) > 0 {
		pipe.HSet(ctx, r.severityKey(), severities)
	}
	if len(cities) > 0 {
		pipe.HSet(ctx, r.citiesKey(), cities)
	}
	pipe.Set(ctx, r.updatedKey(), now.UTC().Format(time.RFC3339Nano), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis transaction: %w", err)
	}
	return nil
}
