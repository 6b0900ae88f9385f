package redis

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	cacheKeySeparator     = ":"
	cacheDependencyPrefix = "deps"
)

// Encoded values start with one of these markers
const (
	valuePlain byte = iota
	valueGzip
)

// Manager manages Redis connections and cache operations
type Manager struct {
	config  *Config
	client  redis.UniversalClient
	metrics *Metrics
	logger  *zap.Logger
}

// NewManager creates a new Redis cache manager. No client is created when
// the cache is disabled.
func NewManager(config *Config, log *zap.Logger) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	manager := newManager(config, log)
	if config.Enabled {
		manager.client = newClient(config)
	}
	return manager, nil
}

// NewManagerWithClient creates a manager on an existing client
func NewManagerWithClient(client redis.UniversalClient, config *Config, log *zap.Logger) (*Manager, error) {
	if client == nil {
		return nil, ErrClientNotInitialized
	}
	if config == nil {
		config = DefaultConfig()
		config.Enabled = true
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	manager := newManager(config, log)
	manager.client = client
	return manager, nil
}

func newManager(config *Config, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{config: config, metrics: NewMetrics(), logger: log.Named("cache")}
}

func newClient(config *Config) redis.UniversalClient {
	if config.IsClusterMode() {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:           config.Cluster.Addresses,
			Username:        config.Cluster.Username,
			Password:        config.Cluster.Password,
			PoolSize:        config.PoolSize,
			MinIdleConns:    config.MinIdleConns,
			ConnMaxLifetime: config.MaxConnAge,
			PoolTimeout:     config.PoolTimeout,
			ConnMaxIdleTime: config.IdleTimeout,
			ReadTimeout:     config.ReadTimeout,
			WriteTimeout:    config.WriteTimeout,
			DialTimeout:     config.DialTimeout,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:            config.GetAddr(),
		Password:        config.Password,
		DB:              config.Database,
		PoolSize:        config.PoolSize,
		MinIdleConns:    config.MinIdleConns,
		ConnMaxLifetime: config.MaxConnAge,
		PoolTimeout:     config.PoolTimeout,
		ConnMaxIdleTime: config.IdleTimeout,
		ReadTimeout:     config.ReadTimeout,
		WriteTimeout:    config.WriteTimeout,
		DialTimeout:     config.DialTimeout,
	})
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Enabled reports whether cache operations reach Redis
func (m *Manager) Enabled() bool {
	return m.config.Enabled && m.client != nil
}

// Close closes the Redis connection
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Ping tests the Redis connection
// Returns nil if cache is disabled (not an error condition)
func (m *Manager) Ping(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// checkClient validates that cache is enabled and client is initialized
func (m *Manager) checkClient() error {
	if !m.config.Enabled {
		return ErrCacheDisabled
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// Key joins parts under the configured prefix
func (m *Manager) Key(parts ...string) string {
	if m.config.KeyPrefix != "" {
		parts = append([]string{m.config.KeyPrefix}, parts...)
	}
	return strings.Join(parts, cacheKeySeparator)
}

func (m *Manager) dependencyKey(dependency string) string {
	return m.Key(cacheDependencyPrefix, dependency)
}

// Get retrieves a raw value from cache
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.checkClient(); err != nil {
		return nil, err
	}

	data, err := m.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		if m.config.Logging.LogCacheMisses {
			m.logger.Debug("cache miss", zap.String("key", key))
		}
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	if m.config.Logging.LogCacheHits {
		m.logger.Debug("cache hit", zap.String("key", key))
	}
	return data, nil
}

// Set stores a raw value in cache with the default TTL
func (m *Manager) Set(ctx context.Context, key string, value []byte) error {
	return m.SetWithTTL(ctx, key, value, m.config.DefaultTTL)
}

// SetWithTTL stores a raw value in cache with custom TTL
func (m *Manager) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	return m.client.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key from cache
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.DeleteKeys(ctx, []string{key})
}

// DeleteKeys removes multiple keys from cache
func (m *Manager) DeleteKeys(ctx context.Context, keys []string) error {
	if err := m.checkClient(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	return m.client.Del(ctx, keys...).Err()
}

// Exists checks if a key exists in cache
func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.checkClient(); err != nil {
		return false, err
	}

	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InvalidatePattern removes keys matching a pattern using SCAN instead of KEYS
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	var cursor uint64
	const scanBatchSize = 100

	for {
		batch, next, err := m.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys with pattern %s: %w", pattern, err)
		}
		if len(batch) > 0 {
			if err := m.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete batch: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}

// SetValue encodes value with msgpack and stores it under key. The key is
// registered with every dependency so that InvalidateDependency drops it.
func (m *Manager) SetValue(ctx context.Context, key string, value interface{}, dependencies ...string) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	data, err := m.encode(value)
	if err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, key, data, m.config.DefaultTTL)
	for _, dep := range dependencies {
		depKey := m.dependencyKey(dep)
		pipe.SAdd(ctx, depKey, key)
		// the set outlives its members so no live key goes untracked
		pipe.Expire(ctx, depKey, m.config.DefaultTTL*2)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		for _, dep := range dependencies {
			m.metrics.RecordError(dep)
		}
		return fmt.Errorf("redis set error: %w", err)
	}
	for _, dep := range dependencies {
		m.metrics.recordStore(dep)
	}
	return nil
}

// GetValue decodes the value stored under key into target. Integers held in
// interface values decode as int64 and floats as float64. It returns
// ErrKeyNotFound on a miss.
func (m *Manager) GetValue(ctx context.Context, key string, target interface{}) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return m.decode(data, target)
}

// InvalidateDependency deletes every key registered with dependency
func (m *Manager) InvalidateDependency(ctx context.Context, dependency string) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	depKey := m.dependencyKey(dependency)
	keys, err := m.client.SMembers(ctx, depKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get dependencies: %w", err)
	}

	if err := m.DeleteKeys(ctx, append(keys, depKey)); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", dependency, err)
	}
	m.metrics.recordInvalidation(dependency)
	if m.config.Logging.LogInvalidations {
		m.logger.Debug("cache invalidated",
			zap.String("dependency", dependency),
			zap.Int("keys", len(keys)))
	}
	return nil
}

// GetDependencies returns all cache keys registered with dependency
func (m *Manager) GetDependencies(ctx context.Context, dependency string) ([]string, error) {
	if err := m.checkClient(); err != nil {
		return nil, err
	}

	keys, err := m.client.SMembers(ctx, m.dependencyKey(dependency)).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	return keys, err
}

func (m *Manager) encode(value interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}

	if m.config.CompressThreshold > 0 && len(raw) > m.config.CompressThreshold {
		compressed, err := compressData(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
		}
		if len(compressed) < len(raw) {
			m.metrics.recordCompression(len(raw) - len(compressed))
			return append([]byte{valueGzip}, compressed...), nil
		}
	}
	return append([]byte{valuePlain}, raw...), nil
}

func (m *Manager) decode(data []byte, target interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty value", ErrSerializationFailed)
	}

	raw := data[1:]
	switch data[0] {
	case valuePlain:
	case valueGzip:
		var err error
		if raw, err = decompressData(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
		}
	default:
		return fmt.Errorf("%w: unknown value marker %d", ErrSerializationFailed, data[0])
	}

	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return nil
}

func compressData(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressData(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Metrics returns the per-table counters of the manager
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// GetMetrics returns a snapshot of the per-table counters
func (m *Manager) GetMetrics() Stats {
	return m.metrics.Snapshot()
}

// ResetMetrics clears the counters
func (m *Manager) ResetMetrics() {
	m.metrics.Reset()
}
