// Package cassandra provides a Cassandra storage implementation.
//
// Requires Cassandra 5.0+ for Storage Attached Index (SAI) support.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"

	"github.com/axonops/axonops-schema-registry/internal/storage"
)

// Compile-time interface compliance check.
var _ storage.AuthStorage = (*Store)(nil)

// Config holds Cassandra connection configuration.
type Config struct {
	Hosts             []string      `json:"hosts" yaml:"hosts"`
	Port              int           `json:"port" yaml:"port"`
	Keyspace          string        `json:"keyspace" yaml:"keyspace"`
	Username          string        `json:"username" yaml:"username"`
	Password          string        `json:"password" yaml:"password"`
	LocalDC           string        `json:"local_dc" yaml:"local_dc"`
	Consistency       string        `json:"consistency" yaml:"consistency"`
	ReadConsistency   string        `json:"read_consistency" yaml:"read_consistency"`
	WriteConsistency  string        `json:"write_consistency" yaml:"write_consistency"`
	SerialConsistency string        `json:"serial_consistency" yaml:"serial_consistency"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
	ConnectTimeout    time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
	Migrate           bool          `json:"migrate" yaml:"migrate"`

	// MaxRetries for CAS operations (ID allocation, version allocation)
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// IDBlockSize is the number of IDs to reserve per LWT call.
	// Higher values reduce LWT frequency but may leave gaps on crash. Default: 50.
	IDBlockSize int `json:"id_block_size" yaml:"id_block_size"`
}

// Store implements storage.AuthStorage on Cassandra. Schema, subject,
// config, mode, exporter, and KEK/DEK state is never stored here — that
// state is log-derived (replicated schemas topic), in-memory only.
type Store struct {
	cfg              Config
	cluster          *gocql.ClusterConfig
	session          *gocql.Session
	readConsistency  gocql.Consistency
	writeConsistency gocql.Consistency
}

// NewStore connects to Cassandra and optionally runs migrations.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	// Apply defaults
	if len(cfg.Hosts) == 0 {
		cfg.Hosts = []string{"127.0.0.1"}
	}
	if cfg.Port == 0 {
		cfg.Port = 9042
	}
	if cfg.Keyspace == "" {
		cfg.Keyspace = "axonops_schema_registry"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 50
	}
	if cfg.IDBlockSize <= 0 {
		cfg.IDBlockSize = 50
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Port = cfg.Port
	cluster.Keyspace = cfg.Keyspace
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.ConnectTimeout

	if cfg.LocalDC != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.DCAwareRoundRobinPolicy(cfg.LocalDC)
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}

	// Parse consistency levels
	defaultConsistency := gocql.LocalQuorum
	if cfg.Consistency != "" {
		c, err := parseConsistency(cfg.Consistency)
		if err != nil {
			return nil, err
		}
		defaultConsistency = c
	}
	cluster.Consistency = defaultConsistency

	readConsistency := defaultConsistency
	writeConsistency := defaultConsistency
	if cfg.ReadConsistency != "" {
		c, err := parseConsistency(cfg.ReadConsistency)
		if err != nil {
			return nil, err
		}
		readConsistency = c
	}
	if cfg.WriteConsistency != "" {
		c, err := parseConsistency(cfg.WriteConsistency)
		if err != nil {
			return nil, err
		}
		writeConsistency = c
	}

	// Parse serial consistency (for LWT operations: IF NOT EXISTS, IF ... = ?)
	serialConsistency := gocql.LocalSerial
	if cfg.SerialConsistency != "" {
		c, err := parseSerialConsistency(cfg.SerialConsistency)
		if err != nil {
			return nil, err
		}
		serialConsistency = c
	}
	cluster.SerialConsistency = serialConsistency

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Cassandra: %w", err)
	}

	s := &Store{
		cfg:              cfg,
		cluster:          cluster,
		session:          session,
		readConsistency:  readConsistency,
		writeConsistency: writeConsistency,
	}

	if cfg.Migrate {
		if err := Migrate(session, cfg.Keyspace); err != nil {
			session.Close()
			return nil, err
		}
	}

	return s, nil
}

// Close closes the Cassandra session.
func (s *Store) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

// IsHealthy checks if the Cassandra connection is healthy.
func (s *Store) IsHealthy(ctx context.Context) bool {
	var now time.Time
	err := s.session.Query(`SELECT now() FROM system.local`).WithContext(ctx).Scan(&now)
	return err == nil
}

// qident quotes a keyspace name so it can be interpolated into a CQL
// statement's table qualifier without colliding with a reserved word.
func qident(keyspace string) string {
	return `"` + keyspace + `"`
}

// readQuery creates a query with read consistency.
func (s *Store) readQuery(stmt string, values ...interface{}) *gocql.Query {
	return s.session.Query(stmt, values...).Consistency(s.readConsistency)
}

// writeQuery creates a query with write consistency.
func (s *Store) writeQuery(stmt string, values ...interface{}) *gocql.Query {
	return s.session.Query(stmt, values...).Consistency(s.writeConsistency)
}

// ---------- User Operations ----------

// CreateUser creates a new user.
func (s *Store) CreateUser(ctx context.Context, user *storage.UserRecord) error {
	if user == nil {
		return errors.New("user is nil")
	}
	if user.Username == "" {
		return errors.New("username is required")
	}

	existing, err := s.GetUserByUsername(ctx, user.Username)
	if err == nil && existing != nil {
		return storage.ErrUserExists
	}

	if user.ID == 0 {
		id, err := s.NextID(ctx, ".")
		if err != nil {
			return err
		}
		user.ID = id
	}

	nowUUID := gocql.TimeUUID()
	now := nowUUID.Time()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	createdUUID := gocql.UUIDFromTime(user.CreatedAt)
	updatedUUID := gocql.UUIDFromTime(user.UpdatedAt)

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(
		fmt.Sprintf(`INSERT INTO %s.users_by_id (user_id, email, name, password_hash, roles, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, qident(s.cfg.Keyspace)),
		user.ID, user.Email, user.Username, user.PasswordHash, []string{user.Role}, user.Enabled, createdUUID, updatedUUID,
	)
	batch.Query(
		fmt.Sprintf(`INSERT INTO %s.users_by_email (email, user_id, name, password_hash, roles, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, qident(s.cfg.Keyspace)),
		user.Username, user.ID, user.Username, user.PasswordHash, []string{user.Role}, user.Enabled, createdUUID, updatedUUID,
	)
	return s.session.ExecuteBatch(batch)
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*storage.UserRecord, error) {
	var email, name, pw string
	var roles []string
	var enabled bool
	var createdUUID, updatedUUID gocql.UUID
	err := s.readQuery(
		fmt.Sprintf(`SELECT email, name, password_hash, roles, enabled, created_at, updated_at FROM %s.users_by_id WHERE user_id = ?`, qident(s.cfg.Keyspace)),
		id,
	).WithContext(ctx).Scan(&email, &name, &pw, &roles, &enabled, &createdUUID, &updatedUUID)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	role := ""
	if len(roles) > 0 {
		role = roles[0]
	}

	return &storage.UserRecord{
		ID:           id,
		Username:     name,
		Email:        email,
		PasswordHash: pw,
		Role:         role,
		Enabled:      enabled,
		CreatedAt:    createdUUID.Time(),
		UpdatedAt:    updatedUUID.Time(),
	}, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*storage.UserRecord, error) {
	if username == "" {
		return nil, storage.ErrUserNotFound
	}
	var userID int64
	err := s.readQuery(
		fmt.Sprintf(`SELECT user_id FROM %s.users_by_email WHERE email = ?`, qident(s.cfg.Keyspace)),
		username,
	).WithContext(ctx).Scan(&userID)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return s.GetUserByID(ctx, userID)
}

// UpdateUser updates a user.
func (s *Store) UpdateUser(ctx context.Context, user *storage.UserRecord) error {
	if user == nil {
		return errors.New("user is nil")
	}
	if user.ID == 0 {
		return errors.New("user id is required")
	}

	existing, err := s.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}

	if existing.Username != user.Username {
		existingByName, err := s.GetUserByUsername(ctx, user.Username)
		if err == nil && existingByName.ID != user.ID {
			return storage.ErrUserExists
		}
	}

	user.UpdatedAt = time.Now()
	updatedUUID := gocql.UUIDFromTime(user.UpdatedAt)
	createdUUID := gocql.UUIDFromTime(user.CreatedAt)

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(
		fmt.Sprintf(`UPDATE %s.users_by_id SET email = ?, name = ?, password_hash = ?, roles = ?, enabled = ?, updated_at = ? WHERE user_id = ?`, qident(s.cfg.Keyspace)),
		user.Email, user.Username, user.PasswordHash, []string{user.Role}, user.Enabled, updatedUUID, user.ID,
	)

	if existing.Username != user.Username {
		batch.Query(
			fmt.Sprintf(`DELETE FROM %s.users_by_email WHERE email = ?`, qident(s.cfg.Keyspace)),
			existing.Username,
		)
	}

	batch.Query(
		fmt.Sprintf(`INSERT INTO %s.users_by_email (email, user_id, name, password_hash, roles, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, qident(s.cfg.Keyspace)),
		user.Username, user.ID, user.Username, user.PasswordHash, []string{user.Role}, user.Enabled, createdUUID, updatedUUID,
	)

	return s.session.ExecuteBatch(batch)
}

// DeleteUser deletes a user.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(fmt.Sprintf(`DELETE FROM %s.users_by_id WHERE user_id = ?`, qident(s.cfg.Keyspace)), id)
	batch.Query(fmt.Sprintf(`DELETE FROM %s.users_by_email WHERE email = ?`, qident(s.cfg.Keyspace)), u.Username)
	return s.session.ExecuteBatch(batch)
}

// ListUsers retrieves all users.
func (s *Store) ListUsers(ctx context.Context) ([]*storage.UserRecord, error) {
	iter := s.readQuery(
		fmt.Sprintf(`SELECT user_id FROM %s.users_by_id`, qident(s.cfg.Keyspace)),
	).WithContext(ctx).Iter()

	var userID int64
	var out []*storage.UserRecord
	for iter.Scan(&userID) {
		u, err := s.GetUserByID(ctx, userID)
		if err == nil {
			out = append(out, u)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---------- API Key Operations ----------

// CreateAPIKey creates a new API key.
func (s *Store) CreateAPIKey(ctx context.Context, key *storage.APIKeyRecord) error {
	if key == nil {
		return errors.New("api key is nil")
	}
	if key.UserID == 0 {
		return errors.New("user_id is required")
	}
	if key.KeyHash == "" {
		return errors.New("key_hash is required")
	}

	if key.ID == 0 {
		id, err := s.NextID(ctx, ".")
		if err != nil {
			return err
		}
		key.ID = id
	}

	createdUUID := gocql.TimeUUID()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = createdUUID.Time()
	} else {
		createdUUID = gocql.UUIDFromTime(key.CreatedAt)
	}

	if !key.Enabled {
		key.Enabled = true
	}

	if _, err := s.GetAPIKeyByHash(ctx, key.KeyHash); err == nil {
		return storage.ErrAPIKeyExists
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(
		fmt.Sprintf(`INSERT INTO %s.api_keys_by_id (api_key_id, user_id, name, api_key_hash, key_prefix, role, enabled, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, qident(s.cfg.Keyspace)),
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Role, key.Enabled, createdUUID, key.ExpiresAt,
	)
	batch.Query(
		fmt.Sprintf(`INSERT INTO %s.api_keys_by_user (user_id, api_key_id, name, api_key_hash, key_prefix, role, enabled, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, qident(s.cfg.Keyspace)),
		key.UserID, key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Role, key.Enabled, createdUUID, key.ExpiresAt,
	)
	batch.Query(
		fmt.Sprintf(`INSERT INTO %s.api_keys_by_hash (api_key_hash, api_key_id, user_id, name, key_prefix, role, enabled, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, qident(s.cfg.Keyspace)),
		key.KeyHash, key.ID, key.UserID, key.Name, key.KeyPrefix, key.Role, key.Enabled, createdUUID, key.ExpiresAt,
	)
	return s.session.ExecuteBatch(batch)
}

// GetAPIKeyByID retrieves an API key by ID.
func (s *Store) GetAPIKeyByID(ctx context.Context, id int64) (*storage.APIKeyRecord, error) {
	var userID int64
	var name, hash, keyPrefix, role string
	var enabled bool
	var createdUUID gocql.UUID
	var expiresAt, lastUsed time.Time
	err := s.readQuery(
		fmt.Sprintf(`SELECT user_id, name, api_key_hash, key_prefix, role, enabled, created_at, expires_at, last_used FROM %s.api_keys_by_id WHERE api_key_id = ?`, qident(s.cfg.Keyspace)),
		id,
	).WithContext(ctx).Scan(&userID, &name, &hash, &keyPrefix, &role, &enabled, &createdUUID, &expiresAt, &lastUsed)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, storage.ErrAPIKeyNotFound
		}
		return nil, err
	}

	rec := &storage.APIKeyRecord{
		ID:        id,
		UserID:    userID,
		Name:      name,
		KeyHash:   hash,
		KeyPrefix: keyPrefix,
		Role:      role,
		Enabled:   enabled,
		CreatedAt: createdUUID.Time(),
		ExpiresAt: expiresAt,
	}
	if !lastUsed.IsZero() {
		rec.LastUsed = &lastUsed
	}
	return rec, nil
}

// GetAPIKeyByHash retrieves an API key by its hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*storage.APIKeyRecord, error) {
	var keyID, userID int64
	var name, keyPrefix, role string
	var enabled bool
	var createdUUID gocql.UUID
	var expiresAt, lastUsed time.Time
	err := s.readQuery(
		fmt.Sprintf(`SELECT api_key_id, user_id, name, key_prefix, role, enabled, created_at, expires_at, last_used FROM %s.api_keys_by_hash WHERE api_key_hash = ?`, qident(s.cfg.Keyspace)),
		keyHash,
	).WithContext(ctx).Scan(&keyID, &userID, &name, &keyPrefix, &role, &enabled, &createdUUID, &expiresAt, &lastUsed)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, storage.ErrAPIKeyNotFound
		}
		return nil, err
	}

	rec := &storage.APIKeyRecord{
		ID:        keyID,
		UserID:    userID,
		Name:      name,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		Role:      role,
		Enabled:   enabled,
		CreatedAt: createdUUID.Time(),
		ExpiresAt: expiresAt,
	}
	if !lastUsed.IsZero() {
		rec.LastUsed = &lastUsed
	}
	return rec, nil
}

// GetAPIKeyByUserAndName retrieves an API key by user ID and name.
func (s *Store) GetAPIKeyByUserAndName(ctx context.Context, userID int64, name string) (*storage.APIKeyRecord, error) {
	keys, err := s.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		if k.Name == name {
			return k, nil
		}
	}
	return nil, storage.ErrAPIKeyNotFound
}

// UpdateAPIKey updates an API key.
func (s *Store) UpdateAPIKey(ctx context.Context, key *storage.APIKeyRecord) error {
	if key == nil {
		return errors.New("api key is nil")
	}
	if key.ID == 0 {
		return errors.New("api key id is required")
	}

	existing, err := s.GetAPIKeyByID(ctx, key.ID)
	if err != nil {
		return err
	}

	createdUUID := gocql.UUIDFromTime(key.CreatedAt)

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(
		fmt.Sprintf(`UPDATE %s.api_keys_by_id SET name = ?, key_prefix = ?, role = ?, enabled = ?, expires_at = ? WHERE api_key_id = ?`, qident(s.cfg.Keyspace)),
		key.Name, key.KeyPrefix, key.Role, key.Enabled, key.ExpiresAt, key.ID,
	)
	batch.Query(
		fmt.Sprintf(`UPDATE %s.api_keys_by_user SET name = ?, key_prefix = ?, role = ?, enabled = ?, expires_at = ? WHERE user_id = ? AND api_key_id = ?`, qident(s.cfg.Keyspace)),
		key.Name, key.KeyPrefix, key.Role, key.Enabled, key.ExpiresAt, key.UserID, key.ID,
	)

	if existing.KeyHash != key.KeyHash {
		batch.Query(
			fmt.Sprintf(`DELETE FROM %s.api_keys_by_hash WHERE api_key_hash = ?`, qident(s.cfg.Keyspace)),
			existing.KeyHash,
		)
		batch.Query(
			fmt.Sprintf(`INSERT INTO %s.api_keys_by_hash (api_key_hash, api_key_id, user_id, name, key_prefix, role, enabled, created_at, expires_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, qident(s.cfg.Keyspace)),
			key.KeyHash, key.ID, key.UserID, key.Name, key.KeyPrefix, key.Role, key.Enabled, createdUUID, key.ExpiresAt,
		)
	} else {
		batch.Query(
			fmt.Sprintf(`UPDATE %s.api_keys_by_hash SET name = ?, key_prefix = ?, role = ?, enabled = ?, expires_at = ? WHERE api_key_hash = ?`, qident(s.cfg.Keyspace)),
			key.Name, key.KeyPrefix, key.Role, key.Enabled, key.ExpiresAt, key.KeyHash,
		)
	}

	return s.session.ExecuteBatch(batch)
}

// DeleteAPIKey deletes an API key.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64) error {
	rec, err := s.GetAPIKeyByID(ctx, id)
	if err != nil {
		return err
	}

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(fmt.Sprintf(`DELETE FROM %s.api_keys_by_id WHERE api_key_id = ?`, qident(s.cfg.Keyspace)), id)
	batch.Query(fmt.Sprintf(`DELETE FROM %s.api_keys_by_user WHERE user_id = ? AND api_key_id = ?`, qident(s.cfg.Keyspace)), rec.UserID, id)
	batch.Query(fmt.Sprintf(`DELETE FROM %s.api_keys_by_hash WHERE api_key_hash = ?`, qident(s.cfg.Keyspace)), rec.KeyHash)
	return s.session.ExecuteBatch(batch)
}

// ListAPIKeys retrieves all API keys.
func (s *Store) ListAPIKeys(ctx context.Context) ([]*storage.APIKeyRecord, error) {
	iter := s.readQuery(
		fmt.Sprintf(`SELECT api_key_id FROM %s.api_keys_by_id`, qident(s.cfg.Keyspace)),
	).WithContext(ctx).Iter()

	var keyID int64
	var out []*storage.APIKeyRecord
	for iter.Scan(&keyID) {
		rec, err := s.GetAPIKeyByID(ctx, keyID)
		if err == nil {
			out = append(out, rec)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListAPIKeysByUserID retrieves all API keys for a user.
func (s *Store) ListAPIKeysByUserID(ctx context.Context, userID int64) ([]*storage.APIKeyRecord, error) {
	iter := s.readQuery(
		fmt.Sprintf(`SELECT api_key_id FROM %s.api_keys_by_user WHERE user_id = ?`, qident(s.cfg.Keyspace)),
		userID,
	).WithContext(ctx).Iter()

	var keyID int64
	var out []*storage.APIKeyRecord
	for iter.Scan(&keyID) {
		rec, err := s.GetAPIKeyByID(ctx, keyID)
		if err == nil {
			out = append(out, rec)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAPIKeyLastUsed updates the last used timestamp for an API key.
func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id int64) error {
	key, err := s.GetAPIKeyByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(
		fmt.Sprintf(`UPDATE %s.api_keys_by_id SET last_used = ? WHERE api_key_id = ?`, qident(s.cfg.Keyspace)),
		now, id,
	)
	batch.Query(
		fmt.Sprintf(`UPDATE %s.api_keys_by_user SET last_used = ? WHERE user_id = ? AND api_key_id = ?`, qident(s.cfg.Keyspace)),
		now, key.UserID, id,
	)
	batch.Query(
		fmt.Sprintf(`UPDATE %s.api_keys_by_hash SET last_used = ? WHERE api_key_hash = ?`, qident(s.cfg.Keyspace)),
		now, key.KeyHash,
	)
	return s.session.ExecuteBatch(batch)
}

// ---------- Helpers ----------

func parseConsistency(v string) (gocql.Consistency, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ANY":
		return gocql.Any, nil
	case "ONE":
		return gocql.One, nil
	case "TWO":
		return gocql.Two, nil
	case "THREE":
		return gocql.Three, nil
	case "QUORUM":
		return gocql.Quorum, nil
	case "ALL":
		return gocql.All, nil
	case "LOCAL_ONE":
		return gocql.LocalOne, nil
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum, nil
	case "EACH_QUORUM":
		return gocql.EachQuorum, nil
	default:
		return 0, fmt.Errorf("unknown cassandra consistency: %q", v)
	}
}

func parseSerialConsistency(v string) (gocql.Consistency, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "SERIAL":
		return gocql.Serial, nil
	case "LOCAL_SERIAL":
		return gocql.LocalSerial, nil
	default:
		return 0, fmt.Errorf("invalid cassandra serial consistency: %q (must be SERIAL or LOCAL_SERIAL)", v)
	}
}

