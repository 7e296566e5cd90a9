package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"camdl/internal/config"
	"camdl/internal/services"
)

// Selection is a camera type paired with the address it was last used with.
type Selection struct {
	CameraType string `json:"camera_type"`
	IP         string `json:"ip"`
}

// Snapshot is the full settings view returned to API clients.
type Snapshot struct {
	LastUsed Selection         `json:"last_used"`
	Cameras  map[string]string `json:"cameras"`
}

// Store persists camera addresses and the last used selection in SQLite.
// Writes are last-writer-wins per camera type.
type Store struct {
	db       *sql.DB
	path     string
	defaults map[string]string
	fallback Selection
}

// Open initializes or connects to the settings database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.SettingsDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in force.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	defaults := make(map[string]string, len(cfg.Cameras))
	for name, ip := range cfg.Cameras {
		defaults[name] = ip
	}
	store := &Store{
		db:       db,
		path:     dbPath,
		defaults: defaults,
		fallback: Selection{CameraType: cfg.DefaultCamera, IP: cfg.Cameras[cfg.DefaultCamera]},
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SetLastUsed records ip as the address for cameraType and marks the pair as
// the last used selection.
func (s *Store) SetLastUsed(ctx context.Context, cameraType, ip string) error {
	cameraType = strings.ToLower(strings.TrimSpace(cameraType))
	ip = strings.TrimSpace(ip)
	if !config.ValidCameraType(cameraType) {
		return services.Wrap(services.ErrValidation, "settings", "set last used", fmt.Sprintf("invalid camera type %q", cameraType), nil)
	}
	if ip == "" {
		return services.Wrap(services.ErrValidation, "settings", "set last used", "ip address is required", nil)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO camera_settings (camera_type, ip_address, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(camera_type) DO UPDATE SET ip_address = excluded.ip_address, updated_at = excluded.updated_at`,
		cameraType, ip, timestamp,
	); err != nil {
		return fmt.Errorf("upsert camera setting: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO last_used (id, camera_type, ip_address, updated_at) VALUES (1, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET camera_type = excluded.camera_type, ip_address = excluded.ip_address, updated_at = excluded.updated_at`,
		cameraType, ip, timestamp,
	); err != nil {
		return fmt.Errorf("upsert last used: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// Address returns the stored address for cameraType, falling back to the
// configured default. Unknown camera types yield services.ErrNotFound.
func (s *Store) Address(ctx context.Context, cameraType string) (string, error) {
	cameraType = strings.ToLower(strings.TrimSpace(cameraType))
	var ip string
	err := s.db.QueryRowContext(ctx, "SELECT ip_address FROM camera_settings WHERE camera_type = ?", cameraType).Scan(&ip)
	switch {
	case err == nil:
		return ip, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return "", fmt.Errorf("query camera setting: %w", err)
	}
	if ip, ok := s.defaults[cameraType]; ok {
		return ip, nil
	}
	return "", services.Wrap(services.ErrNotFound, "settings", "address", fmt.Sprintf("no address known for camera type %q", cameraType), nil)
}

// LastUsed returns the most recent selection, or the configured default camera
// when nothing has been recorded.
func (s *Store) LastUsed(ctx context.Context) (Selection, error) {
	var sel Selection
	err := s.db.QueryRowContext(ctx, "SELECT camera_type, ip_address FROM last_used WHERE id = 1").Scan(&sel.CameraType, &sel.IP)
	if errors.Is(err, sql.ErrNoRows) {
		return s.fallback, nil
	}
	if err != nil {
		return Selection{}, fmt.Errorf("query last used: %w", err)
	}
	return sel, nil
}

// Cameras returns configured defaults overlaid with stored addresses.
func (s *Store) Cameras(ctx context.Context) (map[string]string, error) {
	cameras := make(map[string]string, len(s.defaults))
	for name, ip := range s.defaults {
		cameras[name] = ip
	}
	rows, err := s.db.QueryContext(ctx, "SELECT camera_type, ip_address FROM camera_settings")
	if err != nil {
		return nil, fmt.Errorf("query camera settings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, ip string
		if err := rows.Scan(&name, &ip); err != nil {
			return nil, fmt.Errorf("scan camera setting: %w", err)
		}
		cameras[name] = ip
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate camera settings: %w", err)
	}
	return cameras, nil
}

// Snapshot returns the last used selection together with every known camera.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	last, err := s.LastUsed(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	cameras, err := s.Cameras(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{LastUsed: last, Cameras: cameras}, nil
}

// CameraTypes returns the known camera types in stable order.
func (snap Snapshot) CameraTypes() []string {
	names := make([]string, 0, len(snap.Cameras))
	for name := range snap.Cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
