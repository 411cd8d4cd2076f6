// Package settings holds non-secret preferences and the wallet registry in
// a local SQLite database.
package settings

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-wallet/internal/constants"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

var (
	ErrStorage        = errors.New("settings storage error")
	ErrWalletNotFound = errors.New("wallet not registered")
)

type settingModel struct {
	bun.BaseModel `bun:"table:settings"`

	Key   string `bun:"key,pk"`
	Value string `bun:"value,notnull"`
}

type walletModel struct {
	bun.BaseModel `bun:"table:wallets"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Address   string    `bun:"address,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// WalletRecord is a registered wallet. No key material is stored here.
type WalletRecord struct {
	ID        uuid.UUID
	Name      string
	Address   string
	CreatedAt time.Time
}

type Store struct {
	mu  sync.Mutex
	db  *bun.DB
	now func() time.Time
}

// Open creates or opens the database at path. ":memory:" gives a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), constants.DirectoryPerm); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "mkdir %s", filepath.Dir(path)), ErrStorage)
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "open sqlite"), ErrStorage)
	}
	// SQLite serializes writers; one connection also keeps :memory: shared.
	sqlDB.SetMaxOpenConns(1)

	s := &Store{
		db:  bun.NewDB(sqlDB, sqlitedialect.New()),
		now: time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, m := range []any{(*settingModel)(nil), (*walletModel)(nil)} {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return errors.Mark(errors.Wrap(err, "create table"), ErrStorage)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var m settingModel
	err := s.db.NewSelect().Model(&m).Where("key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Mark(errors.Wrapf(err, "read setting %s", key), ErrStorage)
	}
	return m.Value, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.NewInsert().
		Model(&settingModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "write setting %s", key), ErrStorage)
	}
	return nil
}

func (s *Store) unset(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().Model((*settingModel)(nil)).Where("key = ?", key).Exec(ctx)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "delete setting %s", key), ErrStorage)
	}
	return nil
}

// SelectedWalletAddress returns "" when no wallet is selected.
func (s *Store) SelectedWalletAddress(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, _, err := s.get(ctx, constants.SettingSelectedWalletAddress)
	return v, err
}

// SetSelectedWalletAddress stores address; an empty address clears it.
func (s *Store) SetSelectedWalletAddress(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	address = strings.TrimSpace(address)
	if address == "" {
		return s.unset(ctx, constants.SettingSelectedWalletAddress)
	}
	return s.set(ctx, constants.SettingSelectedWalletAddress, address)
}

func (s *Store) HasCompletedOnboarding(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, err := s.get(ctx, constants.SettingHasCompletedOnboarding)
	if err != nil || !ok {
		return false, err
	}
	done, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn("ignoring malformed onboarding flag", "value", v)
		return false, nil
	}
	return done, nil
}

func (s *Store) SetCompletedOnboarding(ctx context.Context, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.set(ctx, constants.SettingHasCompletedOnboarding, strconv.FormatBool(done))
}

// AddWallet registers address under name. Registering an address that is
// already present (in any letter case) returns the existing record.
func (s *Store) AddWallet(ctx context.Context, name, address string) (WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address = strings.TrimSpace(address)
	if address == "" {
		return WalletRecord{}, errors.New("empty wallet address")
	}

	existing, err := s.findWallet(ctx, address)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return WalletRecord{}, err
	}

	m := walletModel{
		ID:        uuid.NewString(),
		Name:      name,
		Address:   address,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		return WalletRecord{}, errors.Mark(errors.Wrap(err, "insert wallet"), ErrStorage)
	}
	return toRecord(m)
}

func (s *Store) findWallet(ctx context.Context, address string) (WalletRecord, error) {
	var m walletModel
	err := s.db.NewSelect().Model(&m).Where("lower(address) = lower(?)", address).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return WalletRecord{}, errors.Wrapf(ErrWalletNotFound, "%s", address)
	}
	if err != nil {
		return WalletRecord{}, errors.Mark(errors.Wrap(err, "select wallet"), ErrStorage)
	}
	return toRecord(m)
}

// ListWallets returns wallets oldest first.
func (s *Store) ListWallets(ctx context.Context) ([]WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []walletModel
	if err := s.db.NewSelect().Model(&rows).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "list wallets"), ErrStorage)
	}

	out := make([]WalletRecord, 0, len(rows))
	for _, m := range rows {
		r, err := toRecord(m)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// RemoveWallet unregisters address and clears the selection if it pointed
// at it.
func (s *Store) RemoveWallet(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.NewDelete().
		Model((*walletModel)(nil)).
		Where("lower(address) = lower(?)", address).
		Exec(ctx)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "delete wallet"), ErrStorage)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrWalletNotFound, "%s", address)
	}

	selected, _, err := s.get(ctx, constants.SettingSelectedWalletAddress)
	if err != nil {
		return err
	}
	if strings.EqualFold(selected, address) {
		return s.unset(ctx, constants.SettingSelectedWalletAddress)
	}
	return nil
}

func toRecord(m walletModel) (WalletRecord, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return WalletRecord{}, errors.Mark(errors.Wrapf(err, "wallet id %q", m.ID), ErrStorage)
	}
	return WalletRecord{ID: id, Name: m.Name, Address: m.Address, CreatedAt: m.CreatedAt}, nil
}
