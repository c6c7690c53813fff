package sql

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and runs pending migrations.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ============================================
// Schedules
// ============================================

type scheduleRow struct {
	ID             string    `db:"id"`
	Scope          string    `db:"scope"`
	OwnerKey       string    `db:"owner_key"`
	Label          string    `db:"label"`
	Description    string    `db:"description"`
	Action         string    `db:"action"`
	EndAction      string    `db:"end_action"`
	WindowStart    time.Time `db:"window_start"`
	WindowEnd      time.Time `db:"window_end"`
	TargetsJSON    string    `db:"targets_json"`
	RecurrenceJSON string    `db:"recurrence_json"`
	ExceptionsJSON string    `db:"exceptions_json"`
	Enabled        bool      `db:"enabled"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

const scheduleColumns = `id, scope, owner_key, label, description, action, end_action,
	 window_start, window_end, targets_json, recurrence_json, exceptions_json,
	 enabled, created_at, updated_at`

func scheduleToRow(s *domain.DeviceSchedule) (*scheduleRow, error) {
	targets, err := json.Marshal(s.Targets)
	if err != nil {
		return nil, err
	}
	recurrence, err := json.Marshal(s.Recurrence)
	if err != nil {
		return nil, err
	}
	exceptions, err := json.Marshal(s.Exceptions)
	if err != nil {
		return nil, err
	}
	return &scheduleRow{
		ID:             s.ID,
		Scope:          string(s.Scope),
		OwnerKey:       s.OwnerKey,
		Label:          s.Label,
		Description:    s.Description,
		Action:         string(s.Action),
		EndAction:      string(s.EndAction),
		WindowStart:    s.Window.Start,
		WindowEnd:      s.Window.End,
		TargetsJSON:    string(targets),
		RecurrenceJSON: string(recurrence),
		ExceptionsJSON: string(exceptions),
		Enabled:        s.Enabled,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, nil
}

func rowToSchedule(row *scheduleRow) (*domain.DeviceSchedule, error) {
	s := &domain.DeviceSchedule{
		ID:          row.ID,
		Scope:       domain.ScheduleScope(row.Scope),
		OwnerKey:    row.OwnerKey,
		Label:       row.Label,
		Description: row.Description,
		Action:      domain.ScheduleAction(row.Action),
		EndAction:   domain.ScheduleAction(row.EndAction),
		Window:      domain.ScheduleWindow{Start: row.WindowStart, End: row.WindowEnd},
		Enabled:     row.Enabled,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(row.TargetsJSON), &s.Targets); err != nil {
		return nil, fmt.Errorf("decoding targets for schedule %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.RecurrenceJSON), &s.Recurrence); err != nil {
		return nil, fmt.Errorf("decoding recurrence for schedule %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.ExceptionsJSON), &s.Exceptions); err != nil {
		return nil, fmt.Errorf("decoding exceptions for schedule %s: %w", row.ID, err)
	}
	return s, nil
}

func createSchedule(ctx context.Context, db dbInterface, schedule *domain.DeviceSchedule) error {
	row, err := scheduleToRow(schedule)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO schedules (`+scheduleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		row.ID, row.Scope, row.OwnerKey, row.Label, row.Description, row.Action, row.EndAction,
		row.WindowStart, row.WindowEnd, row.TargetsJSON, row.RecurrenceJSON, row.ExceptionsJSON,
		row.Enabled, row.CreatedAt, row.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error {
	return createSchedule(ctx, s.db, schedule)
}

func (t *Tx) CreateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error {
	return createSchedule(ctx, t.tx, schedule)
}

func getSchedule(ctx context.Context, db dbInterface, id string) (*domain.DeviceSchedule, error) {
	var row scheduleRow
	err := db.GetContext(ctx, &row,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToSchedule(&row)
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*domain.DeviceSchedule, error) {
	return getSchedule(ctx, s.db, id)
}

func (t *Tx) GetSchedule(ctx context.Context, id string) (*domain.DeviceSchedule, error) {
	return getSchedule(ctx, t.tx, id)
}

func listSchedules(ctx context.Context, db dbInterface, filter domain.ScheduleListFilter) ([]*domain.DeviceSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE 1=1`
	var args []any
	if filter.Scope != "" {
		args = append(args, string(filter.Scope))
		query += fmt.Sprintf(" AND scope = $%d", len(args))
	}
	if filter.Owner != "" {
		args = append(args, filter.Owner)
		query += fmt.Sprintf(" AND owner_key = $%d", len(args))
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		query += fmt.Sprintf(" AND enabled = $%d", len(args))
	}
	query += " ORDER BY id"

	var rows []scheduleRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]*domain.DeviceSchedule, 0, len(rows))
	for i := range rows {
		schedule, err := rowToSchedule(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, schedule)
	}
	return out, nil
}

func (s *Store) ListSchedules(ctx context.Context, filter domain.ScheduleListFilter) ([]*domain.DeviceSchedule, error) {
	return listSchedules(ctx, s.db, filter)
}

func (t *Tx) ListSchedules(ctx context.Context, filter domain.ScheduleListFilter) ([]*domain.DeviceSchedule, error) {
	return listSchedules(ctx, t.tx, filter)
}

func updateSchedule(ctx context.Context, db dbInterface, schedule *domain.DeviceSchedule) error {
	row, err := scheduleToRow(schedule)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`UPDATE schedules SET scope = $1, owner_key = $2, label = $3, description = $4,
		 action = $5, end_action = $6, window_start = $7, window_end = $8,
		 targets_json = $9, recurrence_json = $10, exceptions_json = $11,
		 enabled = $12, updated_at = $13
		 WHERE id = $14`,
		row.Scope, row.OwnerKey, row.Label, row.Description,
		row.Action, row.EndAction, row.WindowStart, row.WindowEnd,
		row.TargetsJSON, row.RecurrenceJSON, row.ExceptionsJSON,
		row.Enabled, row.UpdatedAt, row.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error {
	return updateSchedule(ctx, s.db, schedule)
}

func (t *Tx) UpdateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error {
	return updateSchedule(ctx, t.tx, schedule)
}

func deleteSchedule(ctx context.Context, db dbInterface, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	return deleteSchedule(ctx, s.db, id)
}

func (t *Tx) DeleteSchedule(ctx context.Context, id string) error {
	return deleteSchedule(ctx, t.tx, id)
}

// ============================================
// Schedule groups
// ============================================

const groupColumns = `id, name, owner_key, description, is_active, created_at, updated_at`

func createGroup(ctx context.Context, db dbInterface, group *domain.ScheduleGroup) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO schedule_groups (`+groupColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		group.ID, group.Name, group.OwnerKey, group.Description,
		group.IsActive, group.CreatedAt, group.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateGroup(ctx context.Context, group *domain.ScheduleGroup) error {
	return createGroup(ctx, s.db, group)
}

func (t *Tx) CreateGroup(ctx context.Context, group *domain.ScheduleGroup) error {
	return createGroup(ctx, t.tx, group)
}

func getGroup(ctx context.Context, db dbInterface, id string) (*domain.ScheduleGroup, error) {
	var group domain.ScheduleGroup
	err := db.GetContext(ctx, &group,
		`SELECT `+groupColumns+` FROM schedule_groups WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &group, err
}

func (s *Store) GetGroup(ctx context.Context, id string) (*domain.ScheduleGroup, error) {
	return getGroup(ctx, s.db, id)
}

func (t *Tx) GetGroup(ctx context.Context, id string) (*domain.ScheduleGroup, error) {
	return getGroup(ctx, t.tx, id)
}

func listGroups(ctx context.Context, db dbInterface, ownerKey string) ([]*domain.ScheduleGroup, error) {
	var groups []*domain.ScheduleGroup
	err := db.SelectContext(ctx, &groups,
		`SELECT `+groupColumns+` FROM schedule_groups WHERE owner_key = $1 ORDER BY id`, ownerKey)
	return groups, err
}

func (s *Store) ListGroups(ctx context.Context, ownerKey string) ([]*domain.ScheduleGroup, error) {
	return listGroups(ctx, s.db, ownerKey)
}

func (t *Tx) ListGroups(ctx context.Context, ownerKey string) ([]*domain.ScheduleGroup, error) {
	return listGroups(ctx, t.tx, ownerKey)
}

func listAllGroups(ctx context.Context, db dbInterface) ([]*domain.ScheduleGroup, error) {
	var groups []*domain.ScheduleGroup
	err := db.SelectContext(ctx, &groups,
		`SELECT `+groupColumns+` FROM schedule_groups ORDER BY id`)
	return groups, err
}

func (s *Store) ListAllGroups(ctx context.Context) ([]*domain.ScheduleGroup, error) {
	return listAllGroups(ctx, s.db)
}

func (t *Tx) ListAllGroups(ctx context.Context) ([]*domain.ScheduleGroup, error) {
	return listAllGroups(ctx, t.tx)
}

func updateGroup(ctx context.Context, db dbInterface, group *domain.ScheduleGroup) error {
	res, err := db.ExecContext(ctx,
		`UPDATE schedule_groups SET name = $1, owner_key = $2, description = $3,
		 is_active = $4, updated_at = $5 WHERE id = $6`,
		group.Name, group.OwnerKey, group.Description,
		group.IsActive, group.UpdatedAt, group.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateGroup(ctx context.Context, group *domain.ScheduleGroup) error {
	return updateGroup(ctx, s.db, group)
}

func (t *Tx) UpdateGroup(ctx context.Context, group *domain.ScheduleGroup) error {
	return updateGroup(ctx, t.tx, group)
}

func deleteGroup(ctx context.Context, db dbInterface, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM schedule_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	return deleteGroup(ctx, s.db, id)
}

func (t *Tx) DeleteGroup(ctx context.Context, id string) error {
	return deleteGroup(ctx, t.tx, id)
}

// ============================================
// Group memberships
// ============================================

func addMembership(ctx context.Context, db dbInterface, groupID, scheduleID string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO group_memberships (group_id, schedule_id, created_at)
		 VALUES ($1, $2, $3)`,
		groupID, scheduleID, time.Now().UTC())
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *Store) AddMembership(ctx context.Context, groupID, scheduleID string) error {
	return addMembership(ctx, s.db, groupID, scheduleID)
}

func (t *Tx) AddMembership(ctx context.Context, groupID, scheduleID string) error {
	return addMembership(ctx, t.tx, groupID, scheduleID)
}

func removeMembership(ctx context.Context, db dbInterface, groupID, scheduleID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE group_id = $1 AND schedule_id = $2`,
		groupID, scheduleID)
	return err
}

func (s *Store) RemoveMembership(ctx context.Context, groupID, scheduleID string) error {
	return removeMembership(ctx, s.db, groupID, scheduleID)
}

func (t *Tx) RemoveMembership(ctx context.Context, groupID, scheduleID string) error {
	return removeMembership(ctx, t.tx, groupID, scheduleID)
}

func listMembershipsForGroup(ctx context.Context, db dbInterface, groupID string) ([]*domain.GroupMembership, error) {
	var memberships []*domain.GroupMembership
	err := db.SelectContext(ctx, &memberships,
		`SELECT group_id, schedule_id, created_at FROM group_memberships
		 WHERE group_id = $1 ORDER BY schedule_id`, groupID)
	return memberships, err
}

func (s *Store) ListMembershipsForGroup(ctx context.Context, groupID string) ([]*domain.GroupMembership, error) {
	return listMembershipsForGroup(ctx, s.db, groupID)
}

func (t *Tx) ListMembershipsForGroup(ctx context.Context, groupID string) ([]*domain.GroupMembership, error) {
	return listMembershipsForGroup(ctx, t.tx, groupID)
}

func listMembershipsForSchedule(ctx context.Context, db dbInterface, scheduleID string) ([]*domain.GroupMembership, error) {
	var memberships []*domain.GroupMembership
	err := db.SelectContext(ctx, &memberships,
		`SELECT group_id, schedule_id, created_at FROM group_memberships
		 WHERE schedule_id = $1 ORDER BY group_id`, scheduleID)
	return memberships, err
}

func (s *Store) ListMembershipsForSchedule(ctx context.Context, scheduleID string) ([]*domain.GroupMembership, error) {
	return listMembershipsForSchedule(ctx, s.db, scheduleID)
}

func (t *Tx) ListMembershipsForSchedule(ctx context.Context, scheduleID string) ([]*domain.GroupMembership, error) {
	return listMembershipsForSchedule(ctx, t.tx, scheduleID)
}

func deleteMembershipsForSchedule(ctx context.Context, db dbInterface, scheduleID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE schedule_id = $1`, scheduleID)
	return err
}

func (s *Store) DeleteMembershipsForSchedule(ctx context.Context, scheduleID string) error {
	return deleteMembershipsForSchedule(ctx, s.db, scheduleID)
}

func (t *Tx) DeleteMembershipsForSchedule(ctx context.Context, scheduleID string) error {
	return deleteMembershipsForSchedule(ctx, t.tx, scheduleID)
}

func deleteMembershipsForGroup(ctx context.Context, db dbInterface, groupID string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE group_id = $1`, groupID)
	return err
}

func (s *Store) DeleteMembershipsForGroup(ctx context.Context, groupID string) error {
	return deleteMembershipsForGroup(ctx, s.db, groupID)
}

func (t *Tx) DeleteMembershipsForGroup(ctx context.Context, groupID string) error {
	return deleteMembershipsForGroup(ctx, t.tx, groupID)
}

// ============================================
// Metadata
// ============================================

func getMetadata(ctx context.Context, db dbInterface) (*domain.ScheduleMetadata, error) {
	var meta domain.ScheduleMetadata
	err := db.GetContext(ctx, &meta,
		`SELECT timezone, generated_at FROM schedule_metadata WHERE singleton = 1`)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &meta, err
}

func (s *Store) GetMetadata(ctx context.Context) (*domain.ScheduleMetadata, error) {
	return getMetadata(ctx, s.db)
}

func (t *Tx) GetMetadata(ctx context.Context) (*domain.ScheduleMetadata, error) {
	return getMetadata(ctx, t.tx)
}

func setMetadata(ctx context.Context, db dbInterface, meta *domain.ScheduleMetadata) error {
	res, err := db.ExecContext(ctx,
		`UPDATE schedule_metadata SET timezone = $1, generated_at = $2 WHERE singleton = 1`,
		meta.Timezone, meta.GeneratedAt)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		_, err = db.ExecContext(ctx,
			`INSERT INTO schedule_metadata (singleton, timezone, generated_at) VALUES (1, $1, $2)`,
			meta.Timezone, meta.GeneratedAt)
	}
	return err
}

func (s *Store) SetMetadata(ctx context.Context, meta *domain.ScheduleMetadata) error {
	return setMetadata(ctx, s.db, meta)
}

func (t *Tx) SetMetadata(ctx context.Context, meta *domain.ScheduleMetadata) error {
	return setMetadata(ctx, t.tx, meta)
}

// ============================================
// Device inventory
// ============================================

func upsertDevice(ctx context.Context, db dbInterface, device *domain.Device) error {
	mac := strings.ToLower(device.MAC)
	res, err := db.ExecContext(ctx,
		`UPDATE devices SET name = $1, type = $2, owner = $3 WHERE mac = $4`,
		device.Name, device.Type, device.Owner, mac)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		_, err = db.ExecContext(ctx,
			`INSERT INTO devices (mac, name, type, owner) VALUES ($1, $2, $3, $4)`,
			mac, device.Name, device.Type, device.Owner)
	}
	return err
}

func (s *Store) UpsertDevice(ctx context.Context, device *domain.Device) error {
	return upsertDevice(ctx, s.db, device)
}

func (t *Tx) UpsertDevice(ctx context.Context, device *domain.Device) error {
	return upsertDevice(ctx, t.tx, device)
}

func getDeviceByMAC(ctx context.Context, db dbInterface, mac string) (*domain.Device, error) {
	var device domain.Device
	err := db.GetContext(ctx, &device,
		`SELECT mac, name, type, owner FROM devices WHERE mac = $1`, strings.ToLower(mac))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &device, err
}

func (s *Store) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	return getDeviceByMAC(ctx, s.db, mac)
}

func (t *Tx) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	return getDeviceByMAC(ctx, t.tx, mac)
}

func listDevices(ctx context.Context, db dbInterface) ([]*domain.Device, error) {
	var devices []*domain.Device
	err := db.SelectContext(ctx, &devices,
		`SELECT mac, name, type, owner FROM devices ORDER BY mac`)
	return devices, err
}

func (s *Store) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	return listDevices(ctx, s.db)
}

func (t *Tx) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	return listDevices(ctx, t.tx)
}

func deleteDevice(ctx context.Context, db dbInterface, mac string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM devices WHERE mac = $1`, strings.ToLower(mac))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDevice(ctx context.Context, mac string) error {
	return deleteDevice(ctx, s.db, mac)
}

func (t *Tx) DeleteDevice(ctx context.Context, mac string) error {
	return deleteDevice(ctx, t.tx, mac)
}

// ============================================
// Owners
// ============================================

func upsertOwner(ctx context.Context, db dbInterface, owner *domain.Owner) error {
	res, err := db.ExecContext(ctx,
		`UPDATE owners SET display_name = $1 WHERE key = $2`,
		owner.DisplayName, owner.Key)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		_, err = db.ExecContext(ctx,
			`INSERT INTO owners (key, display_name) VALUES ($1, $2)`,
			owner.Key, owner.DisplayName)
	}
	return err
}

func (s *Store) UpsertOwner(ctx context.Context, owner *domain.Owner) error {
	return upsertOwner(ctx, s.db, owner)
}

func (t *Tx) UpsertOwner(ctx context.Context, owner *domain.Owner) error {
	return upsertOwner(ctx, t.tx, owner)
}

func getOwner(ctx context.Context, db dbInterface, key string) (*domain.Owner, error) {
	var owner domain.Owner
	err := db.GetContext(ctx, &owner,
		`SELECT key, display_name FROM owners WHERE key = $1`, key)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &owner, err
}

func (s *Store) GetOwner(ctx context.Context, key string) (*domain.Owner, error) {
	return getOwner(ctx, s.db, key)
}

func (t *Tx) GetOwner(ctx context.Context, key string) (*domain.Owner, error) {
	return getOwner(ctx, t.tx, key)
}

func listOwners(ctx context.Context, db dbInterface) ([]*domain.Owner, error) {
	var owners []*domain.Owner
	err := db.SelectContext(ctx, &owners,
		`SELECT key, display_name FROM owners ORDER BY key`)
	return owners, err
}

func (s *Store) ListOwners(ctx context.Context) ([]*domain.Owner, error) {
	return listOwners(ctx, s.db)
}

func (t *Tx) ListOwners(ctx context.Context) ([]*domain.Owner, error) {
	return listOwners(ctx, t.tx)
}

// ============================================
// Audit events
// ============================================

type eventRow struct {
	ID           int64     `db:"id"`
	Timestamp    time.Time `db:"timestamp"`
	Action       string    `db:"action"`
	Actor        string    `db:"actor"`
	SubjectType  string    `db:"subject_type"`
	SubjectID    string    `db:"subject_id"`
	Reason       string    `db:"reason"`
	MetadataJSON string    `db:"metadata_json"`
}

func appendEvent(ctx context.Context, db dbInterface, event *domain.AuditEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}
	var next int64
	if err := db.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(id), 0) + 1 FROM audit_events`); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO audit_events (id, timestamp, action, actor, subject_type, subject_id, reason, metadata_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		next, event.Timestamp, event.Action, event.Actor,
		event.SubjectType, event.SubjectID, event.Reason, string(metadata))
	if err != nil {
		return err
	}
	event.ID = next
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, event *domain.AuditEvent) error {
	return appendEvent(ctx, s.db, event)
}

func (t *Tx) AppendEvent(ctx context.Context, event *domain.AuditEvent) error {
	return appendEvent(ctx, t.tx, event)
}

func listEvents(ctx context.Context, db dbInterface, limit, offset int) ([]*domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []eventRow
	err := db.SelectContext(ctx, &rows,
		`SELECT id, timestamp, action, actor, subject_type, subject_id, reason, metadata_json
		 FROM audit_events ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditEvent, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		event := &domain.AuditEvent{
			ID:          row.ID,
			Timestamp:   row.Timestamp,
			Action:      row.Action,
			Actor:       row.Actor,
			SubjectType: row.SubjectType,
			SubjectID:   row.SubjectID,
			Reason:      row.Reason,
		}
		if row.MetadataJSON != "" {
			_ = json.Unmarshal([]byte(row.MetadataJSON), &event.Metadata)
		}
		out = append(out, event)
	}
	return out, nil
}

func (s *Store) ListEvents(ctx context.Context, limit, offset int) ([]*domain.AuditEvent, error) {
	return listEvents(ctx, s.db, limit, offset)
}

func (t *Tx) ListEvents(ctx context.Context, limit, offset int) ([]*domain.AuditEvent, error) {
	return listEvents(ctx, t.tx, limit, offset)
}
