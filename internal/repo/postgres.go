package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventreg/internal/model"
)

type Postgres struct {
	db  *dbpg.DB
	dsn string
	log *zerolog.Logger
}

// NewPostgres wraps an open pool. dsn is reused to open the LISTEN
// connection for Watch.
func NewPostgres(db *dbpg.DB, dsn string, log *zerolog.Logger) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &Postgres{db: db, dsn: dsn, log: log}, nil
}

func (r *Postgres) MigrateUp(migrationsDir string) error {
	return r.migrate(migrationsDir, "*.up.sql", false)
}

func (r *Postgres) MigrateDown(migrationsDir string) error {
	return r.migrate(migrationsDir, "*.down.sql", true)
}

func (r *Postgres) migrate(migrationsDir, pattern string, reverse bool) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations %s applied from %s", pattern, migrationsDir)
	return nil
}

const registrationColumns = `id, name, year, roll_number, phone, registration_id, timestamp,
	COALESCE(receipt_url, ''), COALESCE(cloudinary_id, '')`

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(s scanner) (*model.Registration, error) {
	var (
		reg model.Registration
		ts  sql.NullTime
	)
	if err := s.Scan(
		&reg.ID,
		&reg.Name,
		&reg.Year,
		&reg.RollNumber,
		&reg.Phone,
		&reg.RegistrationID,
		&ts,
		&reg.ReceiptURL,
		&reg.CloudinaryID,
	); err != nil {
		return nil, err
	}
	if ts.Valid {
		reg.Timestamp = &ts.Time
	}
	return &reg, nil
}

func (r *Postgres) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	query := `
		INSERT INTO registrations (id, name, year, roll_number, phone, registration_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING timestamp
	`
	id := uuid.NewString()
	var ts sql.NullTime
	if err := r.db.QueryRowContext(ctx, query,
		id, reg.Name, reg.Year, reg.RollNumber, reg.Phone, reg.RegistrationID,
	).Scan(&ts); err != nil {
		return fmt.Errorf("failed to insert registration: %w", err)
	}
	reg.ID = id
	if ts.Valid {
		reg.Timestamp = &ts.Time
	}
	return nil
}

func (r *Postgres) RegistrationIDExists(ctx context.Context, registrationID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM registrations WHERE registration_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, registrationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check registration id: %w", err)
	}
	return exists, nil
}

func (r *Postgres) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

func (r *Postgres) ListRegistrations(ctx context.Context) ([]model.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations ORDER BY timestamp ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	regs := make([]model.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}
	return regs, nil
}

func (r *Postgres) FindRegistrationsByPhone(ctx context.Context, canonicalPhone string) ([]model.Registration, error) {
	query := `SELECT ` + registrationColumns + `
		FROM registrations
		WHERE phone = $1
		ORDER BY timestamp ASC`
	rows, err := r.db.QueryContext(ctx, query, canonicalPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to find registrations by phone: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}
	return regs, nil
}

// setClause collects "column = $n" pairs for a partial update.
type setClause struct {
	cols []string
	args []any
}

func (s *setClause) add(col string, val any) {
	s.args = append(s.args, val)
	s.cols = append(s.cols, col+" = $"+strconv.Itoa(len(s.args)))
}

func (s *setClause) exec(ctx context.Context, db *dbpg.DB, table, id string) error {
	s.args = append(s.args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(s.cols, ", "), len(s.args))
	res, err := db.ExecContext(ctx, query, s.args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Postgres) UpdateRegistration(ctx context.Context, id string, patch model.RegistrationPatch) error {
	if patch.Empty() {
		return ErrEmptyPatch
	}
	var set setClause
	if patch.Name != nil {
		set.add("name", *patch.Name)
	}
	if patch.Year != nil {
		set.add("year", *patch.Year)
	}
	if patch.RollNumber != nil {
		set.add("roll_number", *patch.RollNumber)
	}
	if patch.Phone != nil {
		set.add("phone", *patch.Phone)
	}
	return set.exec(ctx, r.db, "registrations", id)
}

func (r *Postgres) AttachReceipt(ctx context.Context, id string, receipt model.Receipt) error {
	var set setClause
	set.add("receipt_url", receipt.URL)
	set.add("cloudinary_id", receipt.CloudinaryID)
	return set.exec(ctx, r.db, "registrations", id)
}

func (r *Postgres) DeleteRegistration(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Postgres) EventDetails(ctx context.Context) (*model.EventDetails, error) {
	def := model.DefaultEventDetails()
	insert := `
		INSERT INTO event_details (id, event_date, event_time, event_location, event_restrictions, last_updated)
		SELECT $1, $2, $3, $4, $5, NOW()
		WHERE NOT EXISTS (SELECT 1 FROM event_details)
	`
	if _, err := r.db.ExecContext(ctx, insert,
		uuid.NewString(), def.EventDate, def.EventTime, def.EventLocation, def.EventRestrictions,
	); err != nil {
		return nil, fmt.Errorf("failed to seed event details: %w", err)
	}

	query := `
		SELECT id, event_date, event_time, event_location, event_restrictions, last_updated
		FROM event_details
		ORDER BY last_updated ASC
		LIMIT 1
	`
	var d model.EventDetails
	if err := r.db.QueryRowContext(ctx, query).Scan(
		&d.ID, &d.EventDate, &d.EventTime, &d.EventLocation, &d.EventRestrictions, &d.LastUpdated,
	); err != nil {
		return nil, fmt.Errorf("failed to get event details: %w", err)
	}
	return &d, nil
}

func (r *Postgres) UpdateEventDetails(ctx context.Context, id string, patch model.EventDetailsPatch) error {
	var set setClause
	if patch.EventDate != nil {
		set.add("event_date", *patch.EventDate)
	}
	if patch.EventTime != nil {
		set.add("event_time", *patch.EventTime)
	}
	if patch.EventLocation != nil {
		set.add("event_location", *patch.EventLocation)
	}
	if patch.EventRestrictions != nil {
		set.add("event_restrictions", *patch.EventRestrictions)
	}
	set.cols = append(set.cols, "last_updated = NOW()")
	return set.exec(ctx, r.db, "event_details", id)
}

func (r *Postgres) EventSettings(ctx context.Context) (*model.EventSettings, error) {
	insert := `
		INSERT INTO event_settings (id, price, last_updated)
		SELECT $1, $2, NOW()
		WHERE NOT EXISTS (SELECT 1 FROM event_settings)
	`
	if _, err := r.db.ExecContext(ctx, insert, uuid.NewString(), model.DefaultPrice); err != nil {
		return nil, fmt.Errorf("failed to seed event settings: %w", err)
	}

	var s model.EventSettings
	query := `SELECT id, price, last_updated FROM event_settings ORDER BY last_updated ASC LIMIT 1`
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.ID, &s.Price, &s.LastUpdated); err != nil {
		return nil, fmt.Errorf("failed to get event settings: %w", err)
	}
	return &s, nil
}

func (r *Postgres) UpdateEventSettings(ctx context.Context, id string, price int) error {
	var set setClause
	set.add("price", price)
	set.cols = append(set.cols, "last_updated = NOW()")
	return set.exec(ctx, r.db, "event_settings", id)
}

const galleryColumns = `id, title, description, category, featured, image_url, thumbnail_url,
	COALESCE(storage_ref, ''), timestamp`

func scanGallery(s scanner) (*model.GalleryImage, error) {
	var img model.GalleryImage
	if err := s.Scan(
		&img.ID, &img.Title, &img.Description, &img.Category, &img.Featured,
		&img.ImageURL, &img.ThumbnailURL, &img.StorageRef, &img.Timestamp,
	); err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *Postgres) ListGallery(ctx context.Context, filter model.GalleryFilter) ([]model.GalleryImage, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if filter.Featured {
		where = append(where, "featured = TRUE")
	}

	query := `SELECT ` + galleryColumns + ` FROM gallery`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get gallery images: %w", err)
	}
	defer rows.Close()

	images := make([]model.GalleryImage, 0)
	for rows.Next() {
		img, err := scanGallery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gallery image: %w", err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gallery images: %w", err)
	}
	return images, nil
}

func (r *Postgres) GetGalleryImage(ctx context.Context, id string) (*model.GalleryImage, error) {
	query := `SELECT ` + galleryColumns + ` FROM gallery WHERE id = $1`
	img, err := scanGallery(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gallery image: %w", err)
	}
	return img, nil
}

func (r *Postgres) CreateGalleryImage(ctx context.Context, img *model.GalleryImage) error {
	query := `
		INSERT INTO gallery (id, title, description, category, featured, image_url, thumbnail_url, storage_ref, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING timestamp
	`
	id := uuid.NewString()
	if err := r.db.QueryRowContext(ctx, query,
		id, img.Title, img.Description, img.Category, img.Featured, img.ImageURL, img.ThumbnailURL, img.StorageRef,
	).Scan(&img.Timestamp); err != nil {
		return fmt.Errorf("failed to insert gallery image: %w", err)
	}
	img.ID = id
	return nil
}

func (r *Postgres) UpdateGalleryImage(ctx context.Context, id string, patch model.GalleryImagePatch) error {
	var set setClause
	if patch.Title != nil {
		set.add("title", *patch.Title)
	}
	if patch.Description != nil {
		set.add("description", *patch.Description)
	}
	if patch.Category != nil {
		set.add("category", *patch.Category)
	}
	if patch.Featured != nil {
		set.add("featured", *patch.Featured)
	}
	set.cols = append(set.cols, "timestamp = NOW()")
	return set.exec(ctx, r.db, "gallery", id)
}

func (r *Postgres) DeleteGalleryImage(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM gallery WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete gallery image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
