package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"patreonix/core/events"
	"patreonix/core/types"
	"patreonix/native/creator"
	"patreonix/observability"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// ErrEmptyQuery is returned when a search has nothing to match on.
var ErrEmptyQuery = errors.New("indexer: search query required")

// CreatorRow mirrors the public header of a creator record.
type CreatorRow struct {
	Address         string `gorm:"primaryKey;size:96"`
	Authority       string `gorm:"size:96;index"`
	Name            string
	NameFolded      string `gorm:"index"`
	IsActive        bool
	TotalSupporters uint64
	TotalContent    uint64
	RegisteredAt    int64
	IndexedAt       time.Time
}

// ContentRow mirrors the header of a content record. Bodies stay on chain.
type ContentRow struct {
	Address      string `gorm:"primaryKey;size:96"`
	Creator      string `gorm:"size:96;index:idx_content_creator_index,priority:1"`
	ContentIndex uint64 `gorm:"index:idx_content_creator_index,priority:2"`
	Title        string
	TitleFolded  string `gorm:"index"`
	ContentType  string `gorm:"size:16"`
	CreatedAt    int64  `gorm:"autoCreateTime:false"`
	Comments     int
	IndexedAt    time.Time
}

// ContentHit is one search result.
type ContentHit struct {
	Address      string `json:"address"`
	Creator      string `json:"creator"`
	ContentIndex uint64 `json:"contentIndex"`
	Title        string `json:"title"`
	ContentType  string `json:"contentType"`
	CreatedAt    int64  `json:"createdAt"`
	Comments     int    `json:"comments"`
}

// Open connects to the configured SQL backend.
func Open(driver, dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("indexer: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return db, nil
}

// Indexer keeps a searchable SQL mirror of committed registry events.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// New migrates the schema and returns an indexer writing to db.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: nil database")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&CreatorRow{}, &ContentRow{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db, logger: log.With(slog.String("component", "indexer")), nowFn: time.Now}, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Fold normalises text for case-insensitive matching.
func Fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// Emit implements events.Emitter. Failures are logged; the registry remains
// the source of truth and the mirror can be rebuilt from a snapshot.
func (ix *Indexer) Emit(evt events.Event) {
	payload, ok := events.Payload(evt)
	if !ok {
		return
	}
	err := ix.apply(context.Background(), payload)
	observability.Integrations().RecordApply(payload.Type, err)
	if err != nil {
		ix.logger.Warn("indexer apply failed",
			slog.String("event", evt.EventType()),
			slog.Any("error", err))
	}
}

func (ix *Indexer) apply(ctx context.Context, evt *types.Event) error {
	attrs := evt.Attributes
	db := ix.db.WithContext(ctx)
	now := ix.nowFn().UTC()
	switch evt.Type {
	case creator.EventTypeCreatorRegistered:
		row := CreatorRow{
			Address:      attrs["creator"],
			Authority:    attrs["authority"],
			Name:         attrs["name"],
			NameFolded:   Fold(attrs["name"]),
			IsActive:     true,
			RegisteredAt: parseInt(attrs["registeredAt"]),
			IndexedAt:    now,
		}
		return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	case creator.EventTypeCreatorUpdated:
		return db.Model(&CreatorRow{}).Where("address = ?", attrs["creator"]).
			Updates(map[string]any{"name": attrs["name"], "name_folded": Fold(attrs["name"]), "indexed_at": now}).Error
	case creator.EventTypeCreatorDeactivated, creator.EventTypeCreatorReactivated:
		active, _ := strconv.ParseBool(attrs["isActive"])
		return db.Model(&CreatorRow{}).Where("address = ?", attrs["creator"]).
			Updates(map[string]any{"is_active": active, "indexed_at": now}).Error
	case creator.EventTypeSupportersIncremented, creator.EventTypeCreatorSubscribed:
		return db.Model(&CreatorRow{}).Where("address = ?", attrs["creator"]).
			Updates(map[string]any{"total_supporters": parseUint(attrs["totalSupporters"]), "indexed_at": now}).Error
	case creator.EventTypeContentCreated:
		return db.Transaction(func(tx *gorm.DB) error {
			row := ContentRow{
				Address:      attrs["content"],
				Creator:      attrs["creator"],
				ContentIndex: parseUint(attrs["contentIndex"]),
				Title:        attrs["title"],
				TitleFolded:  Fold(attrs["title"]),
				ContentType:  attrs["contentType"],
				CreatedAt:    parseInt(attrs["createdAt"]),
				IndexedAt:    now,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return err
			}
			return tx.Model(&CreatorRow{}).Where("address = ?", attrs["creator"]).
				Update("total_content", gorm.Expr("total_content + 1")).Error
		})
	case creator.EventTypeContentCommented:
		comments, _ := strconv.Atoi(attrs["comments"])
		return db.Model(&ContentRow{}).Where("address = ?", attrs["content"]).
			Updates(map[string]any{"comments": comments, "indexed_at": now}).Error
	}
	return nil
}

// Backfill upserts every record of a registry snapshot. It is used when the
// mirror is enabled on a data directory that already holds records.
func (ix *Indexer) Backfill(ctx context.Context, creators []*creator.CreatorInfo, contents []*creator.ContentDetails) error {
	now := ix.nowFn().UTC()
	return ix.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range creators {
			if c == nil {
				continue
			}
			row := CreatorRow{
				Address:         c.Address.String(),
				Authority:       c.Authority.String(),
				Name:            c.Name,
				NameFolded:      Fold(c.Name),
				IsActive:        c.IsActive,
				TotalSupporters: c.TotalSupporters,
				TotalContent:    c.TotalContent,
				RegisteredAt:    c.RegisteredAt,
				IndexedAt:       now,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("indexer: backfill creator %s: %w", row.Address, err)
			}
		}
		for _, c := range contents {
			if c == nil {
				continue
			}
			row := ContentRow{
				Address:      c.Address.String(),
				Creator:      c.Creator.String(),
				ContentIndex: c.ContentIndex,
				Title:        c.Title,
				TitleFolded:  Fold(c.Title),
				ContentType:  c.ContentType.String(),
				CreatedAt:    c.CreatedAt,
				Comments:     len(c.Comments),
				IndexedAt:    now,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("indexer: backfill content %s: %w", row.Address, err)
			}
		}
		return nil
	})
}

// SearchContent returns content whose title contains query, newest first.
func (ix *Indexer) SearchContent(ctx context.Context, query string, limit int) ([]ContentHit, error) {
	folded := Fold(query)
	if folded == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	var rows []ContentRow
	err := ix.db.WithContext(ctx).
		Where("title_folded LIKE ? ESCAPE '\\'", "%"+escapeLike(folded)+"%").
		Order("created_at DESC").Order("address").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("indexer: search: %w", err)
	}
	hits := make([]ContentHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, ContentHit{
			Address:      r.Address,
			Creator:      r.Creator,
			ContentIndex: r.ContentIndex,
			Title:        r.Title,
			ContentType:  r.ContentType,
			CreatedAt:    r.CreatedAt,
			Comments:     r.Comments,
		})
	}
	return hits, nil
}

// Creator returns the mirrored header for addr.
func (ix *Indexer) Creator(ctx context.Context, addr string) (*CreatorRow, error) {
	var row CreatorRow
	if err := ix.db.WithContext(ctx).First(&row, "address = ?", addr).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func parseUint(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
