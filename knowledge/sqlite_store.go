//go:build !without_sqlite

package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	"github.com/mokiat/gog"
	"github.com/samber/lo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aixlab/aix/config"
	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/internal/mylog"
	"github.com/aixlab/aix/internal/stringutils"
)

// SqliteStore implements Store on SQLite with the sqlite-vec extension. gorm
// owns the primary tables; the vec0 virtual table item_vectors is the mirror.
type SqliteStore struct {
	logger *mylog.Logger
	db     *gorm.DB
	vecDim int
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore opens the database, migrates the primary tables and creates
// the vector mirror table.
func NewSqliteStore(logger *mylog.Logger, conf *config.StoreConfig) (*SqliteStore, error) {
	sqlite_vec.Auto()

	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL&_foreign_keys=on", conf.SqlitePath)),
		&gorm.Config{},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database")
	}

	store := &SqliteStore{
		logger: logger,
		db:     db,
		vecDim: conf.VectorDimension,
	}

	if err := db.AutoMigrate(
		&entity.KnowledgeItem{},
		&entity.Relationship{},
		&entity.FeedbackRecord{},
		&entity.DialogueEntry{},
	); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate knowledge tables")
	}

	if err := store.createVectorTable(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SqliteStore) createVectorTable() error {
	var sqliteVersion, vecVersion string
	err := s.db.Raw("SELECT sqlite_version(), vec_version()").Row().Scan(&sqliteVersion, &vecVersion)
	if err != nil {
		return errors.Wrapf(err, "sqlite-vec extension not properly loaded")
	}

	createTableSQL := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS item_vectors USING vec0(
			item_id TEXT PRIMARY KEY,
			embedding float[%d],
			+primary_id TEXT,
			+owner_id TEXT,
			+created_at TEXT
		);
	`, s.vecDim)

	if err := s.db.Exec(createTableSQL).Error; err != nil {
		return errors.Wrapf(err, "failed to create item_vectors table")
	}

	return nil
}

// eligible reports whether the item must have a mirror row: indexed kind and
// an embedding of exactly the configured dimension.
func (s *SqliteStore) eligible(item *entity.KnowledgeItem) bool {
	return item.Kind.Indexed() && len(item.EmbeddingVector()) == s.vecDim
}

func (s *SqliteStore) mirrorUpsert(ctx context.Context, item *entity.KnowledgeItem) error {
	serialized, err := sqlite_vec.SerializeFloat32(item.EmbeddingVector())
	if err != nil {
		return errors.Wrapf(err, "failed to serialize embedding")
	}

	tx := s.db.WithContext(ctx)
	if err := tx.Exec("DELETE FROM item_vectors WHERE item_id = ?", item.ID).Error; err != nil {
		return errors.Wrapf(err, "failed to delete existing vector")
	}
	insertSQL := "INSERT INTO item_vectors (item_id, embedding, primary_id, owner_id, created_at) VALUES (?, ?, ?, ?, ?)"
	if err := tx.Exec(insertSQL, item.ID, serialized, item.ID, item.OwnerID, item.CreatedAt.Format(time.RFC3339)).Error; err != nil {
		return errors.Wrapf(err, "failed to insert item vector")
	}

	return nil
}

func (s *SqliteStore) mirrorDelete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Exec("DELETE FROM item_vectors WHERE item_id = ?", id).Error; err != nil {
		return errors.Wrapf(err, "failed to delete item vector")
	}
	return nil
}

// Put implements Store.Put
func (s *SqliteStore) Put(ctx context.Context, item *entity.KnowledgeItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ValidationStatus == "" {
		item.ValidationStatus = entity.StatusPending
	}

	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return "", errors.Wrapf(err, "failed to save knowledge item")
	}

	// Mirror consistency is repaired by Reindex; a failed upsert here must
	// not undo the primary write.
	if s.eligible(item) {
		if err := s.mirrorUpsert(ctx, item); err != nil {
			s.logger.Warn("vector mirror upsert failed", "id", item.ID, "err", err)
		}
	}

	return item.ID, nil
}

// Get implements Store.Get
func (s *SqliteStore) Get(ctx context.Context, id string) (*entity.KnowledgeItem, error) {
	var item entity.KnowledgeItem
	if err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(errors.ErrNotFound, "knowledge item %s", id)
		}
		return nil, errors.Wrapf(err, "failed to fetch knowledge item")
	}
	return &item, nil
}

func applyFilter(q *gorm.DB, filter Filter) *gorm.DB {
	if len(filter.Kinds) > 0 {
		q = q.Where("kind IN ?", filter.Kinds)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("validation_status IN ?", filter.Statuses)
	}
	if len(filter.NotStatuses) > 0 {
		q = q.Where("validation_status NOT IN ?", filter.NotStatuses)
	}
	if filter.Active != nil {
		q = q.Where("active = ?", *filter.Active)
	}
	if filter.Keyword != "" {
		q = q.Where("lower(embedding_text) LIKE ?", "%"+strings.ToLower(filter.Keyword)+"%")
	}
	if len(filter.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", filter.ExcludeIDs)
	}
	return q
}

// Find implements Store.Find
func (s *SqliteStore) Find(ctx context.Context, filter Filter, sort *Sort, limit int) ([]entity.KnowledgeItem, error) {
	q := applyFilter(s.db.WithContext(ctx).Model(&entity.KnowledgeItem{}), filter)
	if sort != nil {
		dir := "ASC"
		if sort.Desc {
			dir = "DESC"
		}
		q = q.Order(fmt.Sprintf("%s %s", sort.Field, dir))
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var items []entity.KnowledgeItem
	if err := q.Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find knowledge items")
	}
	return items, nil
}

// Update implements Store.Update
func (s *SqliteStore) Update(ctx context.Context, id string, set map[string]any, unset []string) error {
	updates := make(map[string]any, len(set)+len(unset))
	for k, v := range set {
		updates[k] = v
	}
	for _, k := range unset {
		updates[k] = nil
	}
	if len(updates) == 0 {
		return errors.Wrapf(errors.ErrInvalidParams, "update with no mutations")
	}

	res := s.db.WithContext(ctx).Model(&entity.KnowledgeItem{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update knowledge item")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "knowledge item %s", id)
	}

	// Re-evaluate the mirror: an update can change kind, embedding or both.
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.eligible(item) {
		if err := s.mirrorUpsert(ctx, item); err != nil {
			s.logger.Warn("vector mirror upsert failed", "id", id, "err", err)
		}
	} else if err := s.mirrorDelete(ctx, id); err != nil {
		s.logger.Warn("vector mirror delete failed", "id", id, "err", err)
	}

	return nil
}

// Delete implements Store.Delete. The mirror row goes first so a half-failed
// delete leaves a missing vector, never a dangling one.
func (s *SqliteStore) Delete(ctx context.Context, id string) error {
	if err := s.mirrorDelete(ctx, id); err != nil {
		s.logger.Warn("vector mirror delete failed", "id", id, "err", err)
	}

	res := s.db.WithContext(ctx).Delete(&entity.KnowledgeItem{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete knowledge item")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "knowledge item %s", id)
	}
	return nil
}

// SemanticSearch implements Store.SemanticSearch
func (s *SqliteStore) SemanticSearch(ctx context.Context, vector []float32, k int, filter Filter) ([]SearchHit, error) {
	if len(vector) == 0 {
		return []SearchHit{}, nil
	}
	if len(vector) != s.vecDim {
		return nil, errors.Wrapf(errors.ErrDimensionMismatch, "query vector has %d dimensions, want %d", len(vector), s.vecDim)
	}

	serialized, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize query vector")
	}

	// Over-fetch so filtered-out and stale ids still leave k results.
	searchSQL := `
		SELECT item_id, distance
		FROM item_vectors
		WHERE embedding MATCH ?
		ORDER BY distance
		LIMIT ?
	`
	rows, err := s.db.WithContext(ctx).Raw(searchSQL, serialized, k*2).Rows()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to execute vector search")
	}
	defer rows.Close()

	type indexHit struct {
		ID       string
		Distance float32
	}
	var indexHits []indexHit
	for rows.Next() {
		var hit indexHit
		if err := rows.Scan(&hit.ID, &hit.Distance); err != nil {
			return nil, errors.Wrapf(err, "failed to scan vector search row")
		}
		indexHits = append(indexHits, hit)
	}
	if len(indexHits) == 0 {
		return []SearchHit{}, nil
	}

	ids := lo.Map(indexHits, func(h indexHit, _ int) string { return h.ID })

	var items []entity.KnowledgeItem
	q := applyFilter(s.db.WithContext(ctx).Model(&entity.KnowledgeItem{}), filter)
	if err := q.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to resolve vector hits")
	}
	byID := lo.SliceToMap(items, func(it entity.KnowledgeItem) (string, entity.KnowledgeItem) {
		return it.ID, it
	})

	// Walk in index order; ids missing from the primary store are stale
	// mirror rows and are silently dropped.
	results := make([]SearchHit, 0, len(indexHits))
	for _, hit := range indexHits {
		item, ok := byID[hit.ID]
		if !ok {
			continue
		}
		results = append(results, SearchHit{
			Item:  item,
			Score: 1.0 - hit.Distance,
		})
		if len(results) >= k {
			break
		}
	}

	return results, nil
}

// LexicalSearch implements Store.LexicalSearch
func (s *SqliteStore) LexicalSearch(ctx context.Context, query string, filter Filter, limit int) ([]SearchHit, error) {
	tokens := gog.Dedupe(stringutils.Tokenize(query))
	if len(tokens) == 0 {
		return []SearchHit{}, nil
	}

	q := applyFilter(s.db.WithContext(ctx).Model(&entity.KnowledgeItem{}), filter)
	likes := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		likes = append(likes, "lower(embedding_text) LIKE ?")
		args = append(args, "%"+tok+"%")
	}
	q = q.Where(strings.Join(likes, " OR "), args...)

	var items []entity.KnowledgeItem
	if err := q.Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to execute lexical search")
	}

	hits := make([]SearchHit, 0, len(items))
	for _, item := range items {
		hits = append(hits, SearchHit{
			Item:  item,
			Score: lexicalScore(item.EmbeddingText, tokens),
		})
	}
	sortHitsByScore(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// FindByKeywords implements Store.FindByKeywords. Keyword arrays live inside
// the JSON content column, so matching happens after decode.
func (s *SqliteStore) FindByKeywords(ctx context.Context, kind entity.Kind, keywords []string, limit int) ([]entity.KnowledgeItem, error) {
	if len(keywords) == 0 {
		return []entity.KnowledgeItem{}, nil
	}

	active := true
	items, err := s.Find(ctx, Filter{Kinds: []entity.Kind{kind}, Active: &active}, nil, 0)
	if err != nil {
		return nil, err
	}

	wanted := lo.SliceToMap(keywords, func(k string) (string, struct{}) {
		return stringutils.Clean(k), struct{}{}
	})

	var matched []entity.KnowledgeItem
	for _, item := range items {
		if keywordsIntersect(item.Content.Data(), wanted) {
			matched = append(matched, item)
			if limit > 0 && len(matched) >= limit {
				break
			}
		}
	}
	return matched, nil
}

// PutRelationship implements Store.PutRelationship
func (s *SqliteStore) PutRelationship(ctx context.Context, rel *entity.Relationship) (string, error) {
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Save(rel).Error; err != nil {
		return "", errors.Wrapf(err, "failed to save relationship")
	}
	return rel.ID, nil
}

// RelationshipsFrom implements Store.RelationshipsFrom
func (s *SqliteStore) RelationshipsFrom(ctx context.Context, sourceID string) ([]entity.Relationship, error) {
	var rels []entity.Relationship
	if err := s.db.WithContext(ctx).Where("source_id = ?", sourceID).Find(&rels).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to fetch relationships")
	}
	return rels, nil
}

// DeleteRelationship implements Store.DeleteRelationship
func (s *SqliteStore) DeleteRelationship(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&entity.Relationship{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to delete relationship")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "relationship %s", id)
	}
	return nil
}

// GetConfig implements Store.GetConfig
func (s *SqliteStore) GetConfig(ctx context.Context, name string, def any) (any, error) {
	entry, _, err := s.findConfigEntry(ctx, name)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return def, nil
	}
	return entry.Value, nil
}

// SetConfig implements Store.SetConfig
func (s *SqliteStore) SetConfig(ctx context.Context, name string, value any) error {
	entry, id, err := s.findConfigEntry(ctx, name)
	if err != nil {
		return err
	}

	content := map[string]any{"name": name, "value": value}
	if entry != nil {
		return s.Update(ctx, id, map[string]any{"content": newJSONContent(content)}, nil)
	}

	item := &entity.KnowledgeItem{
		Kind:             entity.KindConfig,
		Content:          newJSONContent(content),
		ValidationStatus: entity.StatusValidated,
		Active:           true,
	}
	_, err = s.Put(ctx, item)
	return err
}

func (s *SqliteStore) findConfigEntry(ctx context.Context, name string) (*ConfigEntry, string, error) {
	items, err := s.Find(ctx, Filter{Kinds: []entity.Kind{entity.KindConfig}}, nil, 0)
	if err != nil {
		return nil, "", err
	}
	for _, item := range items {
		var entry ConfigEntry
		if err := DecodeContent(item.Content.Data(), &entry); err != nil {
			continue
		}
		if entry.Name == name {
			return &entry, item.ID, nil
		}
	}
	return nil, "", nil
}

// AppendFeedback implements Store.AppendFeedback
func (s *SqliteStore) AppendFeedback(ctx context.Context, rec *entity.FeedbackRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return errors.Wrapf(err, "failed to append feedback record")
	}
	return nil
}

// AppendDialogue implements Store.AppendDialogue
func (s *SqliteStore) AppendDialogue(ctx context.Context, ent *entity.DialogueEntry) error {
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		return errors.Wrapf(err, "failed to append dialogue entry")
	}
	return nil
}

// RecentDialogue implements Store.RecentDialogue
func (s *SqliteStore) RecentDialogue(ctx context.Context, sessionID string, limit int) ([]entity.DialogueEntry, error) {
	q := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []entity.DialogueEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to fetch dialogue entries")
	}
	// Oldest first for callers replaying the conversation.
	lo.Reverse(entries)
	return entries, nil
}

// Reindex implements Store.Reindex
func (s *SqliteStore) Reindex(ctx context.Context) (int, error) {
	var mirrorIDs []string
	if err := s.db.WithContext(ctx).Raw("SELECT item_id FROM item_vectors").Scan(&mirrorIDs).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to list mirror rows")
	}
	mirrored := lo.SliceToMap(mirrorIDs, func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	var items []entity.KnowledgeItem
	if err := s.db.WithContext(ctx).Find(&items).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to list knowledge items")
	}

	repaired := 0
	eligibleIDs := make(map[string]struct{}, len(items))
	for i := range items {
		item := &items[i]
		if !s.eligible(item) {
			continue
		}
		eligibleIDs[item.ID] = struct{}{}
		if _, ok := mirrored[item.ID]; ok {
			continue
		}
		if err := s.mirrorUpsert(ctx, item); err != nil {
			s.logger.Warn("reindex upsert failed", "id", item.ID, "err", err)
			continue
		}
		repaired++
	}

	for id := range mirrored {
		if _, ok := eligibleIDs[id]; ok {
			continue
		}
		if err := s.mirrorDelete(ctx, id); err != nil {
			s.logger.Warn("reindex delete failed", "id", id, "err", err)
			continue
		}
		repaired++
	}

	return repaired, nil
}

// MirrorSize reports how many rows the vector mirror currently holds.
func (s *SqliteStore) MirrorSize(ctx context.Context) (int, error) {
	var n int
	if err := s.db.WithContext(ctx).Raw("SELECT count(*) FROM item_vectors").Scan(&n).Error; err != nil {
		return 0, errors.Wrapf(err, "failed to count mirror rows")
	}
	return n, nil
}

// HasMirror reports whether a mirror row exists for the item.
func (s *SqliteStore) HasMirror(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.WithContext(ctx).Raw("SELECT count(*) FROM item_vectors WHERE item_id = ?", id).Scan(&n).Error; err != nil {
		return false, errors.Wrapf(err, "failed to check mirror row")
	}
	return n > 0, nil
}

// DB exposes the underlying gorm handle for maintenance tooling and tests.
func (s *SqliteStore) DB() *gorm.DB {
	return s.db
}

// Close implements Store.Close
func (s *SqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
