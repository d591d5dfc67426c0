package relay

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// ArchiveMessage inserts a relayed message. A duplicate platform
// message id is treated as already-archived, not an error.
func (r *Repo) ArchiveMessage(ctx context.Context, m *RelayedMessage) error {
	err := r.db.WithContext(ctx).Create(m).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

// ListBySession returns archived messages for a session in insertion order.
func (r *Repo) ListBySession(ctx context.Context, sessionID string, limit int) ([]RelayedMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var msgs []RelayedMessage
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) CreateTicketRecord(ctx context.Context, t *TicketRecord) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repo) GetPageByID(ctx context.Context, pageID string) (*Page, error) {
	var p Page
	if err := r.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) UpsertPage(ctx context.Context, p *Page) error {
	var existing Page
	err := r.db.WithContext(ctx).Where("page_id = ?", p.PageID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(p).Error
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&existing).
		Updates(map[string]any{
			"name":         p.Name,
			"access_token": p.AccessToken,
		}).Error
}
