// Package cta owns persistence for CTA records, including soft-delete
// (trash) semantics and demo flagging.
package cta

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"ctamanager/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Filters narrows GetAll. Zero values mean "no filter".
type Filters struct {
	Status         string
	Enabled        *bool
	ExcludeDemo    bool
	IncludeDeleted bool
	OrderBy        string // created_at | updated_at | name; default created_at DESC
}

var orderColumns = map[string]string{
	"created_at": "created_at DESC",
	"updated_at": "updated_at DESC",
	"name":       "name ASC",
}

// GetAll returns CTAs matching the filters. Soft-deleted rows are excluded
// unless IncludeDeleted is set. Absence yields an empty slice, not an error.
func (r *Repository) GetAll(f Filters) []models.CTA {
	query := r.db.Model(&models.CTA{})

	if !f.IncludeDeleted {
		query = query.Where("deleted_at IS NULL")
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Enabled != nil {
		query = query.Where("enabled = ?", *f.Enabled)
	}
	if f.ExcludeDemo {
		query = query.Where("is_demo = ?", false)
	}

	order, ok := orderColumns[f.OrderBy]
	if !ok {
		order = orderColumns["created_at"]
	}

	var ctas []models.CTA
	if err := query.Order(order).Find(&ctas).Error; err != nil {
		return []models.CTA{}
	}
	return ctas
}

// GetByID returns the record or nil when absent (soft-deleted included only
// when includeDeleted is set).
func (r *Repository) GetByID(id uint, includeDeleted bool) *models.CTA {
	query := r.db.Where("id = ?", id)
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	var record models.CTA
	if err := query.First(&record).Error; err != nil {
		return nil
	}
	return &record
}

func (r *Repository) Create(record *models.CTA) error {
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()
	return r.db.Create(record).Error
}

// Update replaces the configuration fields of an existing record wholesale.
func (r *Repository) Update(record *models.CTA) error {
	record.UpdatedAt = time.Now()
	return r.db.Save(record).Error
}

// Delete soft-deletes by default: the row gets a deleted_at stamp and
// status trash. With permanent set, the row is removed outright.
func (r *Repository) Delete(id uint, permanent bool) error {
	if permanent {
		result := r.db.Unscoped().Where("id = ?", id).Delete(&models.CTA{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}

	record := r.GetByID(id, false)
	if record == nil {
		return gorm.ErrRecordNotFound
	}

	now := time.Now()
	record.DeletedAt = &now
	record.Status = models.StatusTrash
	record.UpdatedAt = now
	return r.db.Save(record).Error
}

// Restore clears the trash state of a soft-deleted record, returning it to
// draft.
func (r *Repository) Restore(id uint) error {
	record := r.GetByID(id, true)
	if record == nil || record.DeletedAt == nil {
		return gorm.ErrRecordNotFound
	}

	record.DeletedAt = nil
	record.Status = models.StatusDraft
	record.UpdatedAt = time.Now()
	return r.db.Save(record).Error
}

// EmptyTrash permanently removes every soft-deleted row. Returns the number
// of rows removed.
func (r *Repository) EmptyTrash() (int64, error) {
	result := r.db.Unscoped().Where("deleted_at IS NOT NULL").Delete(&models.CTA{})
	return result.RowsAffected, result.Error
}

// GetDemoCTAIDs returns the ids of all demo rows, trashed ones included.
func (r *Repository) GetDemoCTAIDs() []uint {
	var ids []uint
	if err := r.db.Model(&models.CTA{}).Where("is_demo = ?", true).Pluck("id", &ids).Error; err != nil {
		return []uint{}
	}
	return ids
}

// DeleteDemoCTAs bulk-removes all demo rows permanently.
func (r *Repository) DeleteDemoCTAs() (int64, error) {
	result := r.db.Unscoped().Where("is_demo = ?", true).Delete(&models.CTA{})
	return result.RowsAffected, result.Error
}

// Count returns the number of live (non-trashed) rows, optionally excluding
// demo rows.
func (r *Repository) Count(excludeDemo bool) int64 {
	query := r.db.Model(&models.CTA{}).Where("deleted_at IS NULL")
	if excludeDemo {
		query = query.Where("is_demo = ?", false)
	}

	var count int64
	query.Count(&count)
	return count
}

// CountActiveNonDemo counts published or scheduled non-demo rows; the
// onboarding screen keys off this being zero.
func (r *Repository) CountActiveNonDemo() int64 {
	var count int64
	r.db.Model(&models.CTA{}).
		Where("deleted_at IS NULL AND is_demo = ? AND status IN ?", false,
			[]string{models.StatusPublish, models.StatusSchedule}).
		Count(&count)
	return count
}

// IsNotFound reports whether err is the repository's absent-record error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
