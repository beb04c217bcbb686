package models

import "time"

// CTA lifecycle states.
const (
	StatusDraft    = "draft"
	StatusPublish  = "publish"
	StatusSchedule = "schedule"
	StatusArchived = "archived"
	StatusTrash    = "trash"
)

// CTA presentation types.
const (
	TypePhone   = "phone"
	TypeLink    = "link"
	TypeEmail   = "email"
	TypePopup   = "popup"    // Pro
	TypeSlideIn = "slide_in" // Pro
)

// Layouts.
const (
	LayoutButton = "button"
	LayoutCard   = "card" // Pro
)

// Visibility values.
const (
	VisibilityAll     = "all_devices"
	VisibilityDesktop = "desktop_only" // Pro
	VisibilityMobile  = "mobile_only"  // Pro
)

// Schedule types.
const (
	ScheduleDateRange     = "date_range"
	ScheduleBusinessHours = "business_hours" // Pro
)

type User struct {
	ID           int    `gorm:"primary_key;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
}

type CTA struct {
	ID        uint       `gorm:"primary_key" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `sql:"index" json:"deleted_at,omitempty"`

	Name    string `gorm:"not null" json:"name"`
	Status  string `gorm:"not null;default:'draft';index" json:"status"`
	Type    string `gorm:"not null;default:'link'" json:"type"`
	Layout  string `gorm:"not null;default:'button'" json:"layout"`
	Enabled bool   `gorm:"default:true;index" json:"enabled"`
	IsDemo  bool   `gorm:"default:false;index" json:"_demo"` // seed data, excluded from quotas

	// Target fields; only the one matching Type is used.
	PhoneNumber  string `json:"phone_number"`
	LinkURL      string `json:"link_url"`
	EmailAddress string `json:"email_address"`

	Visibility      string `gorm:"default:'all_devices'" json:"visibility"`
	Icon            string `json:"icon"`
	ButtonAnimation string `json:"button_animation"`
	IconAnimation   string `json:"icon_animation"`

	ScheduleType  string `gorm:"default:'date_range'" json:"schedule_type"`
	ScheduleStart string `json:"schedule_start"` // YYYY-MM-DD, empty = unscheduled
	ScheduleEnd   string `json:"schedule_end"`

	// Styling document (colors, gradients, borders, padding, fonts) as JSON.
	StyleJSON string `gorm:"type:text" json:"style"`
}

// Setting holds one settings group as a JSON document. Groups prefixed with
// "backup:" form the backup namespace used by the demo-settings snapshot.
type Setting struct {
	ID    uint   `gorm:"primary_key;autoIncrement" json:"id"`
	Group string `gorm:"column:group_key;unique;not null" json:"group"`
	Value string `gorm:"type:text" json:"value"`
}

type Notification struct {
	ID          uint      `gorm:"primary_key;autoIncrement" json:"id"`
	UserID      int       `gorm:"not null;index" json:"user_id"`
	Type        string    `gorm:"not null" json:"type"` // "demo_" prefix marks demo rows
	Title       string    `gorm:"not null" json:"title"`
	Message     string    `gorm:"type:text" json:"message"` // markdown
	Icon        string    `json:"icon"`
	ActionsJSON string    `gorm:"type:text" json:"actions"` // [{label,url}]
	CreatedAt   time.Time `json:"created_at"`
}

// IsNotificationDeletable reports whether a notification of the given type
// may be removed by the user. System and license notices stay until resolved.
func IsNotificationDeletable(notificationType string) bool {
	switch notificationType {
	case "system", "license":
		return false
	}
	return true
}

type CustomIcon struct {
	ID        string    `gorm:"primary_key" json:"id"` // uuid
	Name      string    `gorm:"not null" json:"name"`
	SVG       string    `gorm:"type:text;not null" json:"svg"`
	CreatedAt time.Time `json:"created_at"`
}

// UserMeta is a per-user key/value row (read-state, last seen reply ids).
type UserMeta struct {
	ID     uint   `gorm:"primary_key;autoIncrement" json:"id"`
	UserID int    `gorm:"not null;index:idx_user_meta,unique" json:"user_id"`
	Key    string `gorm:"not null;index:idx_user_meta,unique" json:"key"`
	Value  string `gorm:"type:text" json:"value"`
}
