package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event is a row of the seminars table.
type Event struct {
	ID                string         `gorm:"primaryKey;column:id" json:"id"`
	SourceID          string         `gorm:"column:source_id;not null;index:idx_seminars_source" json:"source_id"`
	Title             string         `gorm:"column:title;not null" json:"title"`
	Description       string         `gorm:"column:description" json:"description,omitempty"`
	URL               string         `gorm:"column:url" json:"url,omitempty"`
	StartDatetime     time.Time      `gorm:"column:start_datetime;not null;index:idx_seminars_start" json:"start_datetime"`
	EndDatetime       *time.Time     `gorm:"column:end_datetime" json:"end_datetime,omitempty"`
	Timezone          string         `gorm:"column:timezone;default:America/New_York" json:"timezone"`
	Location          string         `gorm:"column:location" json:"location,omitempty"`
	Organizer         string         `gorm:"column:organizer" json:"organizer,omitempty"`
	Category          string         `gorm:"column:category;index:idx_seminars_category" json:"category,omitempty"`
	Tags              datatypes.JSON `gorm:"column:tags" json:"tags,omitempty"`
	AccessRestriction string         `gorm:"column:access_restriction;default:Public" json:"access_restriction"`
	RegistrationURL   string         `gorm:"column:registration_url" json:"registration_url,omitempty"`
	RecordingURL      string         `gorm:"column:recording_url" json:"recording_url,omitempty"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	Checksum          string         `gorm:"column:checksum" json:"checksum"`
	RawData           datatypes.JSON `gorm:"column:raw_data" json:"raw_data,omitempty"`
}

func (Event) TableName() string {
	return "seminars"
}
