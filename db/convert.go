package db

import (
	"encoding/json"

	"gorm.io/datatypes"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/db/models"
)

// NewEventFromResult maps a candidate event onto a seminars row.
func NewEventFromResult(e v1.Event) (models.Event, error) {
	row := models.Event{
		ID:                e.ID,
		SourceID:          e.SourceID,
		Title:             e.Title,
		Description:       e.Description,
		URL:               e.URL,
		StartDatetime:     e.Start,
		EndDatetime:       e.End,
		Timezone:          e.Timezone,
		Location:          e.Location,
		Organizer:         e.Organizer,
		Category:          e.Category,
		AccessRestriction: string(e.AccessRestriction),
		RegistrationURL:   e.RegistrationURL,
		RecordingURL:      e.RecordingURL,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
		Checksum:          e.Checksum,
	}

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return row, err
	}
	row.Tags = datatypes.JSON(b)

	if len(e.Raw) > 0 {
		b, err := json.Marshal(e.Raw)
		if err != nil {
			return row, err
		}
		row.RawData = datatypes.JSON(b)
	}
	return row, nil
}

// ToEvent maps a stored row back to the canonical shape.
func ToEvent(row models.Event) v1.Event {
	e := v1.Event{
		ID:                row.ID,
		SourceID:          row.SourceID,
		Title:             row.Title,
		Description:       row.Description,
		URL:               row.URL,
		Start:             row.StartDatetime.UTC(),
		Timezone:          row.Timezone,
		Location:          row.Location,
		Organizer:         row.Organizer,
		Category:          row.Category,
		AccessRestriction: v1.AccessRestriction(row.AccessRestriction),
		RegistrationURL:   row.RegistrationURL,
		RecordingURL:      row.RecordingURL,
		CreatedAt:         row.CreatedAt.UTC(),
		UpdatedAt:         row.UpdatedAt.UTC(),
		Checksum:          row.Checksum,
		Tags:              []string{},
	}
	if row.EndDatetime != nil {
		end := row.EndDatetime.UTC()
		e.End = &end
	}
	if len(row.Tags) > 0 {
		_ = json.Unmarshal(row.Tags, &e.Tags)
	}
	if len(row.RawData) > 0 {
		_ = json.Unmarshal(row.RawData, &e.Raw)
	}
	return e
}
