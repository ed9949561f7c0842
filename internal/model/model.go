package model

import "time"

const (
	Year3rd = "3rd"
	Year4th = "4th"
)

const (
	CategoryPoster = "poster"
	CategoryEvent  = "event"
	CategoryMemory = "memory"
	CategoryOther  = "other"
)

type Registration struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Year           string     `db:"year" json:"year"`
	RollNumber     string     `db:"roll_number" json:"roll_number"`
	Phone          string     `db:"phone" json:"phone"`
	RegistrationID string     `db:"registration_id" json:"registration_id"`
	Timestamp      *time.Time `db:"timestamp" json:"timestamp,omitempty"`
	ReceiptURL     string     `db:"receipt_url,omitempty" json:"receipt_url,omitempty"`
	CloudinaryID   string     `db:"cloudinary_id,omitempty" json:"cloudinary_id,omitempty"`
}

// RegistrationPatch carries only the fields an admin submitted.
type RegistrationPatch struct {
	Name       *string
	Year       *string
	RollNumber *string
	Phone      *string
}

func (p RegistrationPatch) Empty() bool {
	return p.Name == nil && p.Year == nil && p.RollNumber == nil && p.Phone == nil
}

type Receipt struct {
	URL          string
	CloudinaryID string
}

type EventDetails struct {
	ID                string    `db:"id" json:"id"`
	EventDate         string    `db:"event_date" json:"event_date"`
	EventTime         string    `db:"event_time" json:"event_time"`
	EventLocation     string    `db:"event_location" json:"event_location"`
	EventRestrictions string    `db:"event_restrictions" json:"event_restrictions"`
	LastUpdated       time.Time `db:"last_updated" json:"last_updated"`
}

type EventDetailsPatch struct {
	EventDate         *string
	EventTime         *string
	EventLocation     *string
	EventRestrictions *string
}

func DefaultEventDetails() EventDetails {
	return EventDetails{
		EventDate:         "May 28, 2023",
		EventTime:         "7:00 PM",
		EventLocation:     "Campus Auditorium, Main Building",
		EventRestrictions: "Only for 3rd & 4th year students",
	}
}

type EventSettings struct {
	ID          string    `db:"id" json:"id"`
	Price       int       `db:"price" json:"price"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`
}

const DefaultPrice = 600

func DefaultEventSettings() EventSettings {
	return EventSettings{Price: DefaultPrice}
}

type GalleryImage struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Category     string    `db:"category" json:"category"`
	Featured     bool      `db:"featured" json:"featured"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	ThumbnailURL string    `db:"thumbnail_url" json:"thumbnail_url"`
	StorageRef   string    `db:"storage_ref" json:"storage_ref,omitempty"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
}

type GalleryImagePatch struct {
	Title       *string
	Description *string
	Category    *string
	Featured    *bool
}

type GalleryFilter struct {
	Category string
	Featured bool
	Limit    int
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryPoster, CategoryEvent, CategoryMemory, CategoryOther:
		return true
	}
	return false
}
