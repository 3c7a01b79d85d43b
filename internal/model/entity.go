package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type InstallationStatus string

const (
	InstallationStatusPending    InstallationStatus = "pending"
	InstallationStatusAccepted   InstallationStatus = "accepted"
	InstallationStatusScheduled  InstallationStatus = "scheduled"
	InstallationStatusInProgress InstallationStatus = "in_progress"
	InstallationStatusCompleted  InstallationStatus = "completed"
	InstallationStatusCancelled  InstallationStatus = "cancelled"
	InstallationStatusRejected   InstallationStatus = "rejected"
)

// Installation is a service appointment synced from the CRM.
type Installation struct {
	ID                   uint64 `gorm:"primaryKey" json:"id"`
	ServiceAppointmentID string `gorm:"type:varchar(255);uniqueIndex;not null" json:"service_appointment_id"`

	CustomerName    string  `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerSurname *string `gorm:"type:varchar(255)" json:"customer_surname,omitempty"`
	CustomerCF      *string `gorm:"column:customer_cf;type:varchar(50)" json:"customer_cf,omitempty"`
	CustomerPhone   *string `gorm:"type:varchar(50)" json:"customer_phone,omitempty"`
	CustomerEmail   *string `gorm:"type:varchar(320)" json:"customer_email,omitempty"`
	CustomerAddress *string `gorm:"type:text" json:"customer_address,omitempty"`

	InstallationAddress string         `gorm:"type:text;not null" json:"installation_address"`
	InstallationType    *string        `gorm:"type:varchar(255)" json:"installation_type,omitempty"`
	TechnicalNotes      *string        `gorm:"type:text" json:"technical_notes,omitempty"`
	InstallerNotes      *string        `gorm:"type:text" json:"installer_notes,omitempty"`
	ImagesToView        datatypes.JSON `gorm:"type:text" json:"images_to_view,omitempty"`
	CompletionLink      *string        `gorm:"type:text" json:"completion_link,omitempty"`
	PdfURL              *string        `gorm:"column:pdf_url;type:text" json:"pdf_url,omitempty"`

	DurationMinutes   *int       `json:"duration_minutes,omitempty"`
	TravelTimeMinutes *int       `json:"travel_time_minutes"`
	TeamID            *uint64    `gorm:"index" json:"team_id,omitempty"`
	PartnerID         *uint64    `gorm:"index" json:"partner_id,omitempty"`
	ScheduledStart    *time.Time `gorm:"index" json:"scheduled_start,omitempty"`
	ScheduledEnd      *time.Time `json:"scheduled_end,omitempty"`

	Status          InstallationStatus `gorm:"type:varchar(32);index;not null" json:"status"`
	RejectionReason *string            `gorm:"type:text" json:"rejection_reason,omitempty"`
	AcceptedAt      *time.Time         `json:"accepted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Images decodes ImagesToView; malformed blobs yield an empty list.
func (i *Installation) Images() []string {
	if len(i.ImagesToView) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(i.ImagesToView, &out); err != nil {
		return nil
	}
	return out
}

// IsScheduled reports whether the installation carries a complete slot assignment.
func (i *Installation) IsScheduled() bool {
	return i.ScheduledStart != nil && i.ScheduledEnd != nil && i.TeamID != nil && i.PartnerID != nil
}

type Partner struct {
	ID                  uint64  `gorm:"primaryKey" json:"id"`
	SalesforcePartnerID string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"salesforce_partner_id"`
	Name                string  `gorm:"type:varchar(255);not null" json:"name"`
	Email               *string `gorm:"type:varchar(320)" json:"email,omitempty"`
	Phone               *string `gorm:"type:varchar(50)" json:"phone,omitempty"`
	StartingAddress     *string `gorm:"type:text" json:"starting_address,omitempty"`
	Username            string  `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash        string  `gorm:"type:text;not null" json:"-"`
	IsActive            bool    `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Team struct {
	ID               uint64  `gorm:"primaryKey" json:"id"`
	SalesforceTeamID string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"salesforce_team_id"`
	PartnerID        uint64  `gorm:"index;not null" json:"partner_id"`
	Name             string  `gorm:"type:varchar(255);not null" json:"name"`
	Description      *string `gorm:"type:text" json:"description,omitempty"`
	IsActive         bool    `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Technician struct {
	ID           uint64  `gorm:"primaryKey" json:"id"`
	TeamID       uint64  `gorm:"index;not null" json:"team_id"`
	PartnerID    uint64  `gorm:"index;not null" json:"partner_id"`
	Name         string  `gorm:"type:varchar(255);not null" json:"name"`
	Email        *string `gorm:"type:varchar(320)" json:"email,omitempty"`
	Phone        *string `gorm:"type:varchar(50)" json:"phone,omitempty"`
	Username     string  `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	PasswordHash string  `gorm:"type:text;not null" json:"-"`
	IsActive     bool    `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting is an operator-managed key/value pair (integration credentials and URLs).
type Setting struct {
	ID          uint64  `gorm:"primaryKey" json:"id"`
	Key         string  `gorm:"column:config_key;type:varchar(100);uniqueIndex;not null" json:"key"`
	Value       string  `gorm:"column:config_value;type:text;not null" json:"value"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SettingGoogleMapsAPIKey     = "google_maps_api_key"
	SettingSalesforceWebhookURL = "salesforce_webhook_url"
)
