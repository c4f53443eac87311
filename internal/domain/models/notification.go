package models

import "time"

// NotificationVariant вид уведомления в интерфейсе
type NotificationVariant string

const (
	VariantDefault     NotificationVariant = "default"
	VariantSuccess     NotificationVariant = "success"
	VariantDestructive NotificationVariant = "destructive"
)

// Notification сообщение, которое показывается пользователю
type Notification struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Variant     NotificationVariant `json:"variant"`
	Section     Section             `json:"section,omitempty"`
	FieldErrors map[string]string   `json:"field_errors,omitempty"`
	Action      string              `json:"action,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}
