package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrSessionNotFound = errors.New("editor session not found")
	ErrSessionClosed   = errors.New("editor session closed")
	ErrUnknownSection  = errors.New("unknown section")
	ErrUnknownField    = errors.New("unknown field")
	ErrSaveInProgress  = errors.New("save already in progress")
	ErrItemNotFound    = errors.New("item not found")
	ErrUploadNotFound  = errors.New("staged upload not found")
	ErrNotMediaField   = errors.New("field does not accept uploads")
	ErrEmptyUpload     = errors.New("no files to upload")
	ErrMissingShopID   = errors.New("shop id is required")
	ErrBrowserNotFound = errors.New("browser session not found")
	ErrHistoryDisabled = errors.New("audit history is not configured")
)

// ValidationError сервер отклонил данные секции (400/422)
type ValidationError struct {
	Section     Section
	Message     string
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "validation failed"
	}
	if len(e.FieldErrors) == 0 {
		return msg
	}
	names := make([]string, 0, len(e.FieldErrors))
	for name := range e.FieldErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + e.FieldErrors[name]
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

// TransientError сетевой сбой, таймаут или 5xx; можно повторить
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("backend unavailable (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend unavailable: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ConflictError запись изменена в другом месте (409/412)
type ConflictError struct {
	RecordID string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("record %s was modified elsewhere: %s", e.RecordID, e.Message)
	}
	return fmt.Sprintf("record %s was modified elsewhere", e.RecordID)
}

// NotFoundError запись больше не существует; сессию редактора нужно закрыть
type NotFoundError struct {
	RecordID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %s not found", e.RecordID)
}

// UploadFailure ошибка загрузки одного файла
type UploadFailure struct {
	LocalRef string `json:"local_ref"`
	Name     string `json:"name,omitempty"`
	Message  string `json:"message"`
}

// UploadPartialFailure часть файлов секции не загрузилась
type UploadPartialFailure struct {
	Section   Section         `json:"section"`
	Failed    []UploadFailure `json:"failed"`
	Persisted int             `json:"persisted"`
}

func (e *UploadPartialFailure) Error() string {
	return fmt.Sprintf("%d of %d uploads failed in section %s",
		len(e.Failed), len(e.Failed)+e.Persisted, e.Section)
}

// IsFatal сообщает, что ошибка делает сессию редактора непригодной
func IsFatal(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
