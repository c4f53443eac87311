package models

// MediaStatus состояние элемента медиа-списка
type MediaStatus string

const (
	MediaPending   MediaStatus = "pending"
	MediaFailed    MediaStatus = "failed"
	MediaPersisted MediaStatus = "persisted"
)

// Ключи элемента медиа-списка
const (
	MediaKeyID          = "id"
	MediaKeyURL         = "url"
	MediaKeyName        = "name"
	MediaKeyContentType = "content_type"
	MediaKeySize        = "size"
	MediaKeyLocalRef    = "local_ref"
	MediaKeyStatus      = "status"
	MediaKeyError       = "error"
)

// PendingFile локальный файл, ожидающий загрузки при сохранении секции
type PendingFile struct {
	LocalRef    string `json:"local_ref"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// UploadedItem результат загрузки одного файла
type UploadedItem struct {
	LocalRef string `json:"local_ref"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Failed сообщает, что файл не был загружен
func (u UploadedItem) Failed() bool {
	return u.Error != "" || u.ID == ""
}

// NewPendingItem создает элемент медиа-списка для локального файла
func NewPendingItem(file PendingFile) map[string]any {
	return map[string]any{
		MediaKeyLocalRef:    file.LocalRef,
		MediaKeyName:        file.Name,
		MediaKeyContentType: file.ContentType,
		MediaKeySize:        float64(len(file.Data)),
		MediaKeyStatus:      string(MediaPending),
	}
}

// PersistedItem элемент медиа-списка после успешной загрузки
func PersistedItem(pending map[string]any, uploaded UploadedItem) map[string]any {
	item := map[string]any{
		MediaKeyID:  uploaded.ID,
		MediaKeyURL: uploaded.URL,
	}
	if name, ok := pending[MediaKeyName]; ok {
		item[MediaKeyName] = name
	}
	if ct, ok := pending[MediaKeyContentType]; ok {
		item[MediaKeyContentType] = ct
	}
	return item
}

// FailedItem помечает локальный элемент как незагруженный
func FailedItem(pending map[string]any, message string) map[string]any {
	item := make(map[string]any, len(pending)+1)
	for k, v := range pending {
		item[k] = v
	}
	item[MediaKeyStatus] = string(MediaFailed)
	item[MediaKeyError] = message
	return item
}

// LocalRef возвращает ссылку на локальный файл, если значение является
// еще не сохраненным на сервере элементом медиа-списка
func LocalRef(v any) (string, bool) {
	item, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	ref, ok := item[MediaKeyLocalRef].(string)
	return ref, ok && ref != ""
}
