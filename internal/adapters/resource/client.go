// Package resource реализует клиент REST API каталога товаров.
package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
	"github.com/athebyme/gomarket-admin/pkg/utils"
)

const maxResponseBytes = 8 << 20

// Config настройки клиента каталога
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client клиент каталога товаров и справочников
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	logger    interfaces.LoggerPort
}

// NewClient создает клиент. Если httpClient равен nil, создается клиент
// с таймаутом из конфигурации.
func NewClient(cfg Config, httpClient *http.Client, logger interfaces.LoggerPort) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("resource base url is empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid resource base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "gomarket-admin"
	}
	return &Client{baseURL: base, http: httpClient, userAgent: ua, logger: logger}, nil
}

type patchRequest struct {
	Fields models.Fields `json:"fields"`
}

type uploadResponse struct {
	Items []models.UploadedItem `json:"items"`
}

// Fetch загружает запись товара
func (c *Client) Fetch(ctx context.Context, shopID, id string) (*models.Record, error) {
	req, err := c.newRequest(ctx, http.MethodGet, shopID, nil, "products", id)
	if err != nil {
		return nil, err
	}
	var record models.Record
	if err := c.do(req, id, "", &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Patch отправляет изменения одной секции и возвращает серверное представление записи
func (c *Client) Patch(ctx context.Context, shopID string, ref models.RecordRef, section models.Section, fields models.Fields) (*models.Record, error) {
	payload, err := json.Marshal(patchRequest{Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, shopID, bytes.NewReader(payload), "products", ref.ID, "sections", string(section))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if ref.Version != "" {
		req.Header.Set("If-Match", strconv.Quote(ref.Version))
	}

	var record models.Record
	if err := c.do(req, ref.ID, section, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// PatchItem отправляет изменения одного элемента keyed_list. Остальные
// элементы списка сервер не трогает.
func (c *Client) PatchItem(ctx context.Context, shopID string, ref models.RecordRef, section models.Section, field, itemID string, item map[string]any) (*models.Record, error) {
	payload, err := json.Marshal(patchRequest{Fields: item})
	if err != nil {
		return nil, fmt.Errorf("failed to encode item patch: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPatch, shopID, bytes.NewReader(payload),
		"products", ref.ID, "sections", string(section), "items", field, itemID)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if ref.Version != "" {
		req.Header.Set("If-Match", strconv.Quote(ref.Version))
	}

	var record models.Record
	if err := c.do(req, ref.ID, section, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// UploadFiles загружает файлы секции одним multipart-запросом.
// Результат содержит по одному элементу на файл, в том числе с ошибкой.
func (c *Client) UploadFiles(ctx context.Context, shopID, recordID string, section models.Section, files []models.PendingFile) ([]models.UploadedItem, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, file := range files {
		if err := mw.WriteField("local_ref", file.LocalRef); err != nil {
			return nil, fmt.Errorf("failed to write multipart field: %w", err)
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, file.Name))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create multipart part: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("failed to write multipart part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, shopID, &body, "products", recordID, "sections", string(section), "files")
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp uploadResponse
	if err := c.do(req, recordID, section, &resp); err != nil {
		return nil, err
	}

	// Файлы, о которых сервер не сообщил, считаются незагруженными
	byRef := make(map[string]models.UploadedItem, len(resp.Items))
	for _, item := range resp.Items {
		byRef[item.LocalRef] = item
	}
	result := make([]models.UploadedItem, 0, len(files))
	for _, file := range files {
		item, ok := byRef[file.LocalRef]
		if !ok {
			item = models.UploadedItem{LocalRef: file.LocalRef, Error: "upload result missing"}
		}
		result = append(result, item)
	}
	return result, nil
}

// ListChildren возвращает страницу дочерних узлов справочника
func (c *Client) ListChildren(ctx context.Context, shopID string, kind models.TreeKind, parentID string, page *utils.Pagination) (*models.TreePage, error) {
	req, err := c.newRequest(ctx, http.MethodGet, shopID, nil, string(kind))
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	if parentID != "" {
		q.Set("parent_id", parentID)
	}
	q.Set("page", strconv.Itoa(page.Page))
	q.Set("page_size", strconv.Itoa(page.PageSize))
	req.URL.RawQuery = q.Encode()

	var result models.TreePage
	if err := c.do(req, parentID, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) newRequest(ctx context.Context, method, shopID string, body io.Reader, segments ...string) (*http.Request, error) {
	if shopID == "" {
		return nil, models.ErrMissingShopID
	}
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	target := c.baseURL.String() + "/" + strings.Join(escaped, "/")

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Shop-ID", shopID)
	if reqID, ok := ctx.Value(interfaces.RequestIDKey).(string); ok && reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, recordID string, section models.Section, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnWithContext(req.Context(), "Запрос к каталогу не выполнен",
			interfaces.LogField{Key: "method", Value: req.Method},
			interfaces.LogField{Key: "url", Value: req.URL.Path},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return &models.TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &models.TransientError{StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.DebugWithContext(req.Context(), "Ответ каталога",
		interfaces.LogField{Key: "method", Value: req.Method},
		interfaces.LogField{Key: "url", Value: req.URL.Path},
		interfaces.LogField{Key: "status", Value: resp.StatusCode},
		interfaces.LogField{Key: "duration", Value: time.Since(start).String()},
	)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return mapStatus(resp.StatusCode, body, recordID, section)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
