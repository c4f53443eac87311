// Package utils содержит общие вспомогательные типы, например пагинацию
// списков справочников и журнала изменений.
package utils

import "strconv"

// Pagination номер и размер страницы вместе с итогами, которые заполняются
// после запроса
type Pagination struct {
	Page       int   `json:"page"`      // с 1
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NewPagination создает пагинацию; некорректные значения заменяются на допустимые
func NewPagination(page, pageSize int) *Pagination {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return &Pagination{Page: page, PageSize: pageSize}
}

// ParsePagination читает page и page_size из строковых параметров запроса.
// Пустые и нечисловые значения дают значения по умолчанию.
func ParsePagination(page, pageSize string) *Pagination {
	p, _ := strconv.Atoi(page)
	size, _ := strconv.Atoi(pageSize)
	return NewPagination(p, size)
}

// SetTotal запоминает общее число элементов и пересчитывает страницы
func (p *Pagination) SetTotal(totalItems int64) {
	p.TotalItems = totalItems
	p.TotalPages = int((totalItems + int64(p.PageSize) - 1) / int64(p.PageSize))
	p.HasNext = p.Page < p.TotalPages
	p.HasPrev = p.Page > 1
}

// OutOfRange сообщает, что после SetTotal номер страницы больше числа страниц.
// Пустой список считается одной страницей.
func (p *Pagination) OutOfRange() bool {
	return p.Page > 1 && p.Page > p.TotalPages
}

// GetOffset смещение для SQL запроса
func (p *Pagination) GetOffset() int {
	return (p.Page - 1) * p.PageSize
}

// GetLimit лимит для SQL запроса
func (p *Pagination) GetLimit() int {
	return p.PageSize
}

// PagedResult страница элементов с итогами пагинации
type PagedResult struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

func NewPagedResult(items interface{}, pagination *Pagination) *PagedResult {
	return &PagedResult{Items: items, Pagination: pagination}
}
