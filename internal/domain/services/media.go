package services

import (
	"slices"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
)

// Вспомогательные функции для элементов медиа-списков, еще не сохраненных
// на сервере (элементов с local_ref) внутри значений секции.

// stripUnpersisted удаляет из значения элементы с local_ref
func stripUnpersisted(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if _, local := models.LocalRef(item); local {
				continue
			}
			out = append(out, stripUnpersisted(item))
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if s := stripUnpersisted(item); s != nil {
				out[k] = s
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return val
	}
}

// reinsertUnpersisted берет серверное значение и возвращает на исходные
// позиции элементы рабочей копии, которые еще не загружены
func reinsertUnpersisted(server, working any) any {
	wl, ok := working.([]any)
	if !ok {
		return models.CloneValue(server)
	}
	sl, _ := server.([]any)

	out := make([]any, 0, len(sl)+len(wl))
	for _, item := range sl {
		out = append(out, mergeNestedUnpersisted(item, wl))
	}
	for i, item := range wl {
		if _, local := models.LocalRef(item); !local {
			continue
		}
		if i > len(out) {
			i = len(out)
		}
		out = slices.Insert(out, i, models.CloneValue(item))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mergeNestedUnpersisted переносит незагруженные элементы вложенных списков
// (например, изображения варианта) в серверный элемент с тем же id
func mergeNestedUnpersisted(serverItem any, workingList []any) any {
	sm, ok := serverItem.(map[string]any)
	if !ok {
		return models.CloneValue(serverItem)
	}
	id, ok := sm[models.DefaultItemKey]
	if !ok {
		return models.CloneValue(serverItem)
	}
	for _, candidate := range workingList {
		wm, ok := candidate.(map[string]any)
		if !ok || wm[models.DefaultItemKey] != id {
			continue
		}
		merged := models.CloneValue(sm).(map[string]any)
		for k, wv := range wm {
			if hasUnpersisted(wv) {
				merged[k] = reinsertUnpersisted(sm[k], wv)
			}
		}
		return merged
	}
	return models.CloneValue(serverItem)
}

// hasUnpersisted сообщает, содержит ли значение элементы с local_ref
func hasUnpersisted(v any) bool {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if _, local := models.LocalRef(item); local || hasUnpersisted(item) {
				return true
			}
		}
	case map[string]any:
		if _, local := models.LocalRef(val); local {
			return true
		}
		for _, item := range val {
			if hasUnpersisted(item) {
				return true
			}
		}
	}
	return false
}

// collectLocal собирает незагруженные элементы значения
func collectLocal(v any, out *[]map[string]any) {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if _, local := models.LocalRef(item); local {
				*out = append(*out, item.(map[string]any))
				continue
			}
			collectLocal(item, out)
		}
	case map[string]any:
		for _, item := range val {
			collectLocal(item, out)
		}
	}
}

// replaceLocal заменяет элемент с указанным local_ref результатом fn
func replaceLocal(v any, ref string, fn func(map[string]any) map[string]any) bool {
	switch val := v.(type) {
	case []any:
		for i, item := range val {
			if r, local := models.LocalRef(item); local && r == ref {
				val[i] = fn(item.(map[string]any))
				return true
			}
			if replaceLocal(item, ref, fn) {
				return true
			}
		}
	case map[string]any:
		for _, item := range val {
			if replaceLocal(item, ref, fn) {
				return true
			}
		}
	}
	return false
}

// removeLocal удаляет элемент с указанным local_ref; возвращает новое значение
func removeLocal(v any, ref string) (any, bool) {
	switch val := v.(type) {
	case []any:
		for i, item := range val {
			if r, local := models.LocalRef(item); local && r == ref {
				out := slices.Delete(slices.Clone(val), i, i+1)
				if len(out) == 0 {
					return nil, true
				}
				return out, true
			}
			if nv, ok := removeLocal(item, ref); ok {
				val[i] = nv
				return val, true
			}
		}
	case map[string]any:
		for k, item := range val {
			if nv, ok := removeLocal(item, ref); ok {
				if nv == nil {
					delete(val, k)
				} else {
					val[k] = nv
				}
				return val, true
			}
		}
	}
	return v, false
}
