package tracking

import (
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// TextEdit фрагмент посимвольного сравнения строк
type TextEdit struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// FieldChange изменение одного поля секции относительно снимка
type FieldChange struct {
	Field    string           `json:"field"`
	Kind     models.FieldKind `json:"kind"`
	From     any              `json:"from"`
	To       any              `json:"to"`
	TextDiff []TextEdit       `json:"text_diff,omitempty"`
}

// Preview описывает изменения секции для диалога подтверждения
func (e *Engine) Preview(section models.Section, working *models.Record, base *Snapshot) []FieldChange {
	spec, ok := e.schema.Section(section)
	if !ok {
		return nil
	}
	diff := e.SectionDiff(section, working, base)

	changes := make([]FieldChange, 0, len(diff))
	for _, f := range spec.Fields {
		to, changed := diff[f.Name]
		if !changed {
			continue
		}
		change := FieldChange{
			Field: f.Name,
			Kind:  f.Kind,
			From:  base.Value(section, f.Name),
			To:    to,
		}
		if f.Kind == models.KindString || f.Kind == models.KindHTML {
			from, _ := change.From.(string)
			next, _ := to.(string)
			change.TextDiff = textDiff(from, next)
		}
		changes = append(changes, change)
	}
	return changes
}

func textDiff(from, to string) []TextEdit {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(from, to, false))

	edits := make([]TextEdit, 0, len(diffs))
	for _, d := range diffs {
		var op string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = "insert"
		case diffmatchpatch.DiffDelete:
			op = "delete"
		default:
			op = "equal"
		}
		edits = append(edits, TextEdit{Op: op, Text: d.Text})
	}
	return edits
}
