package models

// TreeKind тип иерархического справочника
type TreeKind string

const (
	TreeCategories TreeKind = "categories"
	TreeBrands     TreeKind = "brands"
)

// Valid проверяет тип справочника
func (k TreeKind) Valid() bool {
	return k == TreeCategories || k == TreeBrands
}

// TreeNode узел справочника категорий или брендов
type TreeNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	HasChildren bool   `json:"has_children"`
}

// TreePage страница дочерних узлов
type TreePage struct {
	Items []TreeNode `json:"items"`
	Total int64      `json:"total"`
}
