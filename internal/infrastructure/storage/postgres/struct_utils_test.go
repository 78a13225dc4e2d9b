package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockbook/internal/core/entity"
	"stockbook/internal/core/id"
)

type mockCatalog struct {
	entity.BaseCatalog
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

type mockDocument struct {
	entity.BaseDocument
	Number string `db:"number" json:"number"`
}

func TestExtractDBColumns_Catalog(t *testing.T) {
	cols := ExtractDBColumns[mockCatalog]()

	expectedCols := []string{"id", "version", "code", "name"}

	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
}

func TestExtractDBColumns_Document(t *testing.T) {
	cols := ExtractDBColumns[mockDocument]()

	expectedCols := []string{
		"id", "version", "created_at", "updated_at", "created_by", "updated_by", "number",
	}

	for _, expected := range expectedCols {
		assert.Contains(t, cols, expected)
	}
}

func TestStructToMap_FlattensEmbedded(t *testing.T) {
	cat := mockCatalog{
		BaseCatalog: entity.BaseCatalog{
			BaseEntity: entity.BaseEntity{
				ID:      id.New(),
				Version: 5,
			},
		},
		Code: "TEST",
		Name: "Test Name",
	}

	m := StructToMap(cat)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "TEST", m["code"])
	assert.Equal(t, "Test Name", m["name"])
}

func TestStructToMap_DocumentAuditFields(t *testing.T) {
	doc := mockDocument{
		BaseDocument: entity.NewBaseDocument(),
		Number:       "ORD-001",
	}
	doc.CreatedBy = "worker"

	m := StructToMap(&doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, "ORD-001", m["number"])
	assert.Equal(t, "worker", m["created_by"])
	assert.WithinDuration(t, time.Now().UTC(), m["created_at"].(time.Time), time.Minute)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap("string"))
}
