package model

import "time"

// Setting is one persisted key of the terminal's key-value store
type Setting struct {
	Name      string `gorm:"primaryKey;size:128"`
	Value     string
	UpdatedAt time.Time
}

func (Setting) TableName() string {
	return "settings"
}

// CacheModels lists every model stored in the local cache database
func CacheModels() []interface{} {
	return []interface{}{
		&Setting{},
		&UnitOfMeasure{},
		&NomenclatureCategory{},
		&Nomenclature{},
		&Warehouse{},
		&Barcode{},
		&Document{},
		&DocumentItem{},
	}
}
