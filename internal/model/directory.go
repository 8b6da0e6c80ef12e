package model

import "gorm.io/gorm"

// UnitOfMeasure represents a unit of measure directory entry
type UnitOfMeasure struct {
	ID          int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Code        string  `gorm:"index" json:"code"`
	Name        string  `json:"name"`
	ShortName   string  `json:"short_name"`
	Description *string `json:"description"`
	IsActive    bool    `gorm:"index" json:"is_active"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
	SearchText  string  `gorm:"column:search_text" json:"-"`
}

// TableName overrides the table name used by UnitOfMeasure
func (UnitOfMeasure) TableName() string {
	return "units_of_measure"
}

// NomenclatureCategory groups nomenclature items
type NomenclatureCategory struct {
	ID          int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Code        string  `gorm:"index" json:"code"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsActive    bool    `gorm:"index" json:"is_active"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
	SearchText  string  `gorm:"column:search_text" json:"-"`
}

func (NomenclatureCategory) TableName() string {
	return "nomenclature_categories"
}

// Nomenclature is a stock-keeping item
type Nomenclature struct {
	ID            int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Code          string  `gorm:"index" json:"code"`
	CategoryID    int64   `gorm:"index" json:"category_id"`
	Name          string  `json:"name"`
	BaseUnitID    int64   `json:"base_unit_id"`
	DescriptionRU *string `gorm:"column:description_ru" json:"description_ru"`
	DescriptionUA *string `gorm:"column:description_ua" json:"description_ua"`
	IsActive      bool    `gorm:"index" json:"is_active"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     *string `json:"updated_at"`
	SearchText    string  `gorm:"column:search_text" json:"-"`
}

func (Nomenclature) TableName() string {
	return "nomenclature"
}

// Warehouse is a storage location documents are attached to
type Warehouse struct {
	ID          int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Code        string  `gorm:"index" json:"code"`
	Name        string  `json:"name"`
	Address     *string `json:"address"`
	Description *string `json:"description"`
	IsActive    bool    `gorm:"index" json:"is_active"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   *string `json:"updated_at"`
	SearchText  string  `gorm:"column:search_text" json:"-"`
}

func (Warehouse) TableName() string {
	return "warehouses"
}

// Barcode maps a scanned value to a nomenclature item in a concrete unit.
// The denormalized names come from the server join and may be absent.
type Barcode struct {
	ID               int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Barcode          string  `gorm:"index" json:"barcode"`
	NomenclatureID   int64   `gorm:"index" json:"nomenclature_id"`
	UnitID           int64   `json:"unit_id"`
	IsActive         bool    `gorm:"index" json:"is_active"`
	NomenclatureName *string `json:"nomenclature_name"`
	UnitName         *string `json:"unit_name"`
	UnitShortName    *string `json:"unit_short_name"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        *string `json:"updated_at"`
	SearchText       string  `gorm:"column:search_text" json:"-"`
}

func (Barcode) TableName() string {
	return "barcodes"
}

// BeforeSave folds the searchable fields into search_text
func (u *UnitOfMeasure) BeforeSave(*gorm.DB) error {
	u.SearchText = searchText(u.Name, u.Code, u.ShortName)
	return nil
}

func (c *NomenclatureCategory) BeforeSave(*gorm.DB) error {
	c.SearchText = searchText(c.Name, c.Code)
	return nil
}

func (n *Nomenclature) BeforeSave(*gorm.DB) error {
	n.SearchText = searchText(n.Name, n.Code, deref(n.DescriptionRU), deref(n.DescriptionUA))
	return nil
}

func (w *Warehouse) BeforeSave(*gorm.DB) error {
	w.SearchText = searchText(w.Name, w.Code, deref(w.Address))
	return nil
}

func (b *Barcode) BeforeSave(*gorm.DB) error {
	b.SearchText = searchText(b.Barcode, deref(b.NomenclatureName))
	return nil
}
