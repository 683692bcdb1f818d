package types

// Genre mirrors the reference genre table into the relational store so the
// frontend can query colors and positions without touching the graph.
type Genre struct {
	Name  string   `gorm:"column:name;primaryKey" json:"name"`
	X     *float64 `gorm:"column:x" json:"x,omitempty"`
	Y     *float64 `gorm:"column:y" json:"y,omitempty"`
	Color string   `gorm:"column:color" json:"color"`
	Count int      `gorm:"column:count;not null;default:0" json:"count"`
}

func (Genre) TableName() string { return "genres" }
