package model

import "time"

// Cooperative 租户边界：一栋楼/一个社区
type Cooperative struct {
	ID                        uint64    `gorm:"primaryKey" json:"id"`
	Name                      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Address                   string    `gorm:"size:200" json:"address"`
	ResultsVisibleToPresident bool      `gorm:"not null;default:false" json:"results_visible_to_president"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}
