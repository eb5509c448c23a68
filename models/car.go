package models

import "time"

// Vehicle types
const (
	CarTypeAuto      = "auto"
	CarTypeMoto      = "moto"
	CarTypeCamioneta = "camioneta"
)

// Car is a vehicle registered by a client. Reservations reference cars,
// never plates, so a plate change does not orphan history.
type Car struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Plate     string    `gorm:"type:varchar(20);unique;not null" json:"plate"`
	Model     string    `gorm:"type:varchar(80)" json:"model"`
	Type      string    `gorm:"type:varchar(20);not null;default:'auto'" json:"type"`
	Color     string    `gorm:"type:varchar(30)" json:"color"`
	CreatedAt time.Time `json:"created_at"`
}
