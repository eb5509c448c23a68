package models

import "time"

// User roles
const (
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
	RoleClient = "client"
)

type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	Email     string     `gorm:"type:varchar(255);unique;not null" json:"email"`
	Phone     string     `gorm:"type:varchar(20)" json:"phone"`
	Password  string     `gorm:"type:varchar(255);not null" json:"-"`
	Role      string     `gorm:"type:varchar(10);not null;default:'client'" json:"role"`
	Active    bool       `gorm:"not null;default:true" json:"active"`
	Deleted   bool       `gorm:"not null;default:false" json:"-"`
	DeletedAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool  { return u.Role == RoleAdmin }
func (u *User) IsOwner() bool  { return u.Role == RoleOwner }
func (u *User) IsClient() bool { return u.Role == RoleClient }
