package model

import "time"

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RolePresident  Role = "president"
	RoleResident   Role = "resident"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RolePresident, RoleResident:
		return true
	}
	return false
}

type User struct {
	ID                 uint64    `gorm:"primaryKey" json:"id"`
	Username           string    `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Password           string    `gorm:"size:255;not null" json:"-"`
	Name               string    `gorm:"size:100" json:"name"`
	Email              string    `gorm:"uniqueIndex;size:64;not null" json:"email"`
	Role               Role      `gorm:"size:16;not null;default:resident;index" json:"role"`
	UnitNumber         string    `gorm:"size:10" json:"unit_number"`
	CooperativeID      *uint64   `gorm:"index" json:"cooperative_id"` // 超级管理员为空
	MustChangePassword bool      `gorm:"not null" json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DisplayName 没有填写姓名时回退到用户名
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// InCooperative 判断用户是否属于指定合作社
func (u *User) InCooperative(coopID uint64) bool {
	return u.CooperativeID != nil && *u.CooperativeID == coopID
}
