package service

import "Coop_Voting/internal/model"

// Caller 当前请求的身份，由鉴权中间件从 token 中解析
type Caller struct {
	UserID        uint64
	Role          model.Role
	CooperativeID *uint64
}

func (c Caller) IsPresident() bool  { return c.Role == model.RolePresident }
func (c Caller) IsSuperAdmin() bool { return c.Role == model.RoleSuperAdmin }

// InCooperative 超级管理员没有合作社，永远返回 false
func (c Caller) InCooperative(coopID uint64) bool {
	return c.CooperativeID != nil && *c.CooperativeID == coopID
}

// presidentCoop 主席所在的合作社，非主席返回 ErrForbidden
func (c Caller) presidentCoop() (uint64, error) {
	if !c.IsPresident() || c.CooperativeID == nil {
		return 0, ErrForbidden
	}
	return *c.CooperativeID, nil
}
