package mysql

import (
	"context"

	"Coop_Voting/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

// FindByLogin 用户名或邮箱均可登录
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("username = ? OR email = ?", login, login).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	if err := r.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListResidents 合作社内除超级管理员外的全部用户（即 census）
func (r *UserRepository) ListResidents(ctx context.Context, coopID uint64) ([]model.User, error) {
	var list []model.User
	err := r.DB.WithContext(ctx).
		Where("cooperative_id = ? AND role <> ?", coopID, model.RoleSuperAdmin).
		Order("unit_number asc, id asc").
		Find(&list).Error
	return list, err
}

func (r *UserRepository) CountResidents(ctx context.Context, coopID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.User{}).
		Where("cooperative_id = ? AND role <> ?", coopID, model.RoleSuperAdmin).
		Count(&n).Error
	return n, err
}

// UpdateProfile 只更新传入的列
func (r *UserRepository) UpdateProfile(ctx context.Context, id uint64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uint64, hash string, mustChange bool) error {
	return r.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]any{"password": hash, "must_change_password": mustChange}).Error
}

// Delete 删除用户：保留其创建的投票（creator 置空）和已投的票
func (r *UserRepository) Delete(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Poll{}).
			Where("creator_id = ?", id).
			UpdateColumn("creator_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
