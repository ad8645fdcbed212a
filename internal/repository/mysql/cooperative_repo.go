package mysql

import (
	"context"

	"Coop_Voting/internal/model"

	"gorm.io/gorm"
)

type CooperativeRepository struct {
	DB *gorm.DB
}

func (r *CooperativeRepository) Create(ctx context.Context, c *model.Cooperative) error {
	return r.DB.WithContext(ctx).Create(c).Error
}

func (r *CooperativeRepository) FindByID(ctx context.Context, id uint64) (*model.Cooperative, error) {
	var coop model.Cooperative
	if err := r.DB.WithContext(ctx).First(&coop, id).Error; err != nil {
		return nil, err
	}
	return &coop, nil
}

func (r *CooperativeRepository) List(ctx context.Context) ([]model.Cooperative, error) {
	var list []model.Cooperative
	err := r.DB.WithContext(ctx).Order("name asc").Find(&list).Error
	return list, err
}

// SetResultsVisible 切换主席能否看到逐人投票明细
func (r *CooperativeRepository) SetResultsVisible(ctx context.Context, id uint64, visible bool) error {
	res := r.DB.WithContext(ctx).Model(&model.Cooperative{}).
		Where("id = ?", id).
		Update("results_visible_to_president", visible)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// sqlite/mysql 在值未变化时都可能返回 0，这里再确认一次是否存在
		var n int64
		if err := r.DB.WithContext(ctx).Model(&model.Cooperative{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}
