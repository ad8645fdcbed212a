package service

import (
	"context"
	"strings"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/repository/mysql"

	"gorm.io/gorm"
)

type CooperativeService struct {
	repo  *mysql.CooperativeRepository
	users *mysql.UserRepository
}

func NewCooperativeService(db *gorm.DB) *CooperativeService {
	return &CooperativeService{
		repo:  &mysql.CooperativeRepository{DB: db},
		users: &mysql.UserRepository{DB: db},
	}
}

func requireSuperAdmin(caller Caller) error {
	if !caller.IsSuperAdmin() {
		return ErrForbidden
	}
	return nil
}

func (s *CooperativeService) Create(ctx context.Context, caller Caller, name, address string) (*model.Cooperative, error) {
	if err := requireSuperAdmin(caller); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, validationf("name must be 1 to 100 characters")
	}
	c := &model.Cooperative{Name: name, Address: strings.TrimSpace(address)}
	if err := s.repo.Create(ctx, c); err != nil {
		if mysql.IsDuplicateKey(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return c, nil
}

func (s *CooperativeService) List(ctx context.Context, caller Caller) ([]model.Cooperative, error) {
	if err := requireSuperAdmin(caller); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// SetResultsVisible 开关主席查看逐人明细的权限
func (s *CooperativeService) SetResultsVisible(ctx context.Context, caller Caller, id uint64, visible bool) (*model.Cooperative, error) {
	if err := requireSuperAdmin(caller); err != nil {
		return nil, err
	}
	if err := s.repo.SetResultsVisible(ctx, id, visible); err != nil {
		return nil, notFound(err)
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// CreatePresident 为合作社创建主席账号，返回一次性临时密码
func (s *CooperativeService) CreatePresident(ctx context.Context, caller Caller, coopID uint64, in MemberInput) (*model.User, string, error) {
	if err := requireSuperAdmin(caller); err != nil {
		return nil, "", err
	}
	if _, err := s.repo.FindByID(ctx, coopID); err != nil {
		return nil, "", notFound(err)
	}
	return createMember(ctx, s.users, coopID, model.RolePresident, in)
}
