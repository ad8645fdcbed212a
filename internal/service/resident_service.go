package service

import (
	"context"
	"strings"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/pkg"
	"Coop_Voting/internal/repository/mysql"
	"Coop_Voting/internal/repository/redis"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const tempPasswordLen = 10

type ResidentService struct {
	repo   *mysql.UserRepository
	tokens *redis.TokenRepository
}

type MemberInput struct {
	Username   string
	Name       string
	Email      string
	UnitNumber string
}

type MemberPatch struct {
	Name       *string
	Email      *string
	UnitNumber *string
}

var validate = validator.New()

// NewResidentService tokens 为 nil 时删除住户不需要下线会话
func NewResidentService(db *gorm.DB, tokens *redis.TokenRepository) *ResidentService {
	return &ResidentService{repo: &mysql.UserRepository{DB: db}, tokens: tokens}
}

// checkEmail 只接受裸地址，长度与 users.email 列一致
func checkEmail(email string) error {
	if err := validate.Var(email, "required,email,max=64"); err != nil {
		return validationf("invalid email %q", email)
	}
	return nil
}

func (in *MemberInput) normalize() error {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.UnitNumber = strings.TrimSpace(in.UnitNumber)
	if in.Username == "" || len(in.Username) > 32 {
		return validationf("username must be 1 to 32 characters")
	}
	if err := checkEmail(in.Email); err != nil {
		return err
	}
	if len(in.UnitNumber) > 10 {
		return validationf("unit number is longer than 10 characters")
	}
	return nil
}

// createMember 生成临时密码，首次登录必须修改；明文只返回这一次
func createMember(ctx context.Context, repo *mysql.UserRepository, coopID uint64, role model.Role, in MemberInput) (*model.User, string, error) {
	if err := in.normalize(); err != nil {
		return nil, "", err
	}
	temp, err := pkg.TempPassword(tempPasswordLen)
	if err != nil {
		return nil, "", err
	}
	hash, err := HashPassword(temp)
	if err != nil {
		return nil, "", err
	}
	u := &model.User{
		Username:           in.Username,
		Name:               in.Name,
		Email:              in.Email,
		UnitNumber:         in.UnitNumber,
		Password:           hash,
		Role:               role,
		CooperativeID:      &coopID,
		MustChangePassword: true,
	}
	if err := repo.Create(ctx, u); err != nil {
		if mysql.IsDuplicateKey(err) {
			return nil, "", ErrConflict
		}
		return nil, "", err
	}
	return u, temp, nil
}

func (s *ResidentService) List(ctx context.Context, caller Caller) ([]model.User, error) {
	coopID, err := caller.presidentCoop()
	if err != nil {
		return nil, err
	}
	return s.repo.ListResidents(ctx, coopID)
}

func (s *ResidentService) Create(ctx context.Context, caller Caller, in MemberInput) (*model.User, string, error) {
	coopID, err := caller.presidentCoop()
	if err != nil {
		return nil, "", err
	}
	return createMember(ctx, s.repo, coopID, model.RoleResident, in)
}

// loadResident 主席只能管理本合作社的普通住户
func (s *ResidentService) loadResident(ctx context.Context, caller Caller, id uint64) (*model.User, error) {
	coopID, err := caller.presidentCoop()
	if err != nil {
		return nil, err
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	if !u.InCooperative(coopID) || u.Role != model.RoleResident {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *ResidentService) Update(ctx context.Context, caller Caller, id uint64, patch MemberPatch) (*model.User, error) {
	u, err := s.loadResident(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if patch.Name != nil {
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if err := checkEmail(email); err != nil {
			return nil, err
		}
		fields["email"] = email
	}
	if patch.UnitNumber != nil {
		unit := strings.TrimSpace(*patch.UnitNumber)
		if len(unit) > 10 {
			return nil, validationf("unit number is longer than 10 characters")
		}
		fields["unit_number"] = unit
	}
	if err := s.repo.UpdateProfile(ctx, u.ID, fields); err != nil {
		if mysql.IsDuplicateKey(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return s.repo.FindByID(ctx, u.ID)
}

// Delete 住户创建的投票和已投的票都保留，登录态立即失效
func (s *ResidentService) Delete(ctx context.Context, caller Caller, id uint64) error {
	u, err := s.loadResident(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, u.ID); err != nil {
		return notFound(err)
	}
	if s.tokens != nil {
		if err := s.tokens.DeleteUserToken(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}
