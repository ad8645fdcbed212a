package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/pkg"
	"Coop_Voting/internal/repository/mysql"
	"Coop_Voting/internal/repository/redis"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLen = 8

type UserService struct {
	repo   *mysql.UserRepository
	tokens *redis.TokenRepository
	issuer *pkg.TokenIssuer
}

type LoginResult struct {
	*pkg.Pair
	MustChangePassword bool       `json:"must_change_password"`
	Role               model.Role `json:"role"`
}

// NewUserService tokens 为 nil 时不做单点登录校验
func NewUserService(db *gorm.DB, tokens *redis.TokenRepository, issuer *pkg.TokenIssuer) *UserService {
	return &UserService{
		repo:   &mysql.UserRepository{DB: db},
		tokens: tokens,
		issuer: issuer,
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *UserService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	user, err := s.repo.FindByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrUnauthorized
	}
	pair, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	slog.Info("user login", "user_id", user.ID, "role", user.Role)
	return &LoginResult{Pair: pair, MustChangePassword: user.MustChangePassword, Role: user.Role}, nil
}

// issue 签发 token 并把 access 写入 redis，旧会话随之失效
func (s *UserService) issue(ctx context.Context, user *model.User) (*pkg.Pair, error) {
	pair, err := s.issuer.GeneratePair(user)
	if err != nil {
		return nil, err
	}
	if s.tokens != nil {
		if err := s.tokens.AddUserToken(ctx, user.ID, pair.AccessToken); err != nil {
			return nil, err
		}
	}
	return pair, nil
}

func (s *UserService) Logout(ctx context.Context, userID uint64) error {
	if s.tokens == nil {
		return nil
	}
	return s.tokens.DeleteUserToken(ctx, userID)
}

// Refresh 重新读取用户，角色变更后新 token 立即生效
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	userID, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkg.ErrRefreshInvalid
		}
		return nil, err
	}
	return s.issue(ctx, user)
}

// ChangePassword 修改成功后清除强制改密标记并下线当前会话
func (s *UserService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return notFound(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return validationf("old password is incorrect")
	}
	if len(newPassword) < MinPasswordLen {
		return validationf("new password must be at least %d characters", MinPasswordLen)
	}
	if newPassword == oldPassword {
		return validationf("new password must differ from the old one")
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, userID, hash, false); err != nil {
		return err
	}
	return s.Logout(ctx, userID)
}

// CreateSuperAdmin 命令行初始化用
func (s *UserService) CreateSuperAdmin(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, validationf("username and email are required")
	}
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLen {
		return nil, validationf("password must be at least %d characters", MinPasswordLen)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     model.RoleSuperAdmin,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if mysql.IsDuplicateKey(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return u, nil
}
