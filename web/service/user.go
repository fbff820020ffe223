package service

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/viewer360/viewer360/caching"
	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/util/crypto"

	"github.com/go-playground/validator/v10"
)

const identityTTL = 30 * time.Second

var (
	identityCache = caching.NewCache(identityTTL)

	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

type registerForm struct {
	Username string `validate:"min=3,max=50"`
	Email    string `validate:"required,email"`
	Password string `validate:"min=8"`
}

var registerMessages = map[string]string{
	"Username": "Username must be between 3 and 50 characters.",
	"Email":    "Please enter a valid email address.",
	"Password": "Password must be at least 8 characters long.",
}

type UserService struct {
	settingService SettingService
}

// Register creates a regular account. Validation messages are collected.
func (s *UserService) Register(username, email, password string) (*model.User, error) {
	open, err := s.settingService.GetRegistrationOpen()
	if err != nil {
		return nil, common.Internal("read registration setting", err)
	}
	if !open {
		return nil, common.Forbidden("Registration is currently closed.")
	}

	form := registerForm{
		Username: strings.TrimSpace(username),
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := getValidator().Struct(&form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, common.Internal("validate registration", err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		seen := map[string]bool{}
		for _, fe := range fieldErrs {
			if seen[fe.Field()] {
				continue
			}
			seen[fe.Field()] = true
			msgs = append(msgs, registerMessages[fe.Field()])
		}
		return nil, common.InvalidList(msgs)
	}

	db := database.GetDB()
	var existing int64
	err = db.Model(model.User{}).
		Where("username = ? OR email = ?", form.Username, form.Email).
		Count(&existing).Error
	if err != nil {
		return nil, common.Internal("check existing user", err)
	}
	if existing > 0 {
		return nil, common.Conflict("Username or email already exists.")
	}

	hash, err := crypto.HashPasswordAsBcrypt(form.Password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return nil, common.Invalid("Password is too long.")
	} else if err != nil {
		return nil, common.Internal("hash password", err)
	}
	user := &model.User{
		Username:     form.Username,
		Email:        form.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		if database.IsDuplicate(err) {
			return nil, common.Conflict("Username or email already exists.")
		}
		return nil, common.Internal("create user", err)
	}
	return user, nil
}

// CheckUser verifies login credentials.
func (s *UserService) CheckUser(email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, common.Invalid("Please enter email and password.")
	}

	user := &model.User{}
	err := database.GetDB().Model(model.User{}).
		Where("email = ?", email).
		First(user).
		Error
	if database.IsNotFound(err) {
		return nil, common.Unauthenticated("Invalid email or password.")
	} else if err != nil {
		return nil, common.Internal("check user", err)
	}

	if !crypto.CheckPasswordHash(user.PasswordHash, password) {
		return nil, common.Unauthenticated("Invalid email or password.")
	}
	if user.IsBanned {
		return nil, common.Forbidden("Your account has been suspended. Please contact support.")
	}
	if crypto.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(user, password)
	}
	return user, nil
}

// upgradeHash re-hashes a password stored with an older cost. Failures only
// leave the old hash in place.
func (s *UserService) upgradeHash(user *model.User, password string) {
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		logger.Warning("rehash password failed:", err)
		return
	}
	err = database.GetDB().Model(model.User{}).
		Where("id = ?", user.Id).
		Update("password_hash", hash).Error
	if err != nil {
		logger.Warning("store rehashed password failed:", err)
		return
	}
	user.PasswordHash = hash
}

func (s *UserService) GetUserById(id int) (*model.User, error) {
	user := &model.User{}
	err := database.GetDB().Model(model.User{}).Where("id = ?", id).First(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetIdentity resolves the current role and ban state of a user, cached for a
// short time. Unknown and banned users are anonymous.
func (s *UserService) GetIdentity(userId int) (Identity, error) {
	if userId <= 0 {
		return Anonymous(), nil
	}
	key := strconv.Itoa(userId)
	if v, ok := identityCache.Get(key); ok {
		return v.(Identity), nil
	}

	user, err := s.GetUserById(userId)
	if database.IsNotFound(err) {
		identityCache.Set(key, Anonymous())
		return Anonymous(), nil
	} else if err != nil {
		return Anonymous(), err
	}
	id := IdentityOf(user)
	identityCache.Set(key, id)
	return id, nil
}

func (s *UserService) InvalidateIdentity(userId int) {
	identityCache.Delete(strconv.Itoa(userId))
}

// FlushIdentities drops every cached identity, for example when the server is
// rebuilt on a new database.
func FlushIdentities() {
	identityCache.Flush()
}

// SetRole changes the role of a user.
func (s *UserService) SetRole(userId int, role model.Role) error {
	if role != model.RoleUser && role != model.RoleAdmin {
		return common.Invalid("Invalid role.")
	}
	res := database.GetDB().Model(model.User{}).Where("id = ?", userId).Update("role", role)
	if res.Error != nil {
		return common.Internal("update role", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.NotFound("User not found.")
	}
	s.InvalidateIdentity(userId)
	return nil
}
