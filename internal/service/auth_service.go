package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/mentorship-api/internal/models"
	appErrors "github.com/noah-isme/mentorship-api/pkg/errors"
)

var (
	menteeIDPattern = regexp.MustCompile(`^(B(CS|DA|DB|LH)\d{4}-\d{3}|(IEP|CFAB)\d{4}-\d{3})$`)
	mentorIDPattern = regexp.MustCompile(`^ST(A|B|C|D|GS)\d{3}$`)
)

var programCourses = map[string]string{
	"CS":   "Diploma in Computer Science",
	"DA":   "Diploma in Accounting",
	"DB":   "Diploma in Business Studies",
	"LH":   "Diploma in Landscape Horticulture",
	"IEP":  "Intensive English Programme",
	"CFAB": "Certificate in Finance, Accountancy and Business",
}

var staffDepartments = map[string]string{
	"A":  "Accounting Department",
	"B":  "Business Studies Department",
	"C":  "Quantitative Science Department",
	"D":  "Landscape and Horticulture Department",
	"GS": "General Studies",
}

type authUserRepository interface {
	FindByLogin(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, bool, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type menteeProfileStore interface {
	FindByID(ctx context.Context, id string) (*models.Mentee, error)
	Create(ctx context.Context, mentee *models.Mentee) error
	LinkUser(ctx context.Context, id, userID string) error
}

type mentorProfileStore interface {
	FindByID(ctx context.Context, id string) (*models.Mentor, error)
	Create(ctx context.Context, mentor *models.Mentor) error
	LinkUser(ctx context.Context, id, userID string) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	SignupMaxMentees  int
}

// AuthService provides signup, login and token validation.
type AuthService struct {
	repo      authUserRepository
	mentees   menteeProfileStore
	mentors   mentorProfileStore
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, mentees menteeProfileStore, mentors mentorProfileStore, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 24 * time.Hour
	}
	if config.SignupMaxMentees <= 0 {
		config.SignupMaxMentees = 5
	}
	return &AuthService{repo: repo, mentees: mentees, mentors: mentors, validator: validate, logger: logger, config: config}
}

// CourseFromMenteeID derives the programme name from a mentee id prefix.
func CourseFromMenteeID(id string) string {
	switch {
	case strings.HasPrefix(id, "IEP"):
		return programCourses["IEP"]
	case strings.HasPrefix(id, "CFAB"):
		return programCourses["CFAB"]
	case strings.HasPrefix(id, "B") && len(id) >= 3:
		if course, ok := programCourses[id[1:3]]; ok {
			return course
		}
	}
	return "Unknown Course"
}

// DepartmentFromStaffID derives the mentor department from a staff id prefix.
func DepartmentFromStaffID(id string) string {
	switch {
	case strings.HasPrefix(id, "STGS"):
		return staffDepartments["GS"]
	case strings.HasPrefix(id, "ST") && len(id) >= 3:
		return staffDepartments[id[2:3]]
	}
	return ""
}

// Signup creates a mentee or mentor account together with its profile.
// An existing profile with the same id and no account is linked instead of duplicated.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	id := strings.ToUpper(strings.TrimSpace(req.IdentificationID))
	role := models.RoleMentee
	switch req.Role {
	case "mentee":
		if !menteeIDPattern.MatchString(id) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student id format is incorrect, expected e.g. BCS2311-017 or IEP2307-001")
		}
		if req.Gender == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "gender is required for mentees")
		}
	case "mentor":
		role = models.RoleMentor
		if !mentorIDPattern.MatchString(id) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "staff id format is incorrect, expected e.g. STA001 or STGS008")
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	usernameTaken, emailTaken, err := s.repo.ExistsByUsernameOrEmail(ctx, id, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing accounts")
	}
	if usernameTaken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "this id is already registered")
	}
	if emailTaken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "this email address is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     id,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if role == models.RoleMentee {
		err = s.attachMentee(ctx, user, models.Gender(req.Gender))
	} else {
		err = s.attachMentor(ctx, user)
	}
	if err != nil {
		if delErr := s.repo.Delete(ctx, user.ID); delErr != nil {
			s.logger.Warn("failed to remove user after profile error", zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("account created", zap.String("username", id), zap.String("role", string(role)))
	return user.Info(), nil
}

func (s *AuthService) attachMentee(ctx context.Context, user *models.User, gender models.Gender) error {
	existing, err := s.mentees.FindByID(ctx, user.Username)
	switch {
	case err == nil:
		if existing.UserID != nil {
			return appErrors.Clone(appErrors.ErrConflict, "this mentee profile already has an account")
		}
		if err := s.mentees.LinkUser(ctx, existing.ID, user.ID); err != nil {
			return linkError(err)
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentee profile")
	}

	now := time.Now()
	userID := user.ID
	mentee := &models.Mentee{
		ID:       user.Username,
		UserID:   &userID,
		Name:     user.FullName,
		Course:   CourseFromMenteeID(user.Username),
		Semester: 1,
		Year:     now.Year(),
		Email:    user.Email,
		Gender:   gender,
		Status:   models.MenteeStatusActive,
	}
	if err := s.mentees.Create(ctx, mentee); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mentee profile")
	}
	return nil
}

func (s *AuthService) attachMentor(ctx context.Context, user *models.User) error {
	existing, err := s.mentors.FindByID(ctx, user.Username)
	switch {
	case err == nil:
		if existing.UserID != nil {
			return appErrors.Clone(appErrors.ErrConflict, "this mentor profile already has an account")
		}
		if err := s.mentors.LinkUser(ctx, existing.ID, user.ID); err != nil {
			return linkError(err)
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor profile")
	}

	userID := user.ID
	mentor := &models.Mentor{
		ID:         user.Username,
		UserID:     &userID,
		Name:       user.FullName,
		Email:      user.Email,
		Department: DepartmentFromStaffID(user.Username),
		MaxMentees: s.config.SignupMaxMentees,
	}
	if err := s.mentors.Create(ctx, mentor); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mentor profile")
	}
	return nil
}

func linkError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrConflict, "profile was linked by another account")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link profile")
}

// Login authenticates a user by id or email and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByLogin(ctx, strings.TrimSpace(req.Identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid id or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid id or password")
	}

	accessToken, _, err := s.generateAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    time.Now().UTC(),
		User:        *user.Info(),
	}, nil
}

// Me returns the account behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user.Info(), nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
