package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const randomPasswordLength = 12

// Service handles user provisioning and role/permission/feature assignment.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateUserInput carries the fields accepted at user creation.
type CreateUserInput struct {
	Username    string
	Email       string
	PhoneNumber string
	FirstName   string
	LastName    string
	Password    string
}

// CreateUser provisions a user. A blank username falls back to email, then
// phone number. A blank password is replaced by a random one; the plaintext
// is never stored.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		switch {
		case strings.TrimSpace(in.Email) != "":
			username = strings.TrimSpace(in.Email)
		case strings.TrimSpace(in.PhoneNumber) != "":
			username = strings.TrimSpace(in.PhoneNumber)
		default:
			return nil, fmt.Errorf("identity: email or phone number must be provided")
		}
	}

	password := in.Password
	if password == "" {
		generated, err := randomPassword(randomPasswordLength)
		if err != nil {
			return nil, err
		}
		password = generated
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, &User{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hash),
		Enabled:      true,
	})
}

// GetUser fetches a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// SubjectByPhone resolves a phone number to the owning user's username. Used
// as the OTP directory.
func (s *Service) SubjectByPhone(ctx context.Context, phone string) (string, error) {
	user, err := s.repo.FindUserByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// AssignRoleToUser links an existing role to an existing user.
func (s *Service) AssignRoleToUser(ctx context.Context, userID, roleID int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	return s.repo.AssignRoleToUser(ctx, userID, roleID)
}

// AssignPermissionsToUser grants permissions directly to a user. An unknown
// permission id fails the whole call.
func (s *Service) AssignPermissionsToUser(ctx context.Context, userID int64, permissionIDs []int64) error {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	for _, id := range permissionIDs {
		if _, err := s.repo.GetPermission(ctx, id); err != nil {
			return err
		}
	}
	for _, id := range permissionIDs {
		if err := s.repo.AssignPermissionToUser(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

// AddPermissionToRole grants a permission directly to a role.
func (s *Service) AddPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	return s.repo.AddPermissionToRole(ctx, roleID, permissionID)
}

// AddFeatureToRole attaches a feature to a role.
func (s *Service) AddFeatureToRole(ctx context.Context, roleID, featureID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.repo.GetFeature(ctx, featureID); err != nil {
		return err
	}
	return s.repo.AddFeatureToRole(ctx, roleID, featureID)
}

// AddUserToGroup adds a user to a group. Both must exist; re-adding a member
// is a no-op.
func (s *Service) AddUserToGroup(ctx context.Context, groupID, userID int64) error {
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.AddUserToGroup(ctx, groupID, userID)
}

// RemoveUserFromGroup removes a user from a group.
func (s *Service) RemoveUserFromGroup(ctx context.Context, groupID, userID int64) error {
	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.repo.RemoveUserFromGroup(ctx, groupID, userID)
}

// GroupsForUser lists the groups the user belongs to.
func (s *Service) GroupsForUser(ctx context.Context, userID int64) ([]Group, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GroupsForUser(ctx, userID)
}

// AssignRoleAtLocation assigns a role to a user scoped to a location node.
func (s *Service) AssignRoleAtLocation(ctx context.Context, userID, locationID, roleID int64) (*UserRoleLocation, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return s.repo.CreateUserRoleLocation(ctx, userID, roleID, locationID)
}

// randomPassword returns a URL-safe random string of the requested length.
func randomPassword(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity: random password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:length], nil
}
