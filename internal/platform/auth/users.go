package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownRole        = errors.New("unknown role")
)

// DemoPassword is the password of the development users.
const DemoPassword = "123456"

// DefaultDoctorStation is the consultório given to doctors without one.
const DefaultDoctorStation = "Consultório 1"

// User is a staff account able to log in.
type User struct {
	Username     string `yaml:"username" json:"username"`
	Name         string `yaml:"name" json:"name"`
	Role         string `yaml:"role" json:"role"`
	PasswordHash string `yaml:"password_hash" json:"-"`
	Station      string `yaml:"consultorio" json:"consultorio,omitempty"`
}

type usersFile struct {
	Users []User `yaml:"users"`
}

// UserStore authenticates staff against bcrypt hashes.
type UserStore struct {
	users map[string]User
}

// NewUserStore indexes users by username. Doctors without a consultório get
// DefaultDoctorStation.
func NewUserStore(users []User) (*UserStore, error) {
	s := &UserStore{users: make(map[string]User, len(users))}
	for _, u := range users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return nil, fmt.Errorf("user without username")
		}
		if !ValidRole(u.Role) {
			return nil, fmt.Errorf("user %s: %w %q", u.Username, ErrUnknownRole, u.Role)
		}
		if u.PasswordHash == "" {
			return nil, fmt.Errorf("user %s: password_hash is required", u.Username)
		}
		if u.Name == "" {
			u.Name = u.Username
		}
		if u.Role == RoleDoctor && u.Station == "" {
			u.Station = DefaultDoctorStation
		}
		if _, dup := s.users[u.Username]; dup {
			return nil, fmt.Errorf("duplicate user %s", u.Username)
		}
		s.users[u.Username] = u
	}
	return s, nil
}

// LoadUsersFile reads a YAML file of the form:
//
//	users:
//	  - username: maria
//	    name: Maria Souza
//	    role: enfermeiro
//	    password_hash: $2a$10$...
func LoadUsersFile(path string) (*UserStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}
	return NewUserStore(f.Users)
}

// DemoUsers returns one account per role, username equal to the role and
// password DemoPassword.
func DemoUsers() ([]User, error) {
	hash, err := HashPassword(DemoPassword)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(AllRoles))
	for _, role := range AllRoles {
		users = append(users, User{Username: role, Name: role, Role: role, PasswordHash: hash})
	}
	return users, nil
}

// HashPassword returns the bcrypt hash stored in the users file.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Authenticate checks username, password and the role picked at login.
func (s *UserStore) Authenticate(username, password, role string) (*User, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w %q", ErrUnknownRole, role)
	}
	u, ok := s.users[strings.TrimSpace(username)]
	if !ok || u.Role != role {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func (s *UserStore) Len() int {
	return len(s.users)
}
