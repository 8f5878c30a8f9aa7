package store

import "time"

// Status names stored in status_type.
const (
	StatusPending  = "PENDING"
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

type App struct {
	ID          int64
	Name        string
	Description string
	RedirectURL string
	CreatedDate time.Time
	UpdatedDate time.Time
	DeletedDate *time.Time
}

type StatusType struct {
	ID          int64
	Name        string
	Description string
}

type Address struct {
	ID         int64
	UserID     int64
	Type       string
	Street     string
	City       string
	State      string
	Country    string
	PostalCode string
}

type User struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       string
	Password    string
	Status      *StatusType
	IsValidated bool
	LastLogin   *time.Time
	Addresses   []Address
	CreatedDate time.Time
	UpdatedDate time.Time
	DeletedDate *time.Time
}

// IsActive reports whether the user may log in.
func (u User) IsActive() bool {
	return u.IsValidated && u.Status != nil && u.Status.Name == StatusActive
}

type Role struct {
	ID          int64
	AppID       int64
	Name        string
	Description string
	CreatedDate time.Time
	UpdatedDate time.Time
	DeletedDate *time.Time
}

type Permission struct {
	ID          int64
	AppID       int64
	Name        string
	Description string
	CreatedDate time.Time
	UpdatedDate time.Time
	DeletedDate *time.Time
}

// AppUser is the app_user join row.
type AppUser struct {
	AppID       int64
	UserID      int64
	CreatedDate time.Time
}

// RolePermission is a role_permission join row with the permission loaded.
type RolePermission struct {
	RoleID      int64
	Permission  Permission
	CreatedDate time.Time
}

// UserRole is an app_user_role join row with the role loaded.
type UserRole struct {
	AppID       int64
	UserID      int64
	Role        Role
	CreatedDate time.Time
}

type Token struct {
	ID           int64
	UserID       int64
	AppID        int64
	AccessToken  string
	RefreshToken string
	CreatedDate  time.Time
	UpdatedDate  time.Time
	DeletedDate  *time.Time
}

type AuditEntry struct {
	ID         int64
	EventType  string
	EntityType string
	EntityID   string
	AppID      int64
	ActorID    int64
	ActorEmail string
	Method     string
	URI        string
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}
