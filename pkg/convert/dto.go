package convert

import (
	"time"

	"github.com/tendant/simple-ums/pkg/store"
)

type AppDTO struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	RedirectURL string     `json:"redirect_url,omitempty"`
	CreatedDate time.Time  `json:"created_date"`
	UpdatedDate time.Time  `json:"updated_date"`
	DeletedDate *time.Time `json:"deleted_date,omitempty"`
}

type StatusDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type AddressDTO struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type PermissionDTO struct {
	ID          int64      `json:"id"`
	AppID       int64      `json:"app_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedDate time.Time  `json:"created_date"`
	UpdatedDate time.Time  `json:"updated_date"`
	DeletedDate *time.Time `json:"deleted_date,omitempty"`
}

type RoleDTO struct {
	ID          int64           `json:"id"`
	AppID       int64           `json:"app_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	CreatedDate time.Time       `json:"created_date"`
	UpdatedDate time.Time       `json:"updated_date"`
	DeletedDate *time.Time      `json:"deleted_date,omitempty"`
	Permissions []PermissionDTO `json:"permissions"`
}

// UserDTO never carries the password hash.
type UserDTO struct {
	ID          int64        `json:"id"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	Email       string       `json:"email"`
	Status      *StatusDTO   `json:"status,omitempty"`
	IsValidated bool         `json:"is_validated"`
	LastLogin   *time.Time   `json:"last_login,omitempty"`
	Addresses   []AddressDTO `json:"addresses,omitempty"`
	Roles       []RoleDTO    `json:"roles"`
	CreatedDate time.Time    `json:"created_date"`
	UpdatedDate time.Time    `json:"updated_date"`
	DeletedDate *time.Time   `json:"deleted_date,omitempty"`
}

func appDTO(a store.App) AppDTO {
	return AppDTO{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		RedirectURL: a.RedirectURL,
		CreatedDate: a.CreatedDate,
		UpdatedDate: a.UpdatedDate,
		DeletedDate: a.DeletedDate,
	}
}

func statusDTO(s *store.StatusType) *StatusDTO {
	if s == nil {
		return nil
	}
	return &StatusDTO{ID: s.ID, Name: s.Name, Description: s.Description}
}

func addressDTOs(addresses []store.Address) []AddressDTO {
	if len(addresses) == 0 {
		return nil
	}
	result := make([]AddressDTO, 0, len(addresses))
	for _, a := range addresses {
		result = append(result, AddressDTO{
			ID:         a.ID,
			Type:       a.Type,
			Street:     a.Street,
			City:       a.City,
			State:      a.State,
			Country:    a.Country,
			PostalCode: a.PostalCode,
		})
	}
	return result
}

func permissionDTO(p store.Permission) PermissionDTO {
	return PermissionDTO{
		ID:          p.ID,
		AppID:       p.AppID,
		Name:        p.Name,
		Description: p.Description,
		CreatedDate: p.CreatedDate,
		UpdatedDate: p.UpdatedDate,
		DeletedDate: p.DeletedDate,
	}
}

func roleDTO(r store.Role, permissions []PermissionDTO) RoleDTO {
	if permissions == nil {
		permissions = []PermissionDTO{}
	}
	return RoleDTO{
		ID:          r.ID,
		AppID:       r.AppID,
		Name:        r.Name,
		Description: r.Description,
		CreatedDate: r.CreatedDate,
		UpdatedDate: r.UpdatedDate,
		DeletedDate: r.DeletedDate,
		Permissions: permissions,
	}
}

func userDTO(u store.User, roles []RoleDTO) UserDTO {
	if roles == nil {
		roles = []RoleDTO{}
	}
	return UserDTO{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Status:      statusDTO(u.Status),
		IsValidated: u.IsValidated,
		LastLogin:   u.LastLogin,
		Addresses:   addressDTOs(u.Addresses),
		Roles:       roles,
		CreatedDate: u.CreatedDate,
		UpdatedDate: u.UpdatedDate,
		DeletedDate: u.DeletedDate,
	}
}
