// Package audit records who changed what, without ever slowing down or
// failing the request that caused the change.
package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tendant/simple-ums/pkg/access"
)

type EventType string

const (
	CreateUser         EventType = "CREATE_USER"
	UpdateUser         EventType = "UPDATE_USER"
	UpdateUserEmail    EventType = "UPDATE_USER_EMAIL"
	UpdateUserPassword EventType = "UPDATE_USER_PASSWORD"
	SoftDeleteUser     EventType = "SOFT_DELETE_USER"
	HardDeleteUser     EventType = "HARD_DELETE_USER"
	RestoreUser        EventType = "RESTORE_USER"
	AssignRole         EventType = "ASSIGN_ROLE"
	UnassignRole       EventType = "UNASSIGN_ROLE"
	AssignApp          EventType = "ASSIGN_APP"
	UnassignApp        EventType = "UNASSIGN_APP"
	UserLogin          EventType = "USER_LOGIN"
	UserLoginError     EventType = "USER_LOGIN_ERROR"
	UserLogout         EventType = "USER_LOGOUT"
	UserLogoutError    EventType = "USER_LOGOUT_ERROR"
	UserValidateInit   EventType = "USER_VALIDATE_INIT"
	UserValidateExit   EventType = "USER_VALIDATE_EXIT"
	UserValidateError  EventType = "USER_VALIDATE_ERROR"
	UserResetInit      EventType = "USER_RESET_INIT"
	UserResetExit      EventType = "USER_RESET_EXIT"
	UserReset          EventType = "USER_RESET"
	UserResetError     EventType = "USER_RESET_ERROR"
	TokenRefresh       EventType = "TOKEN_REFRESH"
	TokenRefreshError  EventType = "TOKEN_REFRESH_ERROR"

	CreateRole         EventType = "CREATE_ROLE"
	UpdateRole         EventType = "UPDATE_ROLE"
	SoftDeleteRole     EventType = "SOFT_DELETE_ROLE"
	HardDeleteRole     EventType = "HARD_DELETE_ROLE"
	RestoreRole        EventType = "RESTORE_ROLE"
	AssignPermission   EventType = "ASSIGN_PERMISSION"
	UnassignPermission EventType = "UNASSIGN_PERMISSION"

	CreatePermission     EventType = "CREATE_PERMISSION"
	UpdatePermission     EventType = "UPDATE_PERMISSION"
	SoftDeletePermission EventType = "SOFT_DELETE_PERMISSION"
	HardDeletePermission EventType = "HARD_DELETE_PERMISSION"
	RestorePermission    EventType = "RESTORE_PERMISSION"

	CreateApp     EventType = "CREATE_APP"
	UpdateApp     EventType = "UPDATE_APP"
	SoftDeleteApp EventType = "SOFT_DELETE_APP"
	HardDeleteApp EventType = "HARD_DELETE_APP"
	RestoreApp    EventType = "RESTORE_APP"
)

// Entity types stored alongside the event
const (
	EntityApp        = "APP"
	EntityUser       = "USER"
	EntityRole       = "ROLE"
	EntityPermission = "PERMISSION"
)

// Event is one audit record
type Event struct {
	Type       EventType
	EntityType string
	EntityID   string
	AppID      int64
	ActorID    int64
	ActorEmail string
	Method     string
	URI        string
	RequestID  string
	Metadata   map[string]interface{}
	Timestamp  time.Time
}

// NewEvent captures the request details and the caller, if any, at the time
// of the change. It must be called on the request goroutine.
func NewEvent(r *http.Request, eventType EventType, entityType string, entityID int64, appID int64) Event {
	event := Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   strconv.FormatInt(entityID, 10),
		AppID:      appID,
		Method:     r.Method,
		URI:        r.RequestURI,
		RequestID:  middleware.GetReqID(r.Context()),
		Timestamp:  time.Now().UTC(),
	}
	if event.RequestID == "" {
		event.RequestID = uuid.NewString()
	}
	if caller := access.CallerFrom(r.Context()); caller != nil {
		event.ActorID = caller.UserID
		event.ActorEmail = caller.Email
	}
	return event
}

// WithMetadata adds metadata to the audit event
func (e Event) WithMetadata(key string, value interface{}) Event {
	metadata := make(map[string]interface{}, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		metadata[k] = v
	}
	metadata[key] = value
	e.Metadata = metadata
	return e
}

// WithActor sets the actor for flows that run before a caller exists, such as
// login and reset.
func (e Event) WithActor(userID int64, email string) Event {
	e.ActorID = userID
	e.ActorEmail = email
	return e
}
