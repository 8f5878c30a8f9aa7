package store

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

type appUserKey struct{ appID, userID int64 }
type rolePermissionKey struct{ roleID, permissionID int64 }
type userRoleKey struct{ appID, userID, roleID int64 }

// InMemoryStore implements Store using in-memory storage. It enforces the
// same uniqueness and referential rules as the Postgres schema.
type InMemoryStore struct {
	mu sync.RWMutex

	seq         int64
	statuses    map[string]StatusType
	apps        map[int64]App
	users       map[int64]User
	addresses   map[int64]Address
	roles       map[int64]Role
	permissions map[int64]Permission
	appUsers    map[appUserKey]AppUser
	rolePerms   map[rolePermissionKey]time.Time
	userRoles   map[userRoleKey]time.Time
	tokens      map[int64]Token
	audit       []AuditEntry
}

// NewInMemoryStore creates an empty store with the status types seeded
func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{
		statuses:    make(map[string]StatusType),
		apps:        make(map[int64]App),
		users:       make(map[int64]User),
		addresses:   make(map[int64]Address),
		roles:       make(map[int64]Role),
		permissions: make(map[int64]Permission),
		appUsers:    make(map[appUserKey]AppUser),
		rolePerms:   make(map[rolePermissionKey]time.Time),
		userRoles:   make(map[userRoleKey]time.Time),
		tokens:      make(map[int64]Token),
	}
	for i, name := range []string{StatusPending, StatusActive, StatusInactive} {
		s.statuses[name] = StatusType{ID: int64(i + 1), Name: name}
	}
	return s
}

// WithTx runs fn against the store itself and restores the state from before
// the call when fn fails. Writes made concurrently by other goroutines while
// fn runs are not isolated and are rolled back with it.
func (s *InMemoryStore) WithTx(ctx context.Context, fn func(Store) error) error {
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type inMemorySnapshot struct {
	seq         int64
	apps        map[int64]App
	users       map[int64]User
	addresses   map[int64]Address
	roles       map[int64]Role
	permissions map[int64]Permission
	appUsers    map[appUserKey]AppUser
	rolePerms   map[rolePermissionKey]time.Time
	userRoles   map[userRoleKey]time.Time
	tokens      map[int64]Token
	audit       []AuditEntry
}

func (s *InMemoryStore) snapshot() inMemorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return inMemorySnapshot{
		seq:         s.seq,
		apps:        maps.Clone(s.apps),
		users:       maps.Clone(s.users),
		addresses:   maps.Clone(s.addresses),
		roles:       maps.Clone(s.roles),
		permissions: maps.Clone(s.permissions),
		appUsers:    maps.Clone(s.appUsers),
		rolePerms:   maps.Clone(s.rolePerms),
		userRoles:   maps.Clone(s.userRoles),
		tokens:      maps.Clone(s.tokens),
		audit:       append([]AuditEntry(nil), s.audit...),
	}
}

func (s *InMemoryStore) restore(snap inMemorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.apps = snap.apps
	s.users = snap.users
	s.addresses = snap.addresses
	s.roles = snap.roles
	s.permissions = snap.permissions
	s.appUsers = snap.appUsers
	s.rolePerms = snap.rolePerms
	s.userRoles = snap.userRoles
	s.tokens = snap.tokens
	s.audit = snap.audit
}

func (s *InMemoryStore) nextID() int64 {
	s.seq++
	return s.seq
}

func fkViolation(constraint string) error {
	return apperrors.Conflict("Referential integrity violation: " + constraint)
}

func duplicate(constraint string) error {
	return apperrors.Conflict("Duplicate entry: " + constraint)
}

// AuditEntries returns a copy of the recorded audit entries
func (s *InMemoryStore) AuditEntries() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuditEntry(nil), s.audit...)
}

// ---- apps

func (s *InMemoryStore) CreateApp(ctx context.Context, app App) (App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.apps {
		if a.Name == app.Name {
			return App{}, duplicate("apps_name_key")
		}
	}
	now := time.Now().UTC()
	app.ID = s.nextID()
	app.CreatedDate, app.UpdatedDate, app.DeletedDate = now, now, nil
	s.apps[app.ID] = app
	return app, nil
}

func (s *InMemoryStore) ReadApps(ctx context.Context) ([]App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var apps []App
	for _, a := range s.apps {
		if a.DeletedDate == nil {
			apps = append(apps, a)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps, nil
}

func (s *InMemoryStore) ReadApp(ctx context.Context, id int64) (App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.apps[id]
	if !ok || a.DeletedDate != nil {
		return App{}, ErrNotFound
	}
	return a, nil
}

func (s *InMemoryStore) ReadAppByName(ctx context.Context, name string) (App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.apps {
		if a.Name == name && a.DeletedDate == nil {
			return a, nil
		}
	}
	return App{}, ErrNotFound
}

func (s *InMemoryStore) UpdateApp(ctx context.Context, app App) (App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.apps[app.ID]
	if !ok || existing.DeletedDate != nil {
		return App{}, ErrNotFound
	}
	for _, a := range s.apps {
		if a.ID != app.ID && a.Name == app.Name {
			return App{}, duplicate("apps_name_key")
		}
	}
	existing.Name, existing.Description, existing.RedirectURL = app.Name, app.Description, app.RedirectURL
	existing.UpdatedDate = time.Now().UTC()
	s.apps[app.ID] = existing
	return existing, nil
}

func (s *InMemoryStore) SoftDeleteApp(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok || a.DeletedDate != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	a.DeletedDate = &now
	s.apps[id] = a
	return nil
}

func (s *InMemoryStore) HardDeleteApp(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[id]; !ok {
		return ErrNotFound
	}
	for _, r := range s.roles {
		if r.AppID == id {
			return fkViolation("roles_app_id_fkey")
		}
	}
	for _, p := range s.permissions {
		if p.AppID == id {
			return fkViolation("permissions_app_id_fkey")
		}
	}
	for k := range s.appUsers {
		if k.appID == id {
			return fkViolation("app_user_app_id_fkey")
		}
	}
	delete(s.apps, id)
	return nil
}

func (s *InMemoryStore) RestoreApp(ctx context.Context, id int64) (App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.apps[id]
	if !ok {
		return App{}, ErrNotFound
	}
	a.DeletedDate = nil
	a.UpdatedDate = time.Now().UTC()
	s.apps[id] = a
	return a, nil
}

// ---- users

// loadUser attaches status and addresses. Caller holds the lock.
func (s *InMemoryStore) loadUser(u User) User {
	var addresses []Address
	for _, a := range s.addresses {
		if a.UserID == u.ID {
			addresses = append(addresses, a)
		}
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i].ID < addresses[j].ID })
	u.Addresses = addresses
	if u.Status != nil {
		status := *u.Status
		u.Status = &status
	}
	return u
}

func (s *InMemoryStore) emailTaken(email string, exceptID int64) bool {
	for _, u := range s.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) status(u User) *StatusType {
	st := s.statuses[statusName(u)]
	return &st
}

func (s *InMemoryStore) upsertAddresses(userID int64, addresses []Address) error {
	for _, a := range addresses {
		a.UserID = userID
		if a.ID > 0 {
			existing, ok := s.addresses[a.ID]
			if !ok || existing.UserID != userID {
				return ErrNotFound
			}
		} else {
			a.ID = s.nextID()
		}
		s.addresses[a.ID] = a
	}
	return nil
}

func (s *InMemoryStore) CreateUser(ctx context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTaken(user.Email, 0) {
		return User{}, duplicate("users_email_key")
	}
	now := time.Now().UTC()
	user.ID = s.nextID()
	user.Status = s.status(user)
	user.CreatedDate, user.UpdatedDate, user.DeletedDate = now, now, nil
	addresses := user.Addresses
	user.Addresses = nil
	s.users[user.ID] = user
	if err := s.upsertAddresses(user.ID, addresses); err != nil {
		return User{}, err
	}
	return s.loadUser(user), nil
}

func (s *InMemoryStore) ReadUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []User
	for _, u := range s.users {
		if u.DeletedDate == nil {
			users = append(users, s.loadUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *InMemoryStore) ReadUser(ctx context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok || u.DeletedDate != nil {
		return User{}, ErrNotFound
	}
	return s.loadUser(u), nil
}

func (s *InMemoryStore) ReadUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) && u.DeletedDate == nil {
			return s.loadUser(u), nil
		}
	}
	return User{}, ErrNotFound
}

func (s *InMemoryStore) UpdateUser(ctx context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok || existing.DeletedDate != nil {
		return User{}, ErrNotFound
	}
	existing.FirstName, existing.LastName = user.FirstName, user.LastName
	existing.Status = s.status(user)
	existing.IsValidated = user.IsValidated
	existing.LastLogin = user.LastLogin
	existing.UpdatedDate = time.Now().UTC()
	if err := s.upsertAddresses(user.ID, user.Addresses); err != nil {
		return User{}, err
	}
	s.users[user.ID] = existing
	return s.loadUser(existing), nil
}

func (s *InMemoryStore) UpdateUserEmail(ctx context.Context, id int64, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.DeletedDate != nil {
		return User{}, ErrNotFound
	}
	if s.emailTaken(email, id) {
		return User{}, duplicate("users_email_key")
	}
	u.Email = email
	u.UpdatedDate = time.Now().UTC()
	s.users[id] = u
	return s.loadUser(u), nil
}

func (s *InMemoryStore) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.DeletedDate != nil {
		return ErrNotFound
	}
	u.Password = passwordHash
	u.UpdatedDate = time.Now().UTC()
	s.users[id] = u
	return nil
}

func (s *InMemoryStore) DeleteUserAddress(ctx context.Context, userID, addressID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.addresses[addressID]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(s.addresses, addressID)
	return nil
}

func (s *InMemoryStore) SoftDeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.DeletedDate != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	u.DeletedDate = &now
	s.users[id] = u
	return nil
}

func (s *InMemoryStore) HardDeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	for k := range s.appUsers {
		if k.userID == id {
			return fkViolation("app_user_user_id_fkey")
		}
	}
	for k, a := range s.addresses {
		if a.UserID == id {
			delete(s.addresses, k)
		}
	}
	for k, t := range s.tokens {
		if t.UserID == id {
			delete(s.tokens, k)
		}
	}
	delete(s.users, id)
	return nil
}

func (s *InMemoryStore) RestoreUser(ctx context.Context, id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.DeletedDate = nil
	u.UpdatedDate = time.Now().UTC()
	s.users[id] = u
	return s.loadUser(u), nil
}

// ---- roles

func (s *InMemoryStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[role.AppID]; !ok {
		return Role{}, fkViolation("roles_app_id_fkey")
	}
	for _, r := range s.roles {
		if r.AppID == role.AppID && r.Name == role.Name {
			return Role{}, duplicate("roles_app_name_key")
		}
	}
	now := time.Now().UTC()
	role.ID = s.nextID()
	role.CreatedDate, role.UpdatedDate, role.DeletedDate = now, now, nil
	s.roles[role.ID] = role
	return role, nil
}

func (s *InMemoryStore) ReadRoles(ctx context.Context, appID int64) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var roles []Role
	for _, r := range s.roles {
		if r.DeletedDate == nil && (appID <= 0 || r.AppID == appID) {
			roles = append(roles, r)
		}
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Name != roles[j].Name {
			return roles[i].Name < roles[j].Name
		}
		return roles[i].ID < roles[j].ID
	})
	return roles, nil
}

func (s *InMemoryStore) ReadRole(ctx context.Context, id int64) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok || r.DeletedDate != nil {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) ReadRoleByName(ctx context.Context, appID int64, name string) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.roles {
		if r.AppID == appID && r.Name == name && r.DeletedDate == nil {
			return r, nil
		}
	}
	return Role{}, ErrNotFound
}

func (s *InMemoryStore) UpdateRole(ctx context.Context, role Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.roles[role.ID]
	if !ok || existing.DeletedDate != nil {
		return Role{}, ErrNotFound
	}
	for _, r := range s.roles {
		if r.ID != role.ID && r.AppID == existing.AppID && r.Name == role.Name {
			return Role{}, duplicate("roles_app_name_key")
		}
	}
	existing.Name, existing.Description = role.Name, role.Description
	existing.UpdatedDate = time.Now().UTC()
	s.roles[role.ID] = existing
	return existing, nil
}

func (s *InMemoryStore) SoftDeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok || r.DeletedDate != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	r.DeletedDate = &now
	s.roles[id] = r
	return nil
}

func (s *InMemoryStore) HardDeleteRole(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[id]; !ok {
		return ErrNotFound
	}
	for k := range s.rolePerms {
		if k.roleID == id {
			return fkViolation("role_permission_role_id_fkey")
		}
	}
	for k := range s.userRoles {
		if k.roleID == id {
			return fkViolation("app_user_role_role_id_fkey")
		}
	}
	delete(s.roles, id)
	return nil
}

func (s *InMemoryStore) RestoreRole(ctx context.Context, id int64) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	r.DeletedDate = nil
	r.UpdatedDate = time.Now().UTC()
	s.roles[id] = r
	return r, nil
}

// ---- permissions

func (s *InMemoryStore) CreatePermission(ctx context.Context, permission Permission) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[permission.AppID]; !ok {
		return Permission{}, fkViolation("permissions_app_id_fkey")
	}
	for _, p := range s.permissions {
		if p.AppID == permission.AppID && p.Name == permission.Name {
			return Permission{}, duplicate("permissions_app_name_key")
		}
	}
	now := time.Now().UTC()
	permission.ID = s.nextID()
	permission.CreatedDate, permission.UpdatedDate, permission.DeletedDate = now, now, nil
	s.permissions[permission.ID] = permission
	return permission, nil
}

func (s *InMemoryStore) ReadPermissions(ctx context.Context, appID int64) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var permissions []Permission
	for _, p := range s.permissions {
		if p.DeletedDate == nil && (appID <= 0 || p.AppID == appID) {
			permissions = append(permissions, p)
		}
	}
	sort.Slice(permissions, func(i, j int) bool {
		if permissions[i].Name != permissions[j].Name {
			return permissions[i].Name < permissions[j].Name
		}
		return permissions[i].ID < permissions[j].ID
	})
	return permissions, nil
}

func (s *InMemoryStore) ReadPermission(ctx context.Context, id int64) (Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.permissions[id]
	if !ok || p.DeletedDate != nil {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) ReadPermissionByName(ctx context.Context, appID int64, name string) (Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.permissions {
		if p.AppID == appID && p.Name == name && p.DeletedDate == nil {
			return p, nil
		}
	}
	return Permission{}, ErrNotFound
}

func (s *InMemoryStore) UpdatePermission(ctx context.Context, permission Permission) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.permissions[permission.ID]
	if !ok || existing.DeletedDate != nil {
		return Permission{}, ErrNotFound
	}
	for _, p := range s.permissions {
		if p.ID != permission.ID && p.AppID == existing.AppID && p.Name == permission.Name {
			return Permission{}, duplicate("permissions_app_name_key")
		}
	}
	existing.Name, existing.Description = permission.Name, permission.Description
	existing.UpdatedDate = time.Now().UTC()
	s.permissions[permission.ID] = existing
	return existing, nil
}

func (s *InMemoryStore) SoftDeletePermission(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.permissions[id]
	if !ok || p.DeletedDate != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	p.DeletedDate = &now
	s.permissions[id] = p
	return nil
}

func (s *InMemoryStore) HardDeletePermission(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[id]; !ok {
		return ErrNotFound
	}
	for k := range s.rolePerms {
		if k.permissionID == id {
			return fkViolation("role_permission_permission_id_fkey")
		}
	}
	delete(s.permissions, id)
	return nil
}

func (s *InMemoryStore) RestorePermission(ctx context.Context, id int64) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	p.DeletedDate = nil
	p.UpdatedDate = time.Now().UTC()
	s.permissions[id] = p
	return p, nil
}

// ---- assignments

func (s *InMemoryStore) AssignAppUser(ctx context.Context, appID, userID int64) (AppUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[appID]; !ok {
		return AppUser{}, fkViolation("app_user_app_id_fkey")
	}
	if _, ok := s.users[userID]; !ok {
		return AppUser{}, fkViolation("app_user_user_id_fkey")
	}
	key := appUserKey{appID, userID}
	if _, ok := s.appUsers[key]; ok {
		return AppUser{}, duplicate("app_user_pkey")
	}
	au := AppUser{AppID: appID, UserID: userID, CreatedDate: time.Now().UTC()}
	s.appUsers[key] = au
	return au, nil
}

func (s *InMemoryStore) UnassignAppUser(ctx context.Context, appID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := appUserKey{appID, userID}
	if _, ok := s.appUsers[key]; !ok {
		return ErrNotFound
	}
	for k := range s.userRoles {
		if k.appID == appID && k.userID == userID {
			return fkViolation("app_user_role_app_id_user_id_fkey")
		}
	}
	delete(s.appUsers, key)
	return nil
}

func (s *InMemoryStore) ReadAppUser(ctx context.Context, appID, userID int64) (AppUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	au, ok := s.appUsers[appUserKey{appID, userID}]
	if !ok {
		return AppUser{}, ErrNotFound
	}
	return au, nil
}

func (s *InMemoryStore) ReadAppUsers(ctx context.Context, appID int64) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var users []User
	for k := range s.appUsers {
		if k.appID != appID {
			continue
		}
		if u, ok := s.users[k.userID]; ok && u.DeletedDate == nil {
			users = append(users, s.loadUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *InMemoryStore) ReadAppUserByEmail(ctx context.Context, appID int64, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k := range s.appUsers {
		if k.appID != appID {
			continue
		}
		u, ok := s.users[k.userID]
		if ok && u.DeletedDate == nil && strings.EqualFold(u.Email, email) {
			return s.loadUser(u), nil
		}
	}
	return User{}, ErrNotFound
}

func (s *InMemoryStore) AssignRolePermission(ctx context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[roleID]; !ok {
		return fkViolation("role_permission_role_id_fkey")
	}
	if _, ok := s.permissions[permissionID]; !ok {
		return fkViolation("role_permission_permission_id_fkey")
	}
	key := rolePermissionKey{roleID, permissionID}
	if _, ok := s.rolePerms[key]; ok {
		return duplicate("role_permission_pkey")
	}
	s.rolePerms[key] = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) UnassignRolePermission(ctx context.Context, roleID, permissionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rolePermissionKey{roleID, permissionID}
	if _, ok := s.rolePerms[key]; !ok {
		return ErrNotFound
	}
	delete(s.rolePerms, key)
	return nil
}

func (s *InMemoryStore) ReadRolePermissions(ctx context.Context, appID int64, roleIDs []int64) ([]RolePermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]bool, len(roleIDs))
	for _, id := range roleIDs {
		wanted[id] = true
	}

	var result []RolePermission
	for k, created := range s.rolePerms {
		if !wanted[k.roleID] {
			continue
		}
		p, ok := s.permissions[k.permissionID]
		if !ok || p.AppID != appID || p.DeletedDate != nil {
			continue
		}
		result = append(result, RolePermission{RoleID: k.roleID, Permission: p, CreatedDate: created})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Permission.Name != result[j].Permission.Name {
			return result[i].Permission.Name < result[j].Permission.Name
		}
		return result[i].RoleID < result[j].RoleID
	})
	return result, nil
}

func (s *InMemoryStore) AssignUserRole(ctx context.Context, appID, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appUsers[appUserKey{appID, userID}]; !ok {
		return fkViolation("app_user_role_app_id_user_id_fkey")
	}
	if _, ok := s.roles[roleID]; !ok {
		return fkViolation("app_user_role_role_id_fkey")
	}
	key := userRoleKey{appID, userID, roleID}
	if _, ok := s.userRoles[key]; ok {
		return duplicate("app_user_role_pkey")
	}
	s.userRoles[key] = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) UnassignUserRole(ctx context.Context, appID, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userRoleKey{appID, userID, roleID}
	if _, ok := s.userRoles[key]; !ok {
		return ErrNotFound
	}
	delete(s.userRoles, key)
	return nil
}

func (s *InMemoryStore) ReadUserRoles(ctx context.Context, appID int64, userIDs []int64) ([]UserRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}

	var result []UserRole
	for k, created := range s.userRoles {
		if k.appID != appID || !wanted[k.userID] {
			continue
		}
		r, ok := s.roles[k.roleID]
		if !ok || r.DeletedDate != nil {
			continue
		}
		result = append(result, UserRole{AppID: k.appID, UserID: k.userID, Role: r, CreatedDate: created})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Role.Name != result[j].Role.Name {
			return result[i].Role.Name < result[j].Role.Name
		}
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

// ---- tokens and audit

func (s *InMemoryStore) CreateToken(ctx context.Context, token Token) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[token.UserID]; !ok {
		return Token{}, fkViolation("token_user_id_fkey")
	}
	now := time.Now().UTC()
	token.ID = s.nextID()
	token.CreatedDate, token.UpdatedDate, token.DeletedDate = now, now, nil
	s.tokens[token.ID] = token
	return token, nil
}

func (s *InMemoryStore) findToken(match func(Token) bool) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.DeletedDate == nil && match(t) {
			return t, nil
		}
	}
	return Token{}, ErrNotFound
}

func (s *InMemoryStore) ReadTokenByAccessToken(ctx context.Context, accessToken string) (Token, error) {
	return s.findToken(func(t Token) bool { return t.AccessToken == accessToken })
}

func (s *InMemoryStore) ReadTokenByRefreshToken(ctx context.Context, refreshToken string) (Token, error) {
	return s.findToken(func(t Token) bool { return t.RefreshToken == refreshToken })
}

func (s *InMemoryStore) UpdateToken(ctx context.Context, token Token) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tokens[token.ID]
	if !ok || existing.DeletedDate != nil {
		return Token{}, ErrNotFound
	}
	existing.AccessToken, existing.RefreshToken = token.AccessToken, token.RefreshToken
	existing.UpdatedDate = time.Now().UTC()
	s.tokens[token.ID] = existing
	return existing, nil
}

func (s *InMemoryStore) RevokeToken(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[id]
	if !ok || t.DeletedDate != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	t.DeletedDate = &now
	t.UpdatedDate = now
	s.tokens[id] = t
	return nil
}

func (s *InMemoryStore) CreateAuditEntry(ctx context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.nextID()
	entry.CreatedAt = time.Now().UTC()
	s.audit = append(s.audit, entry)
	return nil
}
