package console

import (
	"context"
	"errors"
	"strings"

	"github.com/opsdesk/opsdesk/internal/client"
	"github.com/opsdesk/opsdesk/internal/models"
)

// UserAPI is the slice of the API client the user screen uses.
type UserAPI interface {
	ListUsers(ctx context.Context) (*client.UserListResponse, error)
	UpdateUserRole(ctx context.Context, id, role string) (*client.User, error)
	UpdateUserStatus(ctx context.Context, id string, active bool) (*client.User, error)
}

// PendingRoleChange is a role change awaiting confirmation.
type PendingRoleChange struct {
	UserID   string
	UserName string
	NewRole  string
}

// UserDirectory drives the user management screen. CurrentUser identifies
// the signed-in operator; changes to their own row are refused before any
// request is made.
type UserDirectory struct {
	api    UserAPI
	notify Notifier

	CurrentUser client.User

	Users []*client.User

	// AccessDenied is set when the list endpoint rejects the caller; the
	// screen shows an access notice instead of the table.
	AccessDenied bool

	Pending *PendingRoleChange

	SearchQuery string

	Loading  bool
	Updating bool
}

// NewUserDirectory creates a user screen controller.
func NewUserDirectory(api UserAPI, current client.User, notify Notifier) *UserDirectory {
	if notify == nil {
		notify = nopNotifier{}
	}
	return &UserDirectory{api: api, CurrentUser: current, notify: notify}
}

// Load fetches the user list. A forbidden response raises an access notice.
func (d *UserDirectory) Load(ctx context.Context) error {
	if d.Loading {
		return nil
	}
	d.Loading = true
	defer func() { d.Loading = false }()

	resp, err := d.api.ListUsers(ctx)
	if err != nil {
		if errors.Is(err, client.ErrForbidden) {
			d.AccessDenied = true
			d.Users = nil
			d.notify.Error("Access denied")
			return nil
		}
		d.notify.Error("Failed to load users")
		return err
	}
	d.AccessDenied = false
	d.Users = resp.Users

	return nil
}

// Filtered returns the loaded users matching the search query, matched
// case-insensitively against name, email and role.
func (d *UserDirectory) Filtered() []*client.User {
	q := strings.ToLower(strings.TrimSpace(d.SearchQuery))
	if q == "" {
		return d.Users
	}

	var out []*client.User
	for _, u := range d.Users {
		if strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(strings.ToLower(u.Role), q) {
			out = append(out, u)
		}
	}
	return out
}

// BeginRoleChange stages a role change for confirmation. Changes to the
// operator's own role, and changes the operator lacks permission for, are
// refused here before any request is made.
func (d *UserDirectory) BeginRoleChange(userID, newRole string) {
	if userID == d.CurrentUser.ID {
		d.notify.Error("You cannot change your own role")
		return
	}
	if !models.Role(d.CurrentUser.Role).CanManageRoles() {
		d.notify.Error("Only admins can change roles")
		return
	}
	if !models.Role(newRole).Valid() {
		d.notify.Error("Unknown role " + newRole)
		return
	}

	name := userID
	for _, u := range d.Users {
		if u.ID == userID {
			name = u.Name
			break
		}
	}
	d.Pending = &PendingRoleChange{UserID: userID, UserName: name, NewRole: newRole}
}

// ConfirmRoleChange applies the staged role change and refetches the list.
func (d *UserDirectory) ConfirmRoleChange(ctx context.Context) error {
	if d.Pending == nil || d.Updating {
		return nil
	}
	d.Updating = true
	defer func() { d.Updating = false }()

	pending := d.Pending
	d.Pending = nil

	if _, err := d.api.UpdateUserRole(ctx, pending.UserID, pending.NewRole); err != nil {
		d.notify.Error(err.Error())
		return err
	}

	d.notify.Success("Changed " + pending.UserName + " to " + pending.NewRole)
	return d.refetch(ctx)
}

// CancelRoleChange discards the staged role change.
func (d *UserDirectory) CancelRoleChange() {
	d.Pending = nil
}

// ToggleStatus flips a user's active flag and refetches the list. The
// operator's own row is refused before any request.
func (d *UserDirectory) ToggleStatus(ctx context.Context, userID string) error {
	if d.Updating {
		return nil
	}
	if userID == d.CurrentUser.ID {
		d.notify.Error("You cannot change your own status")
		return nil
	}
	if !models.Role(d.CurrentUser.Role).CanUpdateUsers() {
		d.notify.Error("Insufficient permissions")
		return nil
	}

	var target *client.User
	for _, u := range d.Users {
		if u.ID == userID {
			target = u
			break
		}
	}
	if target == nil {
		d.notify.Error("User not found")
		return nil
	}

	d.Updating = true
	defer func() { d.Updating = false }()

	updated, err := d.api.UpdateUserStatus(ctx, userID, !target.IsActive)
	if err != nil {
		d.notify.Error(err.Error())
		return err
	}

	if updated.IsActive {
		d.notify.Success("Activated " + updated.Name)
	} else {
		d.notify.Success("Deactivated " + updated.Name)
	}
	return d.refetch(ctx)
}

func (d *UserDirectory) refetch(ctx context.Context) error {
	resp, err := d.api.ListUsers(ctx)
	if err != nil {
		if errors.Is(err, client.ErrForbidden) {
			d.AccessDenied = true
			d.Users = nil
			return nil
		}
		d.notify.Error("Failed to reload users")
		return err
	}
	d.Users = resp.Users
	return nil
}
