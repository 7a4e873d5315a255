package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskforge-dev/taskforge/internal/apperr"
	"github.com/taskforge-dev/taskforge/internal/models"
	"github.com/taskforge-dev/taskforge/internal/testutil"
)

func TestUserCreate(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewUserService(db)
	admin := testutil.CreateUser(t, db, "Ada Admin", models.GlobalRoleAdmin)
	plain := testutil.CreateUser(t, db, "Plain User", models.GlobalRoleUser)

	user, err := svc.Create(principalFor(admin), CreateUserInput{
		Name:     "Newcomer",
		Email:    "  Newcomer@Example.COM ",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, "newcomer@example.com", user.Email)
	assert.Equal(t, models.GlobalRoleUser, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret-pass")))

	// Duplicate email, regardless of casing.
	_, err = svc.Create(principalFor(admin), CreateUserInput{
		Name:     "Clone",
		Email:    "NEWCOMER@example.com",
		Password: "other-pass",
	})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.Create(principalFor(plain), CreateUserInput{
		Name:     "Sneaky",
		Email:    "sneaky@example.com",
		Password: "pass",
	})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUserUpdateMatrix(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewUserService(db)
	admin := testutil.CreateUser(t, db, "Ada Admin", models.GlobalRoleAdmin)
	alice := testutil.CreateUser(t, db, "Alice", models.GlobalRoleUser)
	bob := testutil.CreateUser(t, db, "Bob", models.GlobalRoleUser)

	adminRole := models.GlobalRoleAdmin
	name := "Alice Cooper"

	// Admins change roles and nothing else.
	updated, err := svc.Update(principalFor(admin), alice.ID, UpdateUserInput{Role: &adminRole})
	require.NoError(t, err)
	assert.Equal(t, models.GlobalRoleAdmin, updated.Role)

	_, err = svc.Update(principalFor(admin), bob.ID, UpdateUserInput{Name: &name})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, "Admins cannot update user profile information.")

	// Users edit their own profile but never their role.
	updated, err = svc.Update(principalFor(bob), bob.ID, UpdateUserInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", updated.Name)

	_, err = svc.Update(principalFor(bob), bob.ID, UpdateUserInput{Role: &adminRole})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, "Unauthorized to update role.")

	// And never anyone else's profile.
	_, err = svc.Update(principalFor(bob), alice.ID, UpdateUserInput{Name: &name})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	assert.EqualError(t, err, "Unauthorized to update this user.")

	_, err = svc.Update(principalFor(admin), 9999, UpdateUserInput{Role: &adminRole})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestUserUpdateEmailConflict(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewUserService(db)
	alice := testutil.CreateUser(t, db, "Alice", models.GlobalRoleUser)
	bob := testutil.CreateUser(t, db, "Bob", models.GlobalRoleUser)

	taken := alice.Email
	_, err := svc.Update(principalFor(bob), bob.ID, UpdateUserInput{Email: &taken})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	// Re-submitting your own email is fine.
	own := bob.Email
	_, err = svc.Update(principalFor(bob), bob.ID, UpdateUserInput{Email: &own})
	require.NoError(t, err)
}

func TestUserUpdatePasswordIsRehashed(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewUserService(db)
	alice := testutil.CreateUser(t, db, "Alice", models.GlobalRoleUser)

	password := "brand-new-pass"
	updated, err := svc.Update(principalFor(alice), alice.ID, UpdateUserInput{Password: &password})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(password)))
}

func TestUserLifecycleAdminOnly(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewUserService(db)
	admin := testutil.CreateUser(t, db, "Ada Admin", models.GlobalRoleAdmin)
	alice := testutil.CreateUser(t, db, "Alice", models.GlobalRoleUser)
	bob := testutil.CreateUser(t, db, "Bob", models.GlobalRoleUser)

	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(svc.Delete(principalFor(bob), alice.ID)))

	principal := principalFor(admin)
	require.NoError(t, svc.Delete(principal, alice.ID))

	users, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, users, 2)

	// Lookup by id still finds the trashed account.
	found, err := svc.Get(alice.ID)
	require.NoError(t, err)
	assert.True(t, found.DeletedAt.Valid)

	trashed, err := svc.ListTrashed(principal)
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.Equal(t, alice.ID, trashed[0].ID)

	_, err = svc.ListTrashed(principalFor(bob))
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	restored, err := svc.Restore(principal, alice.ID)
	require.NoError(t, err)
	assert.False(t, restored.DeletedAt.Valid)

	// Force delete still demands the trashed state first.
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(svc.ForceDelete(principal, alice.ID)))

	require.NoError(t, svc.Delete(principal, alice.ID))
	require.NoError(t, svc.ForceDelete(principal, alice.ID))

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.User{}).Where("id = ?", alice.ID).Count(&count).Error)
	assert.Zero(t, count)
}
