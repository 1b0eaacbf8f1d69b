package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_SetMFA_DisableDropsPendingCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.registerVerified(t, "a@x.com", "secret1")
	env.enableMFA(t, user.ID)

	_, err := env.svc.Login(ctx, LoginRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	code := env.mailer.lastCode(t, "a@x.com")

	updated, err := env.svc.SetMFA(ctx, user.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.MFAEnabled)
	assert.Nil(t, updated.LoginCode)
	assert.Nil(t, updated.LoginCodeExpires)

	// Without MFA the code field is ignored and the password suffices.
	result, err := env.svc.Login(ctx, LoginRequest{Email: "a@x.com", Password: "secret1", MFACode: code})
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, result.State)

	env.enableMFA(t, user.ID)
	_, err = env.svc.Login(ctx, LoginRequest{Email: "a@x.com", Password: "secret1", MFACode: code})
	assert.ErrorIs(t, err, ErrInvalidCode, "old code must not survive a disable/enable cycle")
}

func TestService_SetMFA_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.SetMFA(context.Background(), "missing", true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_GetProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.registerVerified(t, "a@x.com", "secret1")

	profile, err := env.svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", profile.Email)

	_, err = env.svc.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		google    bool
		request   ChangePasswordRequest
		wantField string
		wantErr   error
	}{
		{
			name:    "correct current password",
			request: ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2", ConfirmPassword: "secret2"},
		},
		{
			name:    "wrong current password",
			request: ChangePasswordRequest{CurrentPassword: "nope-nope", NewPassword: "secret2", ConfirmPassword: "secret2"},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:      "new password too short",
			request:   ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "abc", ConfirmPassword: "abc"},
			wantField: "new_password",
		},
		{
			name:      "confirmation mismatch",
			request:   ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2", ConfirmPassword: "secret3"},
			wantField: "confirm_password",
		},
		{
			name:    "google account sets first password",
			google:  true,
			request: ChangePasswordRequest{NewPassword: "secret2", ConfirmPassword: "secret2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			var userID string
			if tt.google {
				result, err := env.svc.ResolveIdentity(ctx, Identity{ProviderID: "G1", Email: "a@x.com"})
				require.NoError(t, err)
				userID = result.User.ID
			} else {
				userID = env.registerVerified(t, "a@x.com", "secret1").ID
			}

			err := env.svc.ChangePassword(ctx, userID, tt.request)
			switch {
			case tt.wantField != "":
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.wantField, ve.Field)
				return
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			result, err := env.svc.Login(ctx, LoginRequest{Email: "a@x.com", Password: "secret2"})
			require.NoError(t, err)
			assert.Equal(t, StateAuthenticated, result.State)

			if tt.google {
				stored, err := env.repo.GetUserByID(ctx, userID)
				require.NoError(t, err)
				assert.Equal(t, AccountLinked, stored.Kind())
			}
		})
	}
}
