package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
	"github.com/kontax/green-ledger/internal/repository"
	"github.com/kontax/green-ledger/internal/testutil"
	"github.com/kontax/green-ledger/pkg/database"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correcthorsebattery")
	require.NoError(t, err)
	assert.NotEqual(t, "correcthorsebattery", hash)

	assert.True(t, VerifyPassword(hash, "correcthorsebattery"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not-a-hash", "correcthorsebattery"))
}

func TestTokenIssueAndVerify(t *testing.T) {
	tm := NewTokenManager("secret-for-tests", time.Hour)

	entityID := "ent-1"
	user := &models.User{ID: "user-1", Rol: models.RolContador, EntityID: &entityID}

	token, err := tm.Issue(user)
	require.NoError(t, err)

	claims, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RolContador, claims.Rol)
	require.NotNil(t, claims.EntityID)
	assert.Equal(t, "ent-1", *claims.EntityID)
}

func TestTokenVerify_Rejections(t *testing.T) {
	tm := NewTokenManager("secret-for-tests", time.Hour)
	user := &models.User{ID: "user-1", Rol: models.RolAdmin}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("a-different-secret", time.Hour)
		token, err := other.Issue(user)
		require.NoError(t, err)

		_, err = tm.Verify(token)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		shortLived := NewTokenManager("secret-for-tests", -time.Minute)
		token, err := shortLived.Issue(user)
		require.NoError(t, err)

		_, err = tm.Verify(token)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.Verify("not.a.token")
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})
}

func TestCipherRoundTrip(t *testing.T) {
	cipher, err := NewCipher("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("clave-sii-secreta")
	require.NoError(t, err)
	assert.NotContains(t, encrypted, "clave-sii-secreta")

	decrypted, err := cipher.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "clave-sii-secreta", decrypted)

	// Nonces are random, two encryptions of the same value differ.
	again, err := cipher.Encrypt("clave-sii-secreta")
	require.NoError(t, err)
	assert.NotEqual(t, encrypted, again)
}

func TestCipher_Errors(t *testing.T) {
	_, err := NewCipher("too-short")
	assert.Error(t, err)

	cipher, err := NewCipher("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	_, err = cipher.Decrypt("%%%not-base64%%%")
	assert.Error(t, err)

	_, err = cipher.Decrypt("c2hvcnQ=")
	assert.Error(t, err)

	other, err := NewCipher("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	encrypted, err := other.Encrypt("secreto")
	require.NoError(t, err)
	_, err = cipher.Decrypt(encrypted)
	assert.Error(t, err, "wrong key must not decrypt")
}

func newTestAuthService(t *testing.T) (*Service, *database.DB) {
	db := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db.DB, zap.NewNop())
	return NewService(users, NewTokenManager("secret-for-tests", time.Hour), zap.NewNop()), db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, db := newTestAuthService(t)

	entityID := testutil.CreateTestEntity(t, db).ID
	user, err := svc.Register(RegisterInput{
		Email:    "Contadora@Empresa.CL",
		Password: "clave-segura",
		Rol:      models.RolContador,
		EntityID: &entityID,
	})
	require.NoError(t, err)
	assert.Equal(t, "contadora@empresa.cl", user.Email)
	assert.NotEmpty(t, user.ID)

	token, logged, err := svc.Login("contadora@empresa.cl", "clave-segura")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, logged.ID)

	_, _, err = svc.Login("contadora@empresa.cl", "clave-mala")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, _, err = svc.Login("nadie@empresa.cl", "clave-segura")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestRegister_Validation(t *testing.T) {
	svc, db := newTestAuthService(t)

	_, err := svc.Register(RegisterInput{
		Email:    "usuario@empresa.cl",
		Password: "clave-segura",
		Rol:      models.RolUsuario,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation, "non-admin without entity")

	entityID := testutil.CreateTestEntity(t, db).ID
	_, err = svc.Register(RegisterInput{
		Email:    "dup@empresa.cl",
		Password: "clave-segura",
		Rol:      models.RolContador,
		EntityID: &entityID,
	})
	require.NoError(t, err)

	_, err = svc.Register(RegisterInput{
		Email:    "DUP@empresa.cl",
		Password: "otra-clave",
		Rol:      models.RolContador,
		EntityID: &entityID,
	})
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
}

func TestCanAccessEntity(t *testing.T) {
	own := "ent-1"

	admin := &Claims{Rol: models.RolAdmin}
	assert.True(t, CanAccessEntity(admin, "ent-1"))
	assert.True(t, CanAccessEntity(admin, "ent-2"))

	contador := &Claims{Rol: models.RolContador, EntityID: &own}
	assert.True(t, CanAccessEntity(contador, "ent-1"))
	assert.False(t, CanAccessEntity(contador, "ent-2"))

	sinEntidad := &Claims{Rol: models.RolUsuario}
	assert.False(t, CanAccessEntity(sinEntidad, "ent-1"))
}
