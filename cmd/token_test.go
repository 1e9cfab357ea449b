package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastecollect/waste-dispatch-api/api"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("CONFIG_FILE", "")

	out, err := runCLI(t, "token", "64b7f0c2a1b2c3d4e5f60718", "--role", "collector", "--org", "64b7f0c2a1b2c3d4e5f60719")
	require.NoError(t, err)

	claims := &api.ActorClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", claims.Subject)
	assert.Equal(t, "collector", claims.Role)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60719", claims.OrganizationID)
}

func TestTokenCommand_UnknownRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("CONFIG_FILE", "")

	_, err := runCLI(t, "token", "u1", "--role", "wizard", "--org", "")

	assert.ErrorContains(t, err, "unknown role")
}

func TestTokenCommand_NoSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CONFIG_FILE", "")

	_, err := runCLI(t, "token", "u1", "--role", "user")

	assert.ErrorContains(t, err, "jwt_secret")
}
