package handlers

import (
	"testing"

	"fitchallenge/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "fb-uid-1")

	status, _ := s.do(t, "GET", "/api/profile", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.do(t, "GET", "/api/profile", token, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	var user models.User
	require.NoError(t, s.db.First(&user, "id = ?", "fb-uid-1").Error, "first sight of an identity records the account")
	assert.Equal(t, "fb-uid-1@example.com", user.Email)

	status, body := s.do(t, "PUT", "/api/profile", token, fiber.Map{
		"displayName": "Sam",
		"username":    "sam",
		"fitnessGoal": "Lose Weight",
	})
	require.Equal(t, fiber.StatusOK, status, body)

	status, _ = s.do(t, "PUT", "/api/profile", token, fiber.Map{
		"displayName": "Sam",
		"username":    "sam",
		"fitnessGoal": "Become Famous",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = s.do(t, "GET", "/api/profile", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	profile := body["profile"].(map[string]interface{})
	assert.Equal(t, "Sam", profile["displayName"])
	assert.Equal(t, "Lose Weight", profile["fitnessGoal"])

	id := s.createChallenge(t, token, fiveK)
	status, body = s.do(t, "POST", "/api/challenges/"+id+"/comments", token, fiber.Map{"text": "Day one done"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "Sam", body["comment"].(map[string]interface{})["authorName"])
}

func TestProfileForIdentitySharingAnEmail(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/api/auth/register", "", fiber.Map{
		"email": "sam@example.com", "password": "secret123",
	})
	require.Equal(t, fiber.StatusCreated, status, body)

	// A provider identity with the same email as the password account
	token := s.token(t, "sam")

	status, body = s.do(t, "PUT", "/api/profile", token, fiber.Map{"displayName": "Sam", "username": "sam"})
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = s.do(t, "GET", "/api/profile", token, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "sam", user["id"])
	assert.Equal(t, "sam@users.invalid", user["email"])
}

func TestProfileChallengesPast(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "runner")

	current := s.createChallenge(t, token, fiveK)
	ended := s.createChallenge(t, token, fiber.Map{
		"title": "Winter Plank", "difficulty": "medium",
		"startsAt": "2020-01-01", "endsAt": "2020-02-01",
	})
	for _, id := range []string{current, ended} {
		status, _ := s.do(t, "POST", "/api/challenges/"+id+"/join", token, nil)
		require.Equal(t, fiber.StatusOK, status)
	}

	status, body := s.do(t, "GET", "/api/profile/challenges", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, body = s.do(t, "GET", "/api/profile/challenges?past=true", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.EqualValues(t, 1, body["count"])
	assert.Equal(t, ended, body["challenges"].([]interface{})[0].(map[string]interface{})["id"])

	status, body = s.do(t, "GET", "/api/challenges", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["count"], "ended challenges are hidden from the directory")

	status, body = s.do(t, "GET", "/api/challenges?all=true", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
}

func TestAdminReconcile(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "owner")
	id := s.createChallenge(t, token, fiveK)
	require.NoError(t, s.db.Model(&models.Challenge{}).Where("id = ?", id).
		UpdateColumn("participants_count", 3).Error)

	status, _ := s.do(t, "POST", "/api/admin/reconcile", token, nil)
	assert.Equal(t, fiber.StatusForbidden, status, "user tokens are not admin tokens")

	status, body := s.do(t, "GET", "/api/admin/reconcile/stats", testAdminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body["stats"].(map[string]interface{})["lastRun"])

	status, body = s.do(t, "POST", "/api/admin/reconcile", testAdminToken, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, map[string]interface{}{"challenges": float64(1), "comments": float64(0)}, body["repaired"])

	status, body = s.do(t, "GET", "/api/challenges/"+id, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body["challenge"].(map[string]interface{})["participantsCount"])

	status, body = s.do(t, "GET", "/api/admin/reconcile/stats", testAdminToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, body["stats"].(map[string]interface{})["lastRun"])
}
