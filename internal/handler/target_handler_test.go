package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hifz-api/internal/config"
)

func TestTargetLifecycleOverHTTP(t *testing.T) {
	ta := newTestApp(t)
	envelope := compileSchema(t, "target_envelope.schema.json")

	resp := ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets", map[string]interface{}{
		"scope":      "individual",
		"student_id": 3,
		"title":      "Finish Juz 30 by Ramadan",
		"milestones": []string{"An-Naba to Abasa", "At-Takwir to At-Tariq"},
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.raw))
	requireSchema(t, envelope, resp)
	target := resp.entity("target")
	id := idOf(t, target)
	milestones := target["milestones"].([]interface{})
	require.Len(t, milestones, 2)
	firstMilestone := idOf(t, milestones[0].(map[string]interface{}))

	resp = ta.do(t, &teacherCaller, http.MethodPatch, "/api/v1/targets/"+itoa(id)+"/progress", map[string]interface{}{"progress": 150})
	require.Equal(t, http.StatusOK, resp.status, string(resp.raw))
	require.EqualValues(t, 100, resp.entity("target")["progress"])
	require.Equal(t, "active", resp.entity("target")["status"])

	resp = ta.do(t, &teacherCaller, http.MethodPatch, "/api/v1/targets/"+itoa(id)+"/milestones/"+itoa(firstMilestone), map[string]interface{}{"completed": true})
	require.Equal(t, http.StatusOK, resp.status, string(resp.raw))
	require.Equal(t, true, resp.entity("milestone")["completed"])

	resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets/"+itoa(id)+"/milestones", map[string]interface{}{"title": "Al-Ala to An-Nas"})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.raw))

	resp = ta.do(t, &studentCaller, http.MethodGet, "/api/v1/targets/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, resp.status, string(resp.raw))
	requireSchema(t, envelope, resp)
	require.Len(t, resp.entity("target")["milestones"], 3)

	resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets/"+itoa(id)+"/cancel", map[string]interface{}{"reason": " "})
	require.Equal(t, http.StatusBadRequest, resp.status)
	require.Equal(t, "validation_error", resp.code())

	resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets/"+itoa(id)+"/cancel", map[string]interface{}{"reason": "Student moved halaqah"})
	require.Equal(t, http.StatusOK, resp.status, string(resp.raw))
	requireSchema(t, envelope, resp)
	require.Equal(t, "cancelled", resp.entity("target")["status"])
	require.Equal(t, "Student moved halaqah", resp.entity("target")["cancel_reason"])

	resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets/"+itoa(id)+"/complete", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
	require.Equal(t, "invalid_transition", resp.code())

	resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets/"+itoa(id)+"/milestones", map[string]interface{}{"title": "too late"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.status)
}

func TestTargetScopePermissions(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets", map[string]interface{}{
		"scope": "school",
		"title": "Whole school khatam",
	})
	require.Equal(t, http.StatusForbidden, resp.status, string(resp.raw))

	resp = ta.do(t, &ownerCaller, http.MethodPost, "/api/v1/targets", map[string]interface{}{
		"scope": "school",
		"title": "Whole school khatam",
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.raw))
	id := idOf(t, resp.entity("target"))

	resp = ta.do(t, &parentCaller, http.MethodGet, "/api/v1/targets/"+itoa(id), nil)
	require.Equal(t, http.StatusOK, resp.status)

	resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets/"+itoa(id)+"/complete", nil)
	require.Equal(t, http.StatusForbidden, resp.status)

	resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets", map[string]interface{}{
		"scope": "class",
		"title": "Class tajwid target",
	})
	require.Equal(t, http.StatusBadRequest, resp.status)

	resp = ta.do(t, &studentCaller, http.MethodGet, "/api/v1/targets?scope=school", nil)
	require.Equal(t, http.StatusOK, resp.status)
	require.Len(t, resp.body["targets"], 1)
}

func TestTargetMutationsShareTransitionLimit(t *testing.T) {
	ta := newTestAppWith(t, func(cfg *config.Config) { cfg.RateLimitMax = 2 })

	resp := ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets", map[string]interface{}{
		"scope":      "individual",
		"student_id": 3,
		"title":      "Juz 29",
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.raw))
	id := idOf(t, resp.entity("target"))

	for _, title := range []string{"Al-Mulk", "Al-Qalam"} {
		resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets/"+itoa(id)+"/milestones", map[string]interface{}{"title": title})
		require.Equal(t, http.StatusCreated, resp.status, string(resp.raw))
	}

	resp = ta.do(t, &teacherCaller, http.MethodPost, "/api/v1/targets/"+itoa(id)+"/milestones", map[string]interface{}{"title": "Al-Haqqah"})
	require.Equal(t, http.StatusTooManyRequests, resp.status)
	require.Equal(t, "rate_limited", resp.code())

	resp = ta.do(t, &teacherCaller, http.MethodPatch, "/api/v1/targets/"+itoa(id)+"/progress", map[string]interface{}{"progress": 40})
	require.Equal(t, http.StatusTooManyRequests, resp.status)
}
