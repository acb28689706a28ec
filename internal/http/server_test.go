package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krizad/baht-saving-project/internal/core"
	"github.com/krizad/baht-saving-project/internal/ledger"
	applog "github.com/krizad/baht-saving-project/internal/log"
	"github.com/krizad/baht-saving-project/internal/session"
	"github.com/krizad/baht-saving-project/internal/sheets/memory"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingMetrics struct {
	mu        sync.Mutex
	actions   map[string]int
	deposits  []int
	undos     int
	throttled int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{actions: make(map[string]int)}
}

func (m *recordingMetrics) RecordAction(action, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions[action+"/"+outcome]++
}

func (m *recordingMetrics) RecordDeposit(amount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deposits = append(m.deposits, amount)
}

func (m *recordingMetrics) RecordUndo() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undos++
}

func (m *recordingMetrics) RecordLoginThrottled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.throttled++
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server  *Server
	metrics *recordingMetrics
	store   *memory.Store
	clock   *testClock
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	store := memory.New(
		[]core.User{{Username: "admin", Password: "secret", Name: "Somchai", Surname: "Jaidee"}},
		[]core.Member{
			{ID: "M001", Name: "Somchai", DOB: "2000-03-02", RegDate: "2020-01-15", Carry: core.Baht(100)},
			{ID: "M002", Name: "Malee", Carry: core.Money{Satang: 2550}},
		},
	)
	clock := &testClock{now: fixedNow}
	rec := newRecordingMetrics()
	deps := Deps{
		Sessions: session.NewStore(store, session.WithClock(clock.Now)),
		Ledger:   ledger.New(store, ledger.WithClock(clock.Now)),
		Store:    store,
		Metrics:  rec,
		Logger:   applog.New(applog.Config{Output: io.Discard, Component: applog.ComponentHTTP}),
	}
	if mutate != nil {
		mutate(&deps)
	}
	s := NewServer(":0", deps)
	t.Cleanup(s.limiter.stop)
	return &testEnv{server: s, metrics: rec, store: store, clock: clock}
}

func (e *testEnv) get(t *testing.T, params url.Values) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api?"+params.Encode(), nil)
	return e.do(t, req)
}

func (e *testEnv) post(t *testing.T, query url.Values, contentType, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api?"+query.Encode(), strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return e.do(t, req)
}

func (e *testEnv) do(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	out := e.get(t, url.Values{"action": {"login"}, "username": {"admin"}, "password": {"secret"}})
	require.Equal(t, true, out["success"], out)
	token, _ := out["sessionId"].(string)
	require.NotEmpty(t, token)
	return token
}

func withSession(token string, kv ...string) url.Values {
	v := url.Values{"sessionId": {token}}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	out := env.get(t, url.Values{"action": {"login"}, "username": {"admin"}, "password": {"wrong"}})
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "ชื่อผู้ใช้หรือรหัสผ่านไม่ถูกต้อง", out["message"])
	assert.NotContains(t, out, "sessionId")

	out = env.get(t, url.Values{"action": {"login"}, "username": {"admin"}, "password": {"secret"}})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Somchai", out["name"])
	assert.Equal(t, "Jaidee", out["surname"])
	assert.NotEmpty(t, out["sessionId"])

	// Credentials are compared exactly; whitespace is part of the password.
	out = env.post(t, url.Values{}, "application/json", `{"action":"login","username":"admin","password":" secret "}`)
	assert.Equal(t, false, out["success"])
	out = env.get(t, url.Values{"action": {"login"}, "username": {"admin\x00"}, "password": {"secret"}})
	assert.Equal(t, false, out["success"])

	assert.Equal(t, 1, env.metrics.actions["login/ok"])
	assert.Equal(t, 3, env.metrics.actions["login/rejected"])
}

func TestSessionGate(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, name := range []string{"get_members", "get_member", "add_member", "update_member", "get_deposits", "deposit", "undo_deposit", "summary"} {
		out := env.get(t, url.Values{"action": {name}})
		assert.Equal(t, false, out["success"], name)
		assert.Equal(t, "Unauthorized: sessionId required", out["message"], name)

		out = env.get(t, url.Values{"action": {name}, "sessionId": {"not-a-session"}})
		assert.Equal(t, false, out["success"], name)
		assert.Equal(t, "Unauthorized: invalid session", out["message"], name)
	}

}

func TestRejectedSessionLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, env.store.AppendDeposit(ctx, core.Deposit{MemberID: "M002", Period: "01/2024", Amount: 31}))

	snapshot := func() ([]core.Deposit, []core.Member) {
		deposits, err := env.store.ListDeposits(ctx)
		require.NoError(t, err)
		members, err := env.store.ListMembers(ctx)
		require.NoError(t, err)
		return deposits, members
	}
	wantDeposits, wantMembers := snapshot()

	expired := env.login(t)
	env.clock.Advance(session.DefaultTTL + time.Minute)

	for _, token := range []string{"", "not-a-session", expired} {
		writes := []url.Values{
			{"action": {"deposit"}, "id": {"M001"}, "monthYear": {"02/2024"}},
			{"action": {"undo_deposit"}, "id": {"M002"}, "monthYear": {"01/2024"}},
			{
				"action": {"add_member"}, "id": {"M010"}, "moo": {"3"}, "name": {"Napat"},
				"dob": {"1990-05-01"}, "regdate": {"2023-01-01"}, "status": {"active"},
				"carry": {"12.5"}, "note": {"new"},
			},
			{"action": {"update_member"}, "id": {"M001"}, "name": {"Changed"}},
		}
		for _, form := range writes {
			if token != "" {
				form.Set("sessionId", token)
			}
			out := env.post(t, url.Values{}, "application/x-www-form-urlencoded", form.Encode())
			assert.Equal(t, false, out["success"], "%s with %q", form.Get("action"), token)
			if token == "" {
				assert.Equal(t, "Unauthorized: sessionId required", out["message"])
			} else {
				assert.Equal(t, "Unauthorized: invalid session", out["message"])
			}
		}
	}

	gotDeposits, gotMembers := snapshot()
	assert.Equal(t, wantDeposits, gotDeposits)
	assert.Equal(t, wantMembers, gotMembers)
	assert.Empty(t, env.metrics.deposits)
	assert.Zero(t, env.metrics.undos)
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)

	env.clock.Advance(session.DefaultTTL - time.Minute)
	out := env.get(t, withSession(token, "action", "summary"))
	assert.Equal(t, true, out["success"])

	env.clock.Advance(2 * time.Minute)
	out = env.get(t, withSession(token, "action", "deposit", "id", "M001", "monthYear", "02/2024"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Unauthorized: invalid session", out["message"])

	deposits, err := env.store.ListDeposits(context.Background())
	require.NoError(t, err)
	assert.Empty(t, deposits)
}

func TestActionNames(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)

	out := env.get(t, withSession(token, "action", "GET_Members"))
	assert.Equal(t, true, out["success"])
	assert.Len(t, out["members"], 2)

	out = env.get(t, withSession(token, "action", "delete_member"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Invalid action", out["message"])

	out = env.get(t, url.Values{})
	assert.Equal(t, "Invalid action", out["message"])

	assert.Equal(t, 2, env.metrics.actions["unknown/rejected"])
}

func TestGetMembersSearch(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)

	out := env.get(t, withSession(token, "action", "get_members", "search", "mal"))
	members := out["members"].([]any)
	require.Len(t, members, 1)
	assert.Equal(t, "M002", members[0].(map[string]any)["id"])
	assert.Equal(t, 25.5, members[0].(map[string]any)["carry"])

	out = env.get(t, withSession(token, "action", "get_members", "search", "nobody"))
	assert.Equal(t, []any{}, out["members"])
}

func TestDepositLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)

	out := env.get(t, withSession(token, "action", "deposit", "id", "M001", "monthYear", "02/2024"))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "ฝากเงินสำเร็จ", out["message"])
	assert.Equal(t, float64(29), out["amount"])

	out = env.get(t, withSession(token, "action", "deposit", "id", "M001", "monthYear", "2/2024"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "ฝากเงินแล้ว", out["message"])

	out = env.get(t, withSession(token, "action", "get_deposits", "monthYear", "2/2024"))
	members := out["members"].([]any)
	require.Len(t, members, 2)
	assert.Equal(t, "M001", members[0].(map[string]any)["id"])
	assert.Equal(t, true, members[0].(map[string]any)["deposited"])
	assert.Equal(t, false, members[1].(map[string]any)["deposited"])

	out = env.get(t, withSession(token, "action", "undo_deposit", "id", "M001", "monthYear", "02/2024"))
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "ยกเลิกรายการฝากเงินสำเร็จ", out["message"])

	out = env.get(t, withSession(token, "action", "undo_deposit", "id", "M001", "monthYear", "02/2024"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "ไม่พบรายการฝากเงินนี้", out["message"])

	assert.Equal(t, []int{29}, env.metrics.deposits)
	assert.Equal(t, 1, env.metrics.undos)
	assert.Equal(t, 1, env.metrics.actions["deposit/rejected"])
}

func TestMemberActions(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)

	out := env.get(t, withSession(token, "action", "get_member", "id", "M001"))
	require.Equal(t, true, out["success"])
	member := out["member"].(map[string]any)
	assert.Equal(t, "Somchai", member["name"])
	assert.Equal(t, float64(23), member["age"])
	assert.Equal(t, float64(4), member["memberAge"])

	out = env.get(t, withSession(token, "action", "get_member", "id", "M002"))
	member = out["member"].(map[string]any)
	assert.Nil(t, member["age"])

	out = env.get(t, withSession(token, "action", "get_member", "id", "M404"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "ไม่พบสมาชิก", out["message"])

	form := url.Values{"action": {"add_member"}, "id": {"M010"}, "name": {"Napat"}, "moo": {"3"}, "carry": {"12.5"}}
	out = env.post(t, withSession(token), "application/x-www-form-urlencoded", form.Encode())
	assert.Equal(t, true, out["success"], out)
	assert.Equal(t, "เพิ่มสมาชิกสำเร็จ", out["message"])

	out = env.post(t, withSession(token), "application/x-www-form-urlencoded", form.Encode())
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "มีรหัสสมาชิกนี้แล้ว", out["message"])

	form.Set("action", "update_member")
	form.Set("name", "Napat S.")
	form.Set("carry", "")
	out = env.post(t, withSession(token), "application/x-www-form-urlencoded", form.Encode())
	assert.Equal(t, "บันทึกข้อมูลสำเร็จ", out["message"])

	out = env.get(t, withSession(token, "action", "get_member", "id", "M010"))
	member = out["member"].(map[string]any)
	assert.Equal(t, "Napat S.", member["name"])
	assert.Equal(t, float64(0), member["carry"])

	form.Set("id", "M404")
	out = env.post(t, withSession(token), "application/x-www-form-urlencoded", form.Encode())
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "ไม่พบสมาชิก", out["message"])

	form.Set("id", "M011")
	form.Set("carry", "abc")
	form.Set("action", "add_member")
	out = env.post(t, withSession(token), "application/x-www-form-urlencoded", form.Encode())
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "invalid carry-forward balance", out["message"])
}

func TestAddMemberGroupedCarry(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)

	for id, carry := range map[string]string{"M020": "1,500", "M021": "12,000.25"} {
		out := env.get(t, withSession(token, "action", "add_member", "id", id, "name", "Grouped", "carry", carry))
		require.Equal(t, true, out["success"], out)
	}
	out := env.get(t, withSession(token, "action", "get_member", "id", "M020"))
	assert.Equal(t, float64(1500), out["member"].(map[string]any)["carry"])
	out = env.get(t, withSession(token, "action", "get_member", "id", "M021"))
	assert.Equal(t, 12000.25, out["member"].(map[string]any)["carry"])

	out = env.get(t, withSession(token, "action", "add_member", "id", "M022", "name", "Comma", "carry", "1,23"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "invalid carry-forward balance", out["message"])
}

func TestSummaryAction(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)

	env.get(t, withSession(token, "action", "deposit", "id", "M001", "monthYear", "02/2024"))
	env.get(t, withSession(token, "action", "deposit", "id", "M002", "monthYear", "02/2024"))
	env.get(t, withSession(token, "action", "deposit", "id", "M001", "monthYear", "03/2024"))

	out := env.get(t, withSession(token, "action", "summary"))
	require.Equal(t, true, out["success"])
	summary := out["summary"].([]any)
	require.Len(t, summary, 3)
	assert.Equal(t, map[string]any{"monthYear": core.CarryForwardLabel, "total": 125.5}, summary[0])
	assert.Equal(t, map[string]any{"monthYear": "02/2024", "total": float64(58)}, summary[1])
	assert.Equal(t, map[string]any{"monthYear": "03/2024", "total": float64(31)}, summary[2])
	assert.Equal(t, 214.5, out["total"])
}

func TestJSONBodyOverridesQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.login(t)

	body := `{"action":"deposit","id":"M002","monthYear":"04/2024","sessionId":"` + token + `"}`
	out := env.post(t, url.Values{"action": {"summary"}, "id": {"M001"}}, "application/json", body)
	assert.Equal(t, true, out["success"], out)
	assert.Equal(t, float64(30), out["amount"])

	out = env.post(t, url.Values{}, "application/json", `{"action":`)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["message"], "invalid JSON body")
}

func TestLoginThrottled(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.LoginRatePerMinute = 2 })

	bad := url.Values{"action": {"login"}, "username": {"admin"}, "password": {"nope"}}
	env.get(t, bad)
	env.get(t, bad)
	out := env.get(t, bad)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, errLoginThrottled.Error(), out["message"])
	assert.Equal(t, 1, env.metrics.throttled)
	assert.Equal(t, 1, env.server.limiter.count())
}

type panickingLedger struct{ Ledger }

func (panickingLedger) Summary(context.Context) (core.Summary, error) {
	panic("sheet exploded")
}

func TestPanicBecomesEnvelope(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Ledger = panickingLedger{Ledger: d.Ledger} })
	token := env.login(t)

	out := env.get(t, withSession(token, "action", "summary"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "sheet exploded", out["message"])
	assert.Equal(t, 1, env.metrics.actions["summary/error"])
}

type erroringLedger struct{ Ledger }

func (erroringLedger) Summary(context.Context) (core.Summary, error) {
	return core.Summary{}, errors.New("quota exceeded")
}

func TestUnexpectedErrorMessage(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Ledger = erroringLedger{Ledger: d.Ledger} })
	token := env.login(t)

	out := env.get(t, withSession(token, "action", "summary"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "quota exceeded", out["message"])
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestEnv(t, func(d *Deps) { d.Store = failingPinger{err: errors.New("sheet unreachable")} })
	rec = httptest.NewRecorder()
	down.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "sheet unreachable")
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api?action=summary", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}
