package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"india-blood-connect/internal/domain"
	"india-blood-connect/internal/matcher"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/otp"
	"india-blood-connect/internal/repository"
	"india-blood-connect/internal/service"
	"india-blood-connect/internal/session"
	"india-blood-connect/internal/store"
)

const testOTP = "1234"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zap.NewNop()
	bus := notify.NewLocalBus()
	repos := repository.NewDirectoryRepos(store.NewDirectory(client, bus, logger), logger)
	_, err := repository.Seed(context.Background(), repos, logger)
	require.NoError(t, err)
	return serveRepos(t, client, bus, repos)
}

func serveRepos(t *testing.T, client *redis.Client, bus *notify.LocalBus, repos *repository.Repos) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	verifier, err := otp.NewFixedVerifier(testOTP, logger)
	require.NoError(t, err)
	sessions := session.NewManager(store.NewRedisKV(client), repos, verifier, bus, 0, logger)
	watcher := matcher.NewWatcher(repos.Requests, matcher.BusNotifier{Bus: bus}, time.Hour, logger)
	requests := service.NewRequestService(repos.Requests, bus, notify.NopEvents{}, watcher, logger)

	r := NewRouter(logger)
	r.RegisterAuthRoutes(NewAuthHandler(sessions, logger))
	r.RegisterDirectoryRoutes(NewDirectoryHandler(
		service.NewDonorService(repos.Donors, logger),
		service.NewBankService(repos.Banks, bus, logger),
		sessions, logger))
	r.RegisterCampRoutes(NewCampHandler(service.NewCampService(repos.Camps, repos.Registrations, bus, logger), sessions, logger))
	r.RegisterRequestRoutes(NewRequestHandler(requests, sessions, logger))
	r.RegisterAlertRoutes(NewAlertsHandler(requests, sessions, []string{"*"}, logger))

	srv := httptest.NewServer(r.Handler([]string{"*"}))
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token string, body any) (int, Result[json.RawMessage]) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Result[json.RawMessage]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func registerDonor(t *testing.T, srv *httptest.Server, mobile string, loc domain.Location) session.Session {
	t.Helper()
	status, res := call(t, srv, http.MethodPost, "/auth/api/v1/register/donor", "", map[string]any{
		"name": "Donor " + mobile, "mobile": mobile, "bloodGroup": "B+",
		"state": loc.State, "district": loc.District, "city": loc.City, "otp": testOTP,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	return decode[session.Session](t, res.Result)
}

var pune = domain.Location{State: "Maharashtra", District: "Pune", City: "Kothrud"}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	s := registerDonor(t, srv, "9000000001", pune)
	require.NotEmpty(t, s.Token)

	_, res := call(t, srv, http.MethodGet, "/auth/api/v1/session", s.Token, nil)
	require.Equal(t, ResultSuccess, res.Code)
	assert.Equal(t, s.Identity.ID, decode[domain.Identity](t, res.Result).ID)

	// same mobile again
	_, res = call(t, srv, http.MethodPost, "/auth/api/v1/register/donor", "", map[string]any{
		"name": "Again", "mobile": "9000000001", "bloodGroup": "O+",
		"state": pune.State, "district": pune.District, "city": pune.City, "otp": testOTP,
	})
	assert.Equal(t, ResultError, res.Code)

	_, res = call(t, srv, http.MethodPost, "/auth/api/v1/login", "", map[string]any{"role": "donor", "mobile": "9000000001", "otp": "9999"})
	assert.Equal(t, ResultError, res.Code)

	_, res = call(t, srv, http.MethodPost, "/auth/api/v1/login", "", map[string]any{"role": "donor", "mobile": "9000000001", "otp": testOTP})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	second := decode[session.Session](t, res.Result)
	assert.Equal(t, s.Identity.ID, second.Identity.ID)

	_, res = call(t, srv, http.MethodPost, "/auth/api/v1/logout", second.Token, nil)
	require.Equal(t, ResultSuccess, res.Code)

	status, res := call(t, srv, http.MethodGet, "/auth/api/v1/session", second.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, ResultTokenExpired, res.Code)
}

func TestLogin_UnknownMobileForRole(t *testing.T) {
	srv := newTestServer(t)
	registerDonor(t, srv, "9000000002", pune)

	_, res := call(t, srv, http.MethodPost, "/auth/api/v1/login", "", map[string]any{"role": "bank", "mobile": "9000000002", "otp": testOTP})
	assert.Equal(t, ResultError, res.Code)
	assert.Contains(t, res.Message, "no blood bank account")
}

func TestRequests_BroadcastAlertsCancel(t *testing.T) {
	srv := newTestServer(t)
	owner := registerDonor(t, srv, "9000000011", pune)
	neighbour := registerDonor(t, srv, "9000000012", domain.Location{State: "Maharashtra", District: "Nashik", City: "Nashik"})
	far := registerDonor(t, srv, "9000000013", domain.Location{State: "Kerala", District: "Ernakulam", City: "Kochi"})

	status, res := call(t, srv, http.MethodPost, "/requests/api/v1/requests", "", map[string]any{"patientName": "X"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, ResultTokenExpired, res.Code)

	_, res = call(t, srv, http.MethodPost, "/requests/api/v1/requests", owner.Token, map[string]any{
		"patientName": "Ravi", "bloodGroup": "O-", "location": "Ruby Hall Clinic",
		"state": "Maharashtra", "district": "Pune", "city": "Pune",
	})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	created := decode[domain.BloodRequest](t, res.Result)
	assert.Equal(t, owner.Identity.Mobile, created.ContactMobile)

	_, res = call(t, srv, http.MethodGet, "/alerts/api/v1/alerts", neighbour.Token, nil)
	require.Equal(t, ResultSuccess, res.Code)
	assert.Len(t, decode[matcher.Snapshot](t, res.Result).Requests, 1, "same state matches")

	_, res = call(t, srv, http.MethodGet, "/alerts/api/v1/alerts", far.Token, nil)
	assert.Empty(t, decode[matcher.Snapshot](t, res.Result).Requests)

	_, res = call(t, srv, http.MethodGet, "/alerts/api/v1/alerts", "", nil)
	require.Equal(t, ResultSuccess, res.Code)
	assert.Empty(t, decode[matcher.Snapshot](t, res.Result).Requests)

	_, res = call(t, srv, http.MethodGet, "/requests/api/v1/requests/mine", owner.Token, nil)
	assert.Len(t, decode[[]domain.BloodRequest](t, res.Result), 1)

	_, res = call(t, srv, http.MethodDelete, "/requests/api/v1/requests/"+created.ID, neighbour.Token, nil)
	assert.Equal(t, ResultError, res.Code)

	_, res = call(t, srv, http.MethodDelete, "/requests/api/v1/requests/"+created.ID, owner.Token, nil)
	require.Equal(t, ResultSuccess, res.Code, res.Message)

	_, res = call(t, srv, http.MethodGet, "/alerts/api/v1/alerts", neighbour.Token, nil)
	assert.Empty(t, decode[matcher.Snapshot](t, res.Result).Requests)

	// already gone
	_, res = call(t, srv, http.MethodDelete, "/requests/api/v1/requests/"+created.ID, owner.Token, nil)
	assert.Equal(t, ResultSuccess, res.Code)
}

func TestDirectory_SearchAndStock(t *testing.T) {
	srv := newTestServer(t)

	_, res := call(t, srv, http.MethodGet, "/directory/api/v1/donors?group=A%2B&state=telangana", "", nil)
	require.Equal(t, ResultSuccess, res.Code)
	assert.Len(t, decode[[]domain.Donor](t, res.Result), 2)

	// unencoded plus
	_, res = call(t, srv, http.MethodGet, "/directory/api/v1/donors?group=A+&state=telangana", "", nil)
	require.Equal(t, ResultSuccess, res.Code)
	assert.Len(t, decode[[]domain.Donor](t, res.Result), 2)

	_, res = call(t, srv, http.MethodGet, "/directory/api/v1/donors?group=C%2B", "", nil)
	assert.Equal(t, ResultError, res.Code)

	_, res = call(t, srv, http.MethodPost, "/auth/api/v1/login", "", map[string]any{"role": "bank", "mobile": "2223456789", "otp": testOTP})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	bank := decode[session.Session](t, res.Result)

	_, res = call(t, srv, http.MethodPut, "/directory/api/v1/banks/stock", bank.Token, map[string]any{"group": "AB-", "level": "HIGH"})
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	assert.Equal(t, domain.StockHigh, decode[domain.BloodBank](t, res.Result).Stock[domain.ABNeg])

	_, res = call(t, srv, http.MethodGet, "/auth/api/v1/session", bank.Token, nil)
	who := decode[domain.Identity](t, res.Result)
	require.NotNil(t, who.Bank)
	assert.Equal(t, domain.StockHigh, who.Bank.Stock[domain.ABNeg])

	_, res = call(t, srv, http.MethodPut, "/directory/api/v1/banks/stock", bank.Token, map[string]any{"group": "AB-", "level": "PLENTY"})
	assert.Equal(t, ResultError, res.Code)

	donor := registerDonor(t, srv, "9000000021", pune)
	_, res = call(t, srv, http.MethodPut, "/directory/api/v1/banks/stock", donor.Token, map[string]any{"group": "AB-", "level": "HIGH"})
	assert.Equal(t, ResultError, res.Code)

	_, res = call(t, srv, http.MethodGet, "/directory/api/v1/banks?q=red+cross", "", nil)
	require.Equal(t, ResultSuccess, res.Code)
	assert.Len(t, decode[[]domain.BloodBank](t, res.Result), 1)
}

func TestDirectory_Export(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/directory/api/v1/banks/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Stock")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCamps_RegisterTwice(t *testing.T) {
	srv := newTestServer(t)
	donor := registerDonor(t, srv, "9000000031", pune)

	_, res := call(t, srv, http.MethodPost, "/camps/api/v1/camps/CAMP-SEED00001/register", "", nil)
	assert.Equal(t, ResultTokenExpired, res.Code)

	_, res = call(t, srv, http.MethodPost, "/camps/api/v1/camps/CAMP-SEED00001/register", donor.Token, nil)
	require.Equal(t, ResultSuccess, res.Code, res.Message)

	_, res = call(t, srv, http.MethodPost, "/camps/api/v1/camps/CAMP-SEED00001/register", donor.Token, nil)
	assert.Equal(t, ResultError, res.Code)
	assert.Equal(t, domain.ErrAlreadyRegistered.Error(), res.Message)

	_, res = call(t, srv, http.MethodPost, "/camps/api/v1/camps/CAMP-NOPE/register", donor.Token, nil)
	assert.Equal(t, ResultError, res.Code)

	_, res = call(t, srv, http.MethodGet, "/camps/api/v1/camps?state=maharashtra", donor.Token, nil)
	require.Equal(t, ResultSuccess, res.Code)
	camps := decode[[]domain.CampListing](t, res.Result)
	require.Len(t, camps, 1)
	assert.True(t, camps[0].Registered)
}

func TestCamps_CreateBankOnly(t *testing.T) {
	srv := newTestServer(t)
	donor := registerDonor(t, srv, "9000000041", pune)
	body := map[string]any{
		"name": "Weekend Drive", "date": "2026-11-01", "time": "09:00 AM - 01:00 PM",
		"location": "Shaniwar Wada", "tag": "next week",
		"state": "Maharashtra", "district": "Pune", "city": "Pune",
	}

	_, res := call(t, srv, http.MethodPost, "/camps/api/v1/camps", donor.Token, body)
	assert.Equal(t, ResultError, res.Code)

	_, res = call(t, srv, http.MethodPost, "/auth/api/v1/login", "", map[string]any{"role": "bank", "mobile": "8045671234", "otp": testOTP})
	bank := decode[session.Session](t, res.Result)
	_, res = call(t, srv, http.MethodPost, "/camps/api/v1/camps", bank.Token, body)
	require.Equal(t, ResultSuccess, res.Code, res.Message)
	assert.Equal(t, bank.Identity.ID, decode[domain.DonationCamp](t, res.Result).OrganizerID)
}

func TestAlertsStream(t *testing.T) {
	srv := newTestServer(t)
	viewer := registerDonor(t, srv, "9000000051", pune)
	requester := registerDonor(t, srv, "9000000052", pune)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/alerts/api/v1/alerts/ws?token=" + viewer.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readSnap := func() matcher.Snapshot {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var res Result[matcher.Snapshot]
		require.NoError(t, conn.ReadJSON(&res))
		return res.Result
	}

	first := readSnap()
	assert.Equal(t, viewer.Identity.ID, first.ViewerID)
	assert.Empty(t, first.Requests)

	_, res := call(t, srv, http.MethodPost, "/requests/api/v1/requests", requester.Token, map[string]any{
		"patientName": "Meera", "bloodGroup": "A+", "location": "Sassoon Hospital",
		"state": "Maharashtra", "district": "Pune", "city": "Pune",
	})
	require.Equal(t, ResultSuccess, res.Code, res.Message)

	next := readSnap()
	require.Len(t, next.Requests, 1)
	assert.Equal(t, "Meera", next.Requests[0].PatientName)
}

func TestAlertsStream_ClosesAfterLogout(t *testing.T) {
	srv := newTestServer(t)
	viewer := registerDonor(t, srv, "9000000053", pune)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/alerts/api/v1/alerts/ws?token=" + viewer.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var first Result[matcher.Snapshot]
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, viewer.Identity.ID, first.Result.ViewerID)

	_, res := call(t, srv, http.MethodPost, "/auth/api/v1/logout", viewer.Token, nil)
	require.Equal(t, ResultSuccess, res.Code, res.Message)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, closeSessionEnded), "got %v", err)
}

func TestAlertsStream_RequiresSession(t *testing.T) {
	srv := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/alerts/api/v1/alerts/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(r))

	r.Header.Set("X-Session-Token", "abc")
	assert.Equal(t, "abc", bearerToken(r))

	r.Header.Set("Authorization", "bearer xyz")
	assert.Equal(t, "xyz", bearerToken(r))
}

func TestRegister_HostedRejectionReachesUser(t *testing.T) {
	const denied = `new row violates row-level security policy for table \"donors\"`
	hosted := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"` + denied + `","code":"42501"}`))
	}))
	t.Cleanup(hosted.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := zap.NewNop()
	repos := repository.NewHostedRepos(store.NewTableClient(store.TableClientConfig{BaseURL: hosted.URL}, logger), logger)
	srv := serveRepos(t, client, notify.NewLocalBus(), repos)

	status, res := call(t, srv, http.MethodPost, "/auth/api/v1/register/donor", "", map[string]any{
		"name": "Asha", "mobile": "9812345678", "bloodGroup": "O+",
		"state": pune.State, "district": pune.District, "city": pune.City, "otp": testOTP,
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, ResultError, res.Code)
	assert.Contains(t, res.Message, `new row violates row-level security policy for table "donors"`)
	assert.Contains(t, res.Message, "status 403")
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	status, res := call(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, ResultSuccess, res.Code)
}
