package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/carebook/availability/internal/config"
	"github.com/carebook/availability/internal/domain/scheduling"
	"github.com/carebook/availability/internal/platform/auth"
	"github.com/carebook/availability/internal/platform/middleware"
)

const testKey = "0123456789abcdef0123456789abcdef"

func testConfig() *config.Config {
	return &config.Config{
		Port:                     "0",
		Env:                      "development",
		LogLevel:                 "info",
		CORSOrigins:              []string{"http://localhost:3000"},
		StoreTimeout:             5 * time.Second,
		RequestTimeout:           5 * time.Second,
		BodyLimit:                "1M",
		Timezone:                 "UTC",
		BulkEditOldRange:         "starts",
		BulkEditEmptyDayFallback: true,
		RateLimitRPS:             100,
		RateLimitBurst:           100,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (*echo.Echo, *scheduling.MemoryStore) {
	t.Helper()
	a, release, err := newApp(context.Background(), cfg, zerolog.Nop(), true)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	t.Cleanup(release)
	store, ok := a.slots.(*scheduling.MemoryStore)
	if !ok {
		t.Fatalf("expected a memory store, got %T", a.slots)
	}
	return a.router(), store
}

func serve(e *echo.Echo, method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func signToken(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	})
	s, err := tok.SignedString([]byte(testKey))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestHealth(t *testing.T) {
	e, _ := newTestRouter(t, testConfig())
	rec := serve(e, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["store"] != "memory" {
		t.Errorf("unexpected body %v", body)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
}

func TestDevMode_PreviewSlots(t *testing.T) {
	e, _ := newTestRouter(t, testConfig())
	rec := serve(e, http.MethodPost, "/api/v1/slots/preview",
		`{"date":"2024-06-10","start_time":"09:00","end_time":"10:00","interval_minutes":20}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Slots []map[string]interface{} `json:"slots"`
		Total int                      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || len(body.Slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", body.Total)
	}
	if body.Slots[1]["id"] != "generated-20" {
		t.Errorf("expected offset-based id, got %v", body.Slots[1]["id"])
	}
}

func TestDevMode_PreviewRejectsBadBody(t *testing.T) {
	e, _ := newTestRouter(t, testConfig())
	rec := serve(e, http.MethodPost, "/api/v1/slots/preview", `{"date":"10/06/2024","start_time":"09:00","end_time":"10:00"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestDevMode_Calendar(t *testing.T) {
	e, store := newTestRouter(t, testConfig())
	doc, inst := uuid.New(), uuid.New()
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	store.AddSlot(scheduling.ScheduleRecord{
		TimeSlot:      scheduling.TimeSlot{Start: start, End: start.Add(30 * time.Minute)},
		DoctorID:      doc,
		InstitutionID: inst,
	})

	rec := serve(e, http.MethodGet, "/api/v1/doctors/"+doc.String()+"/calendar?year=2024&month=6&selected=2024-06-10", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view struct {
		Year  int                      `json:"year"`
		Cells []map[string]interface{} `json:"cells"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Year != 2024 || len(view.Cells) != 42 {
		t.Fatalf("expected a 42-cell grid for 2024, got %d cells for %d", len(view.Cells), view.Year)
	}

	rec = serve(e, http.MethodGet, "/api/v1/doctors/"+doc.String()+"/calendar?month=13", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for month 13, got %d", rec.Code)
	}
}

func TestJWTMode(t *testing.T) {
	cfg := testConfig()
	cfg.AuthSigningKey = testKey
	e, _ := newTestRouter(t, cfg)
	target := "/api/v1/doctors/" + uuid.NewString() + "/schedule"

	if rec := serve(e, http.MethodGet, target, "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, target, "", signToken(t, "user-1", "scheduler")); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with a token, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := serve(e, http.MethodGet, target, "", signToken(t, "user-2", "billing")); rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a role without access, got %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Errorf("expected health to stay public, got %d", rec.Code)
	}
}

func TestOldRangePolicyFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.BulkEditOldRange = "bogus"
	a := &app{cfg: cfg}
	if got := a.oldRangePolicy(); got != scheduling.RangeStarts {
		t.Errorf("expected starts, got %s", got)
	}
	cfg.BulkEditOldRange = "covered"
	if got := a.oldRangePolicy(); got == scheduling.RangeStarts {
		t.Error("expected covered to be honoured")
	}
}

func TestPrintSlots(t *testing.T) {
	var buf bytes.Buffer
	d, _ := scheduling.ParseDate("2024-06-10")
	from, _ := scheduling.ParseTimeOfDay("09:00")
	to, _ := scheduling.ParseTimeOfDay("10:00")
	printSlots(&buf, scheduling.GenerateSlots(d, from, to, 30, time.UTC))

	out := buf.String()
	for _, want := range []string{"generated-0  09:00-09:30", "generated-30  09:30-10:00", "2 slot(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	printSlots(&buf, nil)
	if buf.String() != "no slots\n" {
		t.Errorf("unexpected empty output %q", buf.String())
	}
}

func TestPrintCalendar(t *testing.T) {
	var buf bytes.Buffer
	sel := scheduling.Date{Year: 2024, Month: time.June, Day: 10}
	cells := scheduling.BuildMonthGrid(2024, time.June, scheduling.GridOptions{Selected: &sel})
	printCalendar(&buf, 2024, time.June, cells)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected title, header and six weeks, got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "June 2024" {
		t.Errorf("unexpected title %q", lines[0])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "Mo") {
		t.Errorf("expected Monday first, got %q", lines[1])
	}
	// June 2024 starts on a Saturday: the first row opens with May 27.
	if !strings.HasPrefix(strings.TrimSpace(lines[2]), "(27)") {
		t.Errorf("expected dimmed May 27, got %q", lines[2])
	}
	if !strings.Contains(buf.String(), "[10]") {
		t.Error("expected the selected day to be bracketed")
	}
}

func TestCalendarCmd_RejectsBadMonth(t *testing.T) {
	cmd := calendarCmd()
	cmd.SetArgs([]string{"--year", "2024", "--month", "13"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "--month") {
		t.Errorf("expected a --month error, got %v", err)
	}
}

func TestSlotsCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := slotsCmd()
	cmd.SetArgs([]string{"--date", "2024-06-10", "--start", "09:00", "--end", "10:00", "--interval", "25"})
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "2 slot(s)") {
		t.Errorf("expected trailing short slot to be dropped:\n%s", out.String())
	}
}
