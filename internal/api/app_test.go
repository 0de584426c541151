package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/concierge/internal/ads"
	"github.com/kalambet/concierge/internal/behavior"
	"github.com/kalambet/concierge/internal/concierge"
	"github.com/kalambet/concierge/internal/jobs"
	"github.com/kalambet/concierge/internal/persona"
	"github.com/kalambet/concierge/internal/places"
	"github.com/kalambet/concierge/internal/proxy"
	"github.com/kalambet/concierge/internal/session"
	"github.com/kalambet/concierge/internal/storage"
	"github.com/kalambet/concierge/internal/thread"
)

const testToken = "test-token-12345"

// --- fakes ---

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, _ []proxy.Message, _ int, _ float64) (string, error) {
	return f.reply, f.err
}

type fakeFinder struct {
	mu      sync.Mutex
	found   []places.Place
	queries []string
}

func (f *fakeFinder) Find(_ context.Context, location, keyword string, radius int) ([]places.Place, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, location+"|"+keyword)
	return f.found, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []storage.Job
}

func (q *recordingQueue) EnqueueJob(_ context.Context, job storage.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) payloads(t *testing.T) []jobs.PrefetchPayload {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []jobs.PrefetchPayload
	for _, j := range q.jobs {
		var p jobs.PrefetchPayload
		if err := json.Unmarshal([]byte(j.PayloadJSON), &p); err != nil {
			t.Fatalf("bad payload %q: %v", j.PayloadJSON, err)
		}
		out = append(out, p)
	}
	return out
}

type fakeModels struct {
	models []proxy.Model
	err    error
}

func (f *fakeModels) ListModels(context.Context) ([]proxy.Model, error) {
	return f.models, f.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type zeroRand struct{}

func (zeroRand) IntN(int) int { return 0 }

// --- helpers ---

type testApp struct {
	handler  http.Handler
	sessions *session.Manager
	finder   *fakeFinder
	queue    *recordingQueue
}

func setupApp(t *testing.T, comp concierge.Completer) *testApp {
	t.Helper()
	cat := persona.Default()
	finder := &fakeFinder{found: []places.Place{
		{ID: "p1", Name: "Cafe by the Ruins", PriceLevel: 2},
		{ID: "p2", Name: "Hill Station", PriceLevel: 3},
	}}
	queue := &recordingQueue{}
	sessions := session.NewManager(session.Options{
		DefaultLocation: "Baguio, Philippines",
		Clock:           fixedClock{t: time.Date(2025, 8, 1, 19, 0, 0, 0, time.UTC)},
		NewAds:          func() *ads.Manager { return ads.NewManager(nil, 1, zeroRand{}) },
	})
	c := concierge.New(cat, persona.NewGenerator(cat, zeroRand{}), finder, comp, concierge.Options{})

	h := NewAppHandler(AppDeps{
		Sessions:  sessions,
		Concierge: c,
		Catalog:   cat,
		Token:     testToken,
		Jobs:      queue,
		Radius:    1500,
		Models:    &fakeModels{models: []proxy.Model{{ID: "openai/gpt-4o-mini"}}},
	})
	return &testApp{handler: h, sessions: sessions, finder: finder, queue: queue}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (a *testApp) do(t *testing.T, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, authReq(method, url, body, testToken))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return v
}

func (a *testApp) createSession(t *testing.T, body string) sessionView {
	t.Helper()
	rr := a.do(t, "POST", "/sessions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session: status %d: %s", rr.Code, rr.Body.String())
	}
	return decode[sessionView](t, rr)
}

// --- tests ---

func TestHealth_NoAuth(t *testing.T) {
	app := setupApp(t, nil)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestAuth(t *testing.T) {
	app := setupApp(t, nil)
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			app.handler.ServeHTTP(rr, authReq("GET", "/personas", "", tt.token))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && !strings.Contains(rr.Body.String(), "authentication_error") {
				t.Errorf("body = %s", rr.Body.String())
			}
		})
	}
}

func TestBearerAuth_EmptyTokenRejectsAll(t *testing.T) {
	h := BearerAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq("GET", "/", "", ""))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestCreateSession(t *testing.T) {
	app := setupApp(t, nil)

	view := app.createSession(t, `{"location":"Kyoto"}`)
	if view.ID == "" || view.Location != "Kyoto" {
		t.Errorf("view = %+v", view)
	}
	if !strings.Contains(view.Greeting, "Kyoto") {
		t.Errorf("greeting %q does not mention location", view.Greeting)
	}
	if view.Insights.Persona != behavior.General {
		t.Errorf("persona = %q, want general", view.Insights.Persona)
	}

	// The warm-up must hit the cache keys the quick actions read, not the
	// /places default radius.
	got := app.queue.payloads(t)
	if len(got) != 1 || got[0].Location != "Kyoto" || got[0].Radius != concierge.QuickActionRadius {
		t.Fatalf("prefetch jobs = %+v", got)
	}
	if strings.Join(got[0].Keywords, ",") != "restaurant,attraction" {
		t.Errorf("prefetch keywords = %v", got[0].Keywords)
	}
}

// bodyOnly hides the length of its reader, like a chunked upload.
type bodyOnly struct{ io.Reader }

func TestCreateSession_EmptyChunkedBody(t *testing.T) {
	app := setupApp(t, nil)

	req := httptest.NewRequest("POST", "/sessions", bodyOnly{strings.NewReader("")})
	req.ContentLength = -1
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if view := decode[sessionView](t, rr); view.Location != "Baguio, Philippines" {
		t.Errorf("Location = %q", view.Location)
	}
}

func TestCreateSession_MalformedBody(t *testing.T) {
	app := setupApp(t, nil)
	if rr := app.do(t, "POST", "/sessions", `{"location":`); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCreateSession_DefaultLocationNoBody(t *testing.T) {
	app := setupApp(t, nil)
	view := app.createSession(t, "")
	if view.Location != "Baguio, Philippines" {
		t.Errorf("Location = %q", view.Location)
	}
}

func TestGetPatchDeleteSession(t *testing.T) {
	app := setupApp(t, nil)
	view := app.createSession(t, `{"location":"Kyoto"}`)
	base := "/sessions/" + view.ID

	rr := app.do(t, "GET", base, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rr.Code)
	}

	rr = app.do(t, "PATCH", base, `{"location":"Osaka"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := decode[sessionView](t, rr); got.Location != "Osaka" {
		t.Errorf("Location = %q", got.Location)
	}
	if n := len(app.queue.payloads(t)); n != 2 {
		t.Errorf("prefetch jobs = %d, want 2", n)
	}

	if rr := app.do(t, "PATCH", base, `{"location":"  "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank location status = %d", rr.Code)
	}

	if rr := app.do(t, "DELETE", base, ""); rr.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d", rr.Code)
	}
	if rr := app.do(t, "GET", base, ""); rr.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d", rr.Code)
	}
	if rr := app.do(t, "DELETE", base, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second DELETE status = %d", rr.Code)
	}
}

func TestChat(t *testing.T) {
	app := setupApp(t, &fakeCompleter{reply: "Watch the sunset at Mines View with a glass of wine."})
	view := app.createSession(t, `{"location":"Baguio"}`)
	base := "/sessions/" + view.ID

	rr := app.do(t, "POST", base+"/chat", `{"message":"somewhere romantic for a date"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	reply := decode[replyView](t, rr)
	if reply.Message != "Watch the sunset at Mines View with a glass of wine." {
		t.Errorf("Message = %q", reply.Message)
	}
	if reply.ThreadID == "" || reply.Title != "somewhere romantic for a date" {
		t.Errorf("reply = %+v", reply)
	}

	rr = app.do(t, "GET", base+"/persona", "")
	pv := decode[personaView](t, rr)
	if pv.Persona != behavior.Romantic {
		t.Errorf("persona = %q, want romantic", pv.Persona)
	}
	if !strings.Contains(pv.Profile.Tone, "warm and thoughtful") {
		t.Errorf("tone = %q", pv.Profile.Tone)
	}
	if pv.PreferredTime != behavior.Evening {
		t.Errorf("preferred time = %q", pv.PreferredTime)
	}
}

func TestChat_Errors(t *testing.T) {
	app := setupApp(t, &fakeCompleter{reply: "ok"})
	view := app.createSession(t, "")
	base := "/sessions/" + view.ID

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty message", `{"message":" "}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"unknown thread", `{"message":"hi","thread_id":"nope"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := app.do(t, "POST", base+"/chat", tt.body); rr.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	if rr := app.do(t, "POST", "/sessions/missing/chat", `{"message":"hi"}`); rr.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d", rr.Code)
	}
}

func TestChat_BackendDownFallsBack(t *testing.T) {
	app := setupApp(t, &fakeCompleter{err: errors.New("dial tcp: refused")})
	view := app.createSession(t, `{"location":"Kyoto"}`)

	rr := app.do(t, "POST", "/sessions/"+view.ID+"/chat", `{"message":"temples?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	reply := decode[replyView](t, rr)
	if reply.Message != "I'm having trouble connecting right now, but I'm here to help you explore Kyoto!" {
		t.Errorf("Message = %q", reply.Message)
	}
}

func TestQuickAction(t *testing.T) {
	app := setupApp(t, nil)
	view := app.createSession(t, `{"location":"Baguio"}`)
	base := "/sessions/" + view.ID

	rr := app.do(t, "POST", base+"/quick-actions/food", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	res := decode[concierge.QuickResult](t, rr)
	if len(res.Places) != 2 || res.Ad == nil {
		t.Errorf("result = %+v", res)
	}
	if res.Thread == nil || res.Thread.Title != "Food in Baguio" {
		t.Errorf("thread = %+v", res.Thread)
	}

	if rr := app.do(t, "POST", base+"/quick-actions/nightlife", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d", rr.Code)
	}

	in := decode[concierge.Insights](t, app.do(t, "GET", base+"/insights", ""))
	if in.Chosen != 1 || in.Total != 1 {
		t.Errorf("insights = %+v", in)
	}
}

func TestRecordChoice(t *testing.T) {
	app := setupApp(t, nil)
	view := app.createSession(t, "")
	base := "/sessions/" + view.ID

	app.do(t, "POST", base+"/choices", `{"type":"restaurant","accepted":true,"detail":"liked it"}`)
	rr := app.do(t, "POST", base+"/choices", `{"type":"museum","accepted":false}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	in := decode[concierge.Insights](t, rr)
	if in.Chosen != 1 || in.Total != 2 {
		t.Errorf("insights = %+v", in)
	}

	snap := decode[behavior.Snapshot](t, app.do(t, "GET", base+"/behavior", ""))
	if len(snap.Choices.Chosen) != 1 || snap.Choices.Chosen[0].Detail != "liked it" {
		t.Errorf("chosen = %+v", snap.Choices.Chosen)
	}
	if len(snap.Choices.Skipped) != 1 || snap.Choices.Skipped[0].Type != "museum" {
		t.Errorf("skipped = %+v", snap.Choices.Skipped)
	}

	if rr := app.do(t, "POST", base+"/choices", `{"accepted":true}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing type status = %d", rr.Code)
	}
}

func TestResetBehavior(t *testing.T) {
	app := setupApp(t, &fakeCompleter{reply: "ok"})
	view := app.createSession(t, "")
	base := "/sessions/" + view.ID

	app.do(t, "POST", base+"/chat", `{"message":"cheap eats"}`)
	if rr := app.do(t, "DELETE", base+"/behavior", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	snap := decode[behavior.Snapshot](t, app.do(t, "GET", base+"/behavior", ""))
	if len(snap.Interactions) != 0 || snap.DominantPersona != behavior.General {
		t.Errorf("snapshot after reset = %+v", snap)
	}
	threads := decode[[]thread.Summary](t, app.do(t, "GET", base+"/threads", ""))
	if len(threads) != 1 {
		t.Errorf("threads after reset = %d, want 1", len(threads))
	}
}

func TestProactive(t *testing.T) {
	app := setupApp(t, nil)
	view := app.createSession(t, `{"location":"Lisbon"}`)

	got := decode[map[string]string](t, app.do(t, "GET", "/sessions/"+view.ID+"/proactive", ""))
	if !strings.Contains(got["message"], "Lisbon") {
		t.Errorf("message = %q", got["message"])
	}
}

func TestThreads_Lifecycle(t *testing.T) {
	app := setupApp(t, &fakeCompleter{reply: "ok"})
	view := app.createSession(t, "")
	base := "/sessions/" + view.ID

	reply := decode[replyView](t, app.do(t, "POST", base+"/chat", `{"message":"first"}`))
	app.do(t, "POST", base+"/quick-actions/activities", "")

	active := decode[[]thread.Summary](t, app.do(t, "GET", base+"/threads", ""))
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}

	tURL := base + "/threads/" + reply.ThreadID
	tv := decode[threadView](t, app.do(t, "GET", tURL, ""))
	if len(tv.Timeline) != 2 || tv.Timeline[0].Message == nil || tv.Timeline[0].Message.Role != "user" {
		t.Errorf("timeline = %+v", tv.Timeline)
	}

	rr := app.do(t, "PATCH", tURL, `{"status":"completed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("complete status = %d: %s", rr.Code, rr.Body.String())
	}
	if rr := app.do(t, "PATCH", tURL, `{"status":"completed"}`); rr.Code != http.StatusConflict {
		t.Errorf("double complete status = %d, want 409", rr.Code)
	}
	if rr := app.do(t, "PATCH", tURL, `{"status":"active"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("reactivate status = %d, want 400", rr.Code)
	}

	completed := decode[[]thread.Summary](t, app.do(t, "GET", base+"/threads?status=completed", ""))
	if len(completed) != 1 || completed[0].ID != reply.ThreadID {
		t.Errorf("completed = %+v", completed)
	}
	all := decode[[]thread.Summary](t, app.do(t, "GET", base+"/threads?status=all", ""))
	if len(all) != 2 {
		t.Errorf("all = %d", len(all))
	}

	if rr := app.do(t, "PATCH", tURL, `{"status":"archived"}`); rr.Code != http.StatusOK {
		t.Errorf("archive status = %d", rr.Code)
	}
	if rr := app.do(t, "GET", base+"/threads?status=bogus", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d", rr.Code)
	}
	if rr := app.do(t, "GET", base+"/threads?limit=-1", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("negative limit = %d", rr.Code)
	}
	if rr := app.do(t, "GET", base+"/threads/nope", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing thread = %d", rr.Code)
	}
}

func TestSelectThread_RoutesNextChat(t *testing.T) {
	app := setupApp(t, &fakeCompleter{reply: "ok"})
	view := app.createSession(t, "")
	base := "/sessions/" + view.ID

	first := decode[replyView](t, app.do(t, "POST", base+"/chat", `{"message":"first"}`))
	app.do(t, "POST", base+"/quick-actions/food", "")

	if rr := app.do(t, "POST", base+"/threads/"+first.ThreadID+"/select", ""); rr.Code != http.StatusOK {
		t.Fatalf("select status = %d", rr.Code)
	}
	next := decode[replyView](t, app.do(t, "POST", base+"/chat", `{"message":"again"}`))
	if next.ThreadID != first.ThreadID {
		t.Errorf("chat went to %s, want %s", next.ThreadID, first.ThreadID)
	}
}

func TestInactiveThread_RejectsTurns(t *testing.T) {
	app := setupApp(t, &fakeCompleter{reply: "ok"})
	view := app.createSession(t, "")
	base := "/sessions/" + view.ID

	first := decode[replyView](t, app.do(t, "POST", base+"/chat", `{"message":"temples near me"}`))
	tURL := base + "/threads/" + first.ThreadID
	if rr := app.do(t, "PATCH", tURL, `{"status":"archived"}`); rr.Code != http.StatusOK {
		t.Fatalf("archive status = %d", rr.Code)
	}

	rr := app.do(t, "POST", base+"/chat", `{"message":"more temples?","thread_id":"`+first.ThreadID+`"}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("chat to archived thread status = %d, want 409", rr.Code)
	}
	if rr := app.do(t, "POST", tURL+"/select", ""); rr.Code != http.StatusConflict {
		t.Errorf("select archived thread status = %d, want 409", rr.Code)
	}

	tv := decode[threadView](t, app.do(t, "GET", tURL, ""))
	if len(tv.Timeline) != 2 {
		t.Errorf("archived thread grew to %d entries", len(tv.Timeline))
	}

	next := decode[replyView](t, app.do(t, "POST", base+"/chat", `{"message":"something else"}`))
	if next.ThreadID == first.ThreadID {
		t.Error("plain chat continued the archived thread")
	}
}

func TestListPersonas(t *testing.T) {
	app := setupApp(t, nil)
	got := decode[[]persona.Profile](t, app.do(t, "GET", "/personas", ""))
	if len(got) != len(behavior.Personas)+1 {
		t.Fatalf("got %d personas", len(got))
	}
	if got[len(got)-1].Tag != behavior.General {
		t.Errorf("last tag = %q, want general", got[len(got)-1].Tag)
	}
}

func TestPlaces(t *testing.T) {
	app := setupApp(t, nil)

	rr := app.do(t, "GET", "/places?location=Baguio&keyword=coffee&radius=500", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[placesView](t, rr)
	if len(got.Places) != 2 {
		t.Errorf("places = %+v", got)
	}
	if got.StaticMapURL != "" {
		t.Errorf("static map without a map-capable finder: %q", got.StaticMapURL)
	}
	if len(app.finder.queries) != 1 || app.finder.queries[0] != "Baguio|coffee" {
		t.Errorf("queries = %v", app.finder.queries)
	}

	for _, url := range []string{"/places?keyword=coffee", "/places?location=x&keyword=y&radius=abc", "/places?location=x&keyword=y&radius=999999"} {
		if rr := app.do(t, "GET", url, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d", url, rr.Code)
		}
	}
}

// mapsFinder is a fakeFinder that can also draw maps.
type mapsFinder struct {
	fakeFinder
}

func (f *mapsFinder) StaticMap(_ context.Context, location string, found []places.Place) (string, error) {
	return fmt.Sprintf("https://maps.example/staticmap?center=%s&markers=%d", location, len(found)), nil
}

func TestPlaces_StaticMap(t *testing.T) {
	finder := &mapsFinder{fakeFinder{found: []places.Place{
		{ID: "p1", Name: "Cafe by the Ruins", Lat: 16.41, Lng: 120.59, HasLocation: true},
		{ID: "p2", Name: "Hill Station", Lat: 16.42, Lng: 120.6, HasLocation: true},
	}}}
	cat := persona.Default()
	c := concierge.New(cat, persona.NewGenerator(cat, zeroRand{}), finder, nil, concierge.Options{})
	h := NewAppHandler(AppDeps{Sessions: session.NewManager(session.Options{}), Concierge: c, Catalog: cat, Token: testToken})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq("GET", "/places?location=Baguio&keyword=coffee", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[placesView](t, rr)
	if got.StaticMapURL != "https://maps.example/staticmap?center=Baguio&markers=2" {
		t.Errorf("static_map_url = %q", got.StaticMapURL)
	}
}

func TestModels(t *testing.T) {
	app := setupApp(t, nil)
	got := decode[proxy.ModelList](t, app.do(t, "GET", "/models", ""))
	if len(got.Data) != 1 || got.Data[0].ID != "openai/gpt-4o-mini" {
		t.Errorf("models = %+v", got)
	}

	h := NewAppHandler(AppDeps{Sessions: app.sessions, Token: testToken})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq("GET", "/models", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Errorf("no lister status = %d", rr.Code)
	}
}

func TestConcurrentChatsSameSession(t *testing.T) {
	app := setupApp(t, &fakeCompleter{reply: "ok"})
	view := app.createSession(t, "")
	base := "/sessions/" + view.ID

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := httptest.NewRecorder()
			app.handler.ServeHTTP(rr, authReq("POST", base+"/chat", `{"message":"food"}`, testToken))
		}()
	}
	wg.Wait()

	snap := decode[behavior.Snapshot](t, app.do(t, "GET", base+"/behavior", ""))
	if len(snap.Interactions) != 10 || snap.Scores[behavior.Foodie] != 10 {
		t.Errorf("interactions = %d, foodie = %d", len(snap.Interactions), snap.Scores[behavior.Foodie])
	}
}
