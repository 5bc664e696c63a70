package notificaties

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/metrics"
)

var fixedNow = func() time.Time { return time.Date(2012, 1, 14, 0, 0, 0, 0, time.UTC) }

type nrc struct {
	mu       sync.Mutex
	status   int
	received []map[string]interface{}
	auth     []string
}

func (n *nrc) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		defer n.mu.Unlock()
		if r.URL.Path != "/api/v1/notificaties" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		n.received = append(n.received, body)
		n.auth = append(n.auth, r.Header.Get("Authorization"))
		w.WriteHeader(n.status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (n *nrc) setStatus(s int) {
	n.mu.Lock()
	n.status = s
	n.mu.Unlock()
}

func message() Message {
	return Message{
		Kanaal:      "documenten",
		HoofdObject: "http://testserver/documenten/api/v1/enkelvoudiginformatieobjecten/1",
		Resource:    "enkelvoudiginformatieobject",
		ResourceURL: "http://testserver/documenten/api/v1/enkelvoudiginformatieobjecten/1",
		Actie:       ActieCreate,
		Kenmerken: map[string]string{
			"bronorganisatie":             "517439943",
			"informatieobjecttype":        "http://testserver/catalogi/api/v1/informatieobjecttypen/1",
			"vertrouwelijkheidaanduiding": "openbaar",
		},
	}
}

func TestNotifySendsMessage(t *testing.T) {
	recv := &nrc{status: http.StatusCreated}
	srv := recv.server(t)
	n := NewNotifier(NewHTTPSender(srv.URL+"/api/v1/", "openzaak", "secret", nil), NewMemoryFailedStore(), WithClock(fixedNow))

	before := testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues("documenten"))
	n.Notify(context.Background(), message())

	require.Len(t, recv.received, 1)
	body := recv.received[0]
	assert.Equal(t, "documenten", body["kanaal"])
	assert.Equal(t, "create", body["actie"])
	assert.Equal(t, "2012-01-14T00:00:00Z", body["aanmaakdatum"])
	assert.Equal(t, "openbaar", body["kenmerken"].(map[string]interface{})["vertrouwelijkheidaanduiding"])
	assert.True(t, strings.HasPrefix(recv.auth[0], "Bearer "))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.NotificationsSent.WithLabelValues("documenten")))

	claims, err := tokens.NewVerifier(tokens.SecretFunc(func(ctx context.Context, id string) (string, error) {
		return "secret", nil
	}), 0).Parse(context.Background(), strings.TrimPrefix(recv.auth[0], "Bearer "))
	require.NoError(t, err)
	assert.Equal(t, "openzaak", claims.ClientID)
}

func TestNotifyDisabled(t *testing.T) {
	recv := &nrc{status: http.StatusCreated}
	srv := recv.server(t)
	store := NewMemoryFailedStore()
	n := NewNotifier(NewHTTPSender(srv.URL+"/api/v1", "", "", nil), store, Disabled(true))

	n.Notify(context.Background(), message())
	assert.Empty(t, recv.received)
	assert.False(t, n.Enabled())
}

func TestNotifyStoresFailure(t *testing.T) {
	recv := &nrc{status: http.StatusInternalServerError}
	srv := recv.server(t)
	store := NewMemoryFailedStore()
	n := NewNotifier(NewHTTPSender(srv.URL+"/api/v1", "", "", nil), store, WithClock(fixedNow))

	n.Notify(context.Background(), message())

	list, err := store.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "documenten", list[0].Message.Kanaal)
	require.Len(t, list[0].Attempts, 1)
	assert.Equal(t, http.StatusInternalServerError, list[0].Attempts[0].StatusCode)
	assert.Nil(t, list[0].RetriedAt)
}

type flakySender struct {
	fail map[string]bool
	sent []string
}

func (f *flakySender) Send(ctx context.Context, msg Message) error {
	if f.fail[msg.ResourceURL] {
		return errors.New("nrc down")
	}
	f.sent = append(f.sent, msg.ResourceURL)
	return nil
}

func TestResendSkipsRetriedAndContinuesOnFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryFailedStore()
	retried := fixedNow()
	mk := func(id, url string, at time.Time, r *time.Time) *FailedNotification {
		m := message()
		m.ResourceURL = url
		return &FailedNotification{ID: id, Message: m, CreatedAt: at, RetriedAt: r}
	}
	require.NoError(t, store.Save(ctx, mk("a", "http://x/1", fixedNow(), nil)))
	require.NoError(t, store.Save(ctx, mk("b", "http://x/2", fixedNow().Add(time.Second), nil)))
	require.NoError(t, store.Save(ctx, mk("c", "http://x/3", fixedNow().Add(2*time.Second), &retried)))

	sender := &flakySender{fail: map[string]bool{"http://x/1": true}}
	n := NewNotifier(sender, store, WithClock(fixedNow))

	res, err := n.Resend(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Sent)
	assert.Equal(t, []string{"a"}, res.Failed)
	assert.Equal(t, []string{"c"}, res.Skipped)
	assert.Equal(t, []string{"http://x/2"}, sender.sent)

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, a.RetriedAt)
	assert.Len(t, a.Attempts, 1)

	b, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, b.RetriedAt)

	// without ids only pending ones are retried
	sender.fail = map[string]bool{}
	res, err = n.Resend(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Sent)

	_, err = n.Resend(ctx, []string{"missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := NewMemoryFailedStore()
	require.NoError(t, store.Save(ctx, &FailedNotification{ID: "a", Message: message(), CreatedAt: fixedNow()}))
	sender := &flakySender{}
	n := NewNotifier(sender, store, WithClock(fixedNow))

	r := gin.New()
	RegisterAdminRoutes(r.Group("/admin/api"), n)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/failed-notifications?pending=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []FailedNotification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/api/failed-notifications/resend", strings.NewReader(`{"ids": ["a"]}`)))
	require.Equal(t, http.StatusOK, w.Code)
	var res ResendResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"a"}, res.Sent)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/failed-notifications/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(NewNotifier(nil, NewMemoryFailedStore()), "not a schedule")
	assert.Error(t, err)

	s, err := NewScheduler(NewNotifier(nil, NewMemoryFailedStore()), "@every 1h")
	require.NoError(t, err)
	s.Start()
	s.Stop()
}

func TestNewKafkaSenderValidation(t *testing.T) {
	_, err := NewKafkaSender(nil, "topic")
	assert.Error(t, err)
	_, err = NewKafkaSender([]string{"localhost:9092"}, "")
	assert.Error(t, err)

	s, err := NewKafkaSender([]string{"127.0.0.1:1"}, "openzaak.notificaties")
	require.NoError(t, err)
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Send(ctx, message()))
}
