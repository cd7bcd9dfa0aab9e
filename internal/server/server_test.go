package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/foundry/internal/config"
	"github.com/gravitas-games/foundry/internal/metrics"
	"github.com/gravitas-games/foundry/internal/network"
	"github.com/gravitas-games/foundry/internal/sim"
	"github.com/gravitas-games/foundry/internal/world"
	"github.com/gravitas-games/foundry/pkg/production"
)

type harness struct {
	srv *Server
	ts  *httptest.Server
	sim *sim.Simulation
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(cfg)
	}

	def, err := world.LoadFile("../../configs/world.yaml")
	require.NoError(t, err)
	bus := production.NewSimpleEventBus()
	w, err := world.Build(def, world.WithEventBus(bus))
	require.NoError(t, err)

	collector := metrics.NewCollector()
	reg := prometheus.NewRegistry()
	require.NoError(t, collector.Register(reg))
	collector.Subscribe(bus)

	s := sim.New(w, sim.WithEventBus(bus), sim.WithObserver(collector))
	srv, err := New(cfg, s, w.Catalog, WithEventBus(bus), WithMetrics(collector, reg))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Shutdown() })
	return &harness{srv: srv, ts: ts, sim: s}
}

func (h *harness) wsURL() string {
	return "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
}

func (h *harness) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL(), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	expect(t, conn, network.MsgTypeWelcome)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// expect reads until a message of msgType arrives, skipping event traffic.
func expect(t *testing.T, conn *websocket.Conn, msgType string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg.Payload
		}
		if msg.Type == network.MsgTypeEvent {
			continue
		}
		t.Fatalf("expected %s message, got %s: %s", msgType, msg.Type, msg.Payload)
	}
}

func expectError(t *testing.T, conn *websocket.Conn, code string) {
	t.Helper()
	var payload network.ErrorPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, network.MsgTypeError), &payload))
	assert.Equal(t, code, payload.Code)
}

func TestObserverCommands(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t, nil)

	send(t, conn, network.MsgTypePing, nil)
	expect(t, conn, network.MsgTypePong)

	send(t, conn, network.MsgTypeState, nil)
	var snap sim.Snapshot
	require.NoError(t, json.Unmarshal(expect(t, conn, network.MsgTypeSnapshot), &snap))
	assert.Equal(t, int64(0), snap.Tick)
	require.Len(t, snap.Producers, 1)
	assert.Equal(t, "kitchen", snap.Producers[0].Name)

	send(t, conn, network.MsgTypeInject, network.InjectPayload{
		Producer: "kitchen",
		Produce:  []network.QuantityPayload{{Produce: "apple", Quantity: 3}},
	})
	var injected network.InjectedPayload
	require.NoError(t, json.Unmarshal(expect(t, conn, network.MsgTypeInjected), &injected))
	assert.Empty(t, injected.Rejected)

	send(t, conn, network.MsgTypeInject, network.InjectPayload{
		Producer: "kitchen",
		Produce:  []network.QuantityPayload{{Produce: "custard", Quantity: 1}},
	})
	expectError(t, conn, network.ErrCodeUnknownProduce)

	send(t, conn, network.MsgTypeInject, network.InjectPayload{Producer: "pantry"})
	expectError(t, conn, network.ErrCodeUnknownProducer)

	send(t, conn, network.MsgTypeExtract, network.ExtractPayload{
		Producer: "kitchen",
		Produce:  network.QuantityPayload{Produce: "apple", Quantity: 5},
	})
	expectError(t, conn, network.ErrCodeInsufficient)

	send(t, conn, network.MsgTypeExtract, network.ExtractPayload{
		Producer: "kitchen",
		Produce:  network.QuantityPayload{Produce: "apple", Quantity: 2},
	})
	expect(t, conn, network.MsgTypeExtracted)
	assert.Equal(t, 1, h.sim.Snapshot().Producers[0].Storage["apple"])

	send(t, conn, "teleport", nil)
	expectError(t, conn, network.ErrCodeUnknownType)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	expectError(t, conn, network.ErrCodeInvalidMessage)
}

func TestBroadcastTick(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t, nil)

	require.NoError(t, h.sim.Step(context.Background()))
	h.srv.BroadcastTick(h.sim.Snapshot())

	var snap sim.Snapshot
	require.NoError(t, json.Unmarshal(expect(t, conn, network.MsgTypeTick), &snap))
	assert.Equal(t, int64(1), snap.Tick)
	assert.Equal(t, int64(1), h.srv.Session().GetStatus().ServerTick)
	assert.Equal(t, 1, h.srv.Session().ObserverCount())
}

func TestCommandRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Client.RateLimit = 1
	})
	conn := h.dial(t, nil)

	send(t, conn, network.MsgTypeState, nil)
	expect(t, conn, network.MsgTypeSnapshot)

	send(t, conn, network.MsgTypeState, nil)
	expectError(t, conn, network.ErrCodeRateLimited)

	send(t, conn, network.MsgTypePing, nil)
	expect(t, conn, network.MsgTypePong)
}

func TestHTTPEndpoints(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.sim.RunTicks(context.Background(), 6))

	get := func(path string) (int, string) {
		resp, err := http.Get(h.ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok","tick":6}`, body)

	code, body = get("/state")
	assert.Equal(t, http.StatusOK, code)
	var snap sim.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	assert.Equal(t, int64(6), snap.Tick)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "foundry_sim_tick 6")
	assert.Contains(t, body, `foundry_sim_productions_completed_total{producer="kitchen"} 1`)
}

func TestObserversEndpointTracksActivity(t *testing.T) {
	h := newHarness(t, nil)
	conn := h.dial(t, nil)

	before := time.Now()
	send(t, conn, network.MsgTypePing, nil)
	expect(t, conn, network.MsgTypePong)

	resp, err := http.Get(h.ts.URL + "/observers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count     int                    `json:"count"`
		Observers []network.ObserverInfo `json:"observers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	require.Len(t, body.Observers, 1)

	o := body.Observers[0]
	assert.Equal(t, "anonymous", o.Username)
	assert.True(t, o.CanControl)
	assert.False(t, o.LastSeen.Before(before), "last_seen should move on every message")
	assert.False(t, o.ConnectedAt.After(before))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return len(h.srv.Session().Observers()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

type authFixture struct {
	key    *ecdsa.PrivateKey
	keySrv *httptest.Server
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	keySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pemBytes)
	}))
	t.Cleanup(keySrv.Close)
	return &authFixture{key: key, keySrv: keySrv}
}

func (f *authFixture) token(t *testing.T, issuer string, activated, permissions int64) string {
	t.Helper()
	claims := Claims{
		UserID:      42,
		Username:    "inspector",
		Activated:   activated,
		Permissions: permissions,
		AuthMethod:  "password",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func TestJWTAuthentication(t *testing.T) {
	fx := newAuthFixture(t)
	h := newHarness(t, func(cfg *config.Config) {
		cfg.JWT.Issuer = "login"
		cfg.JWT.PublicKeyURL = fx.keySrv.URL
	})

	_, resp, err := websocket.DefaultDialer.Dial(h.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	for name, token := range map[string]string{
		"wrong issuer": fx.token(t, "elsewhere", 1, 0),
		"banned":       fx.token(t, "login", -1, 0),
		"inactive":     fx.token(t, "login", 0, 0),
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(h.wsURL(), http.Header{
				"Authorization": {"Bearer " + token},
			})
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}

	viewer, _, err := websocket.DefaultDialer.Dial(h.wsURL(), http.Header{
		"Authorization": {"Bearer " + fx.token(t, "login", 1, 0)},
	})
	require.NoError(t, err)
	defer viewer.Close()
	var welcome network.WelcomePayload
	require.NoError(t, json.Unmarshal(expect(t, viewer, network.MsgTypeWelcome), &welcome))
	assert.Equal(t, "inspector", welcome.Username)

	send(t, viewer, network.MsgTypeInject, network.InjectPayload{Producer: "kitchen"})
	expectError(t, viewer, network.ErrCodeForbidden)

	operator, _, err := websocket.DefaultDialer.Dial(h.wsURL()+"?token="+fx.token(t, "login", 1, 1), nil)
	require.NoError(t, err)
	defer operator.Close()
	expect(t, operator, network.MsgTypeWelcome)

	send(t, operator, network.MsgTypeInject, network.InjectPayload{Producer: "kitchen"})
	expect(t, operator, network.MsgTypeInjected)
}

func TestExtractTokenFromHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	assert.Equal(t, "query", extractTokenFromHeader(r))

	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", extractTokenFromHeader(r))

	r.Header.Set("Sec-WebSocket-Protocol", "access_token, proto")
	assert.Equal(t, "proto", extractTokenFromHeader(r))
}
