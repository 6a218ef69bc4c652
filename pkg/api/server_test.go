package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/market"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/mempool"
	"github.com/uhyunpark/mirrorperp/pkg/app/perp"
	"github.com/uhyunpark/mirrorperp/pkg/storage"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	btcToken = common.HexToAddress("0x062e66477faf219f25d27dced647bf57c3107d52")
)

type fakeEngine struct {
	ectx  *perp.EngineContext
	stats perp.Stats
}

func (f *fakeEngine) Stats() perp.Stats { return f.stats }
func (f *fakeEngine) Context() *perp.EngineContext { return f.ectx }

type fakeQueue struct{ stats mempool.Stats }

func (f *fakeQueue) Stats() mempool.Stats { return f.stats }
func (f *fakeQueue) Address() common.Address { return operator }

type brokenJournal struct{}

func (brokenJournal) GetMirror(string) (*storage.MirrorRecord, error) {
	return nil, errors.New("disk gone")
}

func (brokenJournal) RecentMirrors(int, string) ([]*storage.MirrorRecord, error) {
	return nil, errors.New("disk gone")
}

func newTestServer(t *testing.T, mirrors MirrorLister) *Server {
	t.Helper()
	registry, err := market.NewRegistryFrom([]market.Instrument{
		{Symbol: "btc", Address: btcToken, TargetSize: "0.0005", Decimals: 8},
	})
	require.NoError(t, err)

	ectx := perp.NewEngineContext(operator, common.HexToAddress("0x00000000000000000000000000000000000000BB"), registry)
	ectx.NativeBalance = big.NewInt(5e18)
	ectx.SetInstrumentState("btc", big.NewInt(50000), big.NewInt(100000))

	engine := &fakeEngine{ectx: ectx, stats: perp.Stats{Received: 7, Mirrored: 2, Skipped: 5}}
	queue := &fakeQueue{stats: mempool.Stats{Sent: 2}}
	return NewServer(NewHub(nil), engine, queue, mirrors, big.NewInt(25), nil)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, storage.NewInMemoryJournal())
	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, storage.NewInMemoryJournal())
	rec := get(t, s, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "25", resp.ChainID)
	assert.Equal(t, operator.Hex(), resp.Operator)
	assert.Equal(t, common.HexToAddress("0xbb").Hex(), resp.Tracked)
	assert.Equal(t, "5000000000000000000", resp.NativeBalance.String())
	assert.Equal(t, uint64(7), resp.Engine.Received)
	assert.Equal(t, uint64(2), resp.Engine.Mirrored)
	assert.Equal(t, uint64(2), resp.Queue.Sent)
}

func TestInstruments(t *testing.T) {
	s := newTestServer(t, storage.NewInMemoryJournal())

	rec := get(t, s, "/api/v1/instruments")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []InstrumentInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "btc", list[0].Symbol)
	assert.Equal(t, btcToken.Hex(), list[0].Address)
	assert.Equal(t, "50000", list[0].LocalAmountIn.String())
	assert.True(t, list[0].Tradable)

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/instruments/btc", http.StatusOK},
		{"/api/v1/instruments/doge", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.code, get(t, s, tt.path).Code)
		})
	}
}

func TestMirrors(t *testing.T) {
	journal := storage.NewInMemoryJournal()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	// Newest records are eth, so a btc page must come from the journal scan.
	for i, symbol := range []string{"btc", "btc", "eth", "eth"} {
		rec := storage.NewMirrorRecord("0xabc:"+string(rune('0'+i)), base.Add(time.Duration(i)*time.Minute))
		rec.Symbol = symbol
		rec.Status = storage.StatusConfirmed
		require.NoError(t, journal.SaveMirror(rec))
	}
	s := newTestServer(t, journal)

	tests := []struct {
		name  string
		path  string
		code  int
		count int
	}{
		{"default limit", "/api/v1/mirrors", http.StatusOK, 4},
		{"limit", "/api/v1/mirrors?limit=2", http.StatusOK, 2},
		{"symbol filter", "/api/v1/mirrors?symbol=btc", http.StatusOK, 2},
		{"symbol filter with limit", "/api/v1/mirrors?limit=2&symbol=btc", http.StatusOK, 2},
		{"unknown symbol", "/api/v1/mirrors?symbol=doge", http.StatusOK, 0},
		{"bad limit", "/api/v1/mirrors?limit=abc", http.StatusBadRequest, 0},
		{"negative limit", "/api/v1/mirrors?limit=-1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.path)
			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				return
			}
			var resp MirrorsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.count, resp.Count)
			assert.Len(t, resp.Mirrors, tt.count)
		})
	}

	rec := get(t, s, "/api/v1/mirrors?limit=1")
	var resp MirrorsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Mirrors, 1)
	assert.Equal(t, "0xabc:3", resp.Mirrors[0].EventKey, "newest first")

	rec = get(t, s, "/api/v1/mirrors?limit=2&symbol=btc")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	for _, m := range resp.Mirrors {
		assert.Equal(t, "btc", m.Symbol)
	}
}

func TestMirrorByID(t *testing.T) {
	journal := storage.NewInMemoryJournal()
	saved := storage.NewMirrorRecord("0xabc:0", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	saved.Symbol = "btc"
	saved.TxHash = "0xfeed"
	require.NoError(t, journal.SaveMirror(saved))
	s := newTestServer(t, journal)

	rec := get(t, s, "/api/v1/mirrors/"+saved.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got storage.MirrorRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "0xfeed", got.TxHash)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v1/mirrors/missing").Code)

	broken := newTestServer(t, brokenJournal{})
	assert.Equal(t, http.StatusInternalServerError, get(t, broken, "/api/v1/mirrors/"+saved.ID).Code)
}

func TestMirrorsJournalError(t *testing.T) {
	s := newTestServer(t, brokenJournal{})
	rec := get(t, s, "/api/v1/mirrors")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk gone")
}

func TestWebSocketReceivesReports(t *testing.T) {
	s := newTestServer(t, storage.NewInMemoryJournal())
	go s.Hub().Run()
	defer s.Hub().Stop()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: []string{"mirrors:btc"}}))
	require.Eventually(t, func() bool {
		return s.Hub().Subscribers("mirrors:btc") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Not subscribed to eth; only the btc report should arrive.
	s.Hub().Publish(perp.Report{ID: "r1", Symbol: "eth", Status: storage.StatusConfirmed})
	s.Hub().Publish(perp.Report{ID: "r2", Symbol: "btc", Status: storage.StatusConfirmed, Executed: perp.Leg{Size: "324.06"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string      `json:"type"`
		Data perp.Report `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "report", msg.Type)
	assert.Equal(t, "r2", msg.Data.ID)
	assert.Equal(t, "324.06", msg.Data.Executed.Size)
}

func TestHubStopDisconnectsClients(t *testing.T) {
	s := newTestServer(t, storage.NewInMemoryJournal())
	go s.Hub().Run()

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: []string{MirrorsChannel}}))
	require.Eventually(t, func() bool {
		return s.Hub().Subscribers(MirrorsChannel) == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Hub().Stop()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
