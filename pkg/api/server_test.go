package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/neonhorizon/pkg/encoder"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	s := NewServer(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s.Router()
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter()
	for _, path := range []string{"/health", "/api/v1/health"} {
		w := do(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "healthy")
	}
}

func TestCORSPreflight(t *testing.T) {
	w := do(newTestRouter(), http.MethodOptions, "/api/v1/render", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCatalog(t *testing.T) {
	w := do(newTestRouter(), http.MethodGet, "/api/v1/catalog", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Keys  []map[string]any `json:"keys"`
		Tempi []int            `json:"tempi"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Keys, 6)
	assert.Len(t, body.Tempi, 16)
	assert.Equal(t, 2400, body.Total)
}

func TestListPieces(t *testing.T) {
	r := newTestRouter()

	w := do(r, http.MethodGet, "/api/v1/pieces?offset=2398&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Offset int      `json:"offset"`
		Total  int      `json:"total"`
		Pieces []string `json:"pieces"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2400, body.Total)
	assert.Len(t, body.Pieces, 2)
	assert.Equal(t, "Synth_G_Minor_115_Bass(8, 5)_Mel(9, 0.15).mid", body.Pieces[1])

	for _, q := range []string{"offset=-1", "limit=0", "limit=5000", "offset=abc"} {
		w := do(r, http.MethodGet, "/api/v1/pieces?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetPiece(t *testing.T) {
	name := "Synth_A_Minor_85_Bass(4, 2)_Mel(5, 0.1).mid"
	w := do(newTestRouter(), http.MethodGet, "/api/v1/pieces/"+url.PathEscape(name), "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), name)
	assert.Equal(t, "44", w.Header().Get("X-Delta-Clamps"))

	dec, err := encoder.ReadMIDI(w.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, dec.Tracks, 4)
	assert.Equal(t, uint32(705882), dec.MicrosecondsPerQuarter)
}

func TestGetPieceUnknown(t *testing.T) {
	r := newTestRouter()
	for _, name := range []string{"song.mid", "Synth_B_Minor_85_Bass(4, 2)_Mel(5, 0.1).mid"} {
		w := do(r, http.MethodGet, "/api/v1/pieces/"+url.PathEscape(name), "")
		assert.Equal(t, http.StatusNotFound, w.Code, name)
	}
}

func TestRender(t *testing.T) {
	r := newTestRouter()

	w := do(r, http.MethodPost, "/api/v1/render",
		`{"key":"D_Minor","tempo":97,"bass":{"period":6,"duty":3},"melody":{"amplitude":9,"frequency":0.15}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Synth_D_Minor_97_Bass(6, 3)_Mel(9, 0.15).mid")
	assert.Equal(t, encoder.FormatMIDI, encoder.DetectFormatFromContent(w.Body.Bytes()))

	// Off-catalog key with an explicit root
	w = do(r, http.MethodPost, "/api/v1/render",
		`{"key":"B_Minor","root":59,"tempo":120,"bass":{"period":5,"duty":2},"melody":{"amplitude":4,"frequency":0.3}}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRenderRejectsBadInput(t *testing.T) {
	r := newTestRouter()
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"key":`},
		{"missing tempo", `{"key":"A_Minor","bass":{"period":4,"duty":2},"melody":{"amplitude":5,"frequency":0.1}}`},
		{"unknown key", `{"key":"H_Minor","tempo":90,"bass":{"period":4,"duty":2},"melody":{"amplitude":5,"frequency":0.1}}`},
		{"tempo too slow", `{"key":"A_Minor","tempo":3,"bass":{"period":4,"duty":2},"melody":{"amplitude":5,"frequency":0.1}}`},
		{"zero period", `{"key":"A_Minor","tempo":90,"bass":{"period":0,"duty":2},"melody":{"amplitude":5,"frequency":0.1}}`},
		{"root out of range", `{"key":"X","root":120,"tempo":90,"bass":{"period":4,"duty":2},"melody":{"amplitude":5,"frequency":0.1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/render", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}
