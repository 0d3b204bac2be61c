package types

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemDetails(t *testing.T) {
	p := NewProblemDetails(CodeUnknownKPI, LayerRegistryAPI, "未知指标", "kpi 99 not in catalog", http.StatusNotFound, nil)
	assert.Equal(t, "Not Found", p.Title)
	assert.NotEmpty(t, p.TraceID)
	assert.Equal(t, "kpi 99 not in catalog", p.Error())

	var err error = p
	got, ok := IsProblemDetails(err)
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = IsProblemDetails(errors.New("plain"))
	assert.False(t, ok)

	rec := httptest.NewRecorder()
	p.WriteJSON(rec)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var decoded ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, CodeUnknownKPI, decoded.Code)
}
