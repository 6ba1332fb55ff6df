package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/pathmerge/internal/mapping"
	"github.com/persistorai/pathmerge/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)

	return l
}

// doRequest performs a GET against h and returns the recorder.
func doRequest(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	return w
}

type stubCheck struct{ err error }

func (s stubCheck) HealthCheck(context.Context) error { return s.err }

// stubMapper answers from a fixed id to accession map.
type stubMapper struct {
	accessions map[string]string
	err        error
	lastDB     string
}

func (m *stubMapper) MapIdentifier(_ context.Context, id string, _ mapping.Namespace, dbHint string) ([]string, error) {
	m.lastDB = dbHint
	if m.err != nil {
		return nil, m.err
	}

	if acc, ok := m.accessions[id]; ok {
		return []string{acc}, nil
	}

	return nil, nil
}

type stubProgress struct{ snap service.ProgressSnapshot }

func (s stubProgress) Snapshot() service.ProgressSnapshot { return s.snap }
