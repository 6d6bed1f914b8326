package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTimeoutPassesThroughFastHandler(t *testing.T) {
	h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("done"))
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if w.Body.String() != "done" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestTimeoutWritesGatewayTimeout(t *testing.T) {
	handlerDone := make(chan error, 1)
	h := Timeout(20*time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		_, err := w.Write([]byte("late"))
		handlerDone <- err
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/transactions", nil))

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
	if !strings.Contains(w.Body.String(), "request timeout") {
		t.Errorf("body = %q", w.Body.String())
	}

	// The straggling handler write must be rejected, not appended to the
	// already-sent 504.
	if err := <-handlerDone; err != http.ErrHandlerTimeout {
		t.Errorf("late write error = %v, want ErrHandlerTimeout", err)
	}
	if strings.Contains(w.Body.String(), "late") {
		t.Error("handler output leaked into the timeout response")
	}
}

func TestTimeoutDoesNotOverwriteStartedResponse(t *testing.T) {
	handlerDone := make(chan struct{})
	h := Timeout(20*time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"success"}`))
		<-r.Context().Done()
		close(handlerDone)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/transactions", nil))
	<-handlerDone

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want the handler's 200 preserved", w.Code)
	}
	if strings.Contains(w.Body.String(), "request timeout") {
		t.Errorf("504 body written over a started response: %q", w.Body.String())
	}
}
