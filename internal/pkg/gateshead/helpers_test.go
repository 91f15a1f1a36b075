package gateshead_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

func newLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func mustLoadFixture(t *testing.T, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

type response struct {
	status int
	body   string
}

// fakeCouncil stands in for the three bin-checker endpoints.
type fakeCouncil struct {
	landing  response
	lookup   response
	schedule response

	mu          sync.Mutex
	calls       map[string]int
	lookupQuery url.Values
	submitQuery url.Values
	submitForm  url.Values
}

func newFakeCouncil(t *testing.T) *fakeCouncil {
	return &fakeCouncil{
		landing:  response{http.StatusOK, mustLoadFixture(t, "landing.html")},
		lookup:   response{http.StatusOK, mustLoadFixture(t, "addresses.jsonp")},
		schedule: response{http.StatusOK, mustLoadFixture(t, "schedule.html")},
		calls:    map[string]int{},
	}
}

func (f *fakeCouncil) start(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/article/3150/Bin-collection-day-checker", func(w http.ResponseWriter, r *http.Request) {
		f.record("landing")
		write(w, f.landing)
	})
	mux.HandleFunc("/apiserver/postcode", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lookupQuery = r.URL.Query()
		f.mu.Unlock()
		f.record("lookup")
		write(w, f.lookup)
	})
	mux.HandleFunc("/apiserver/formsservice/http/processsubmission", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.submitQuery = r.URL.Query()
		f.submitForm = r.PostForm
		f.mu.Unlock()
		f.record("submit")
		write(w, f.schedule)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func (f *fakeCouncil) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func write(w http.ResponseWriter, res response) {
	w.WriteHeader(res.status)
	_, _ = io.WriteString(w, res.body)
}

func (f *fakeCouncil) callCounts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[string]int, len(f.calls))
	for k, v := range f.calls {
		counts[k] = v
	}
	return counts
}

func (f *fakeCouncil) requests() (lookupQuery, submitQuery, submitForm url.Values) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookupQuery, f.submitQuery, f.submitForm
}
