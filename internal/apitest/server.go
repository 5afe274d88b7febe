// Package apitest runs an in-process fake of the stock and catalog service.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"goflare.io/cartstore/models"
)

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	stocks   map[int]int
	products map[int]models.Product
	failures map[string]int
	hits     map[string]int
}

// NewServer starts the fake and closes it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		stocks:   make(map[int]int),
		products: make(map[int]models.Product),
		failures: make(map[string]int),
		hits:     make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/stock/{id}", s.handleStock)
	r.Get("/products/{id}", s.handleProduct)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) SetStock(productID, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stocks[productID] = amount
}

func (s *Server) SetProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// Fail makes every request to path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Hits returns how many requests path received.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	id, ok := s.begin(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	amount, found := s.stocks[id]
	s.mu.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, models.Stock{ID: id, Amount: amount})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.begin(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	p, found := s.products[id]
	s.mu.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, p)
}

// begin records the hit, applies configured failures and parses the id.
func (s *Server) begin(w http.ResponseWriter, r *http.Request) (int, bool) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	status, failing := s.failures[r.URL.Path]
	s.mu.Unlock()

	if failing {
		http.Error(w, http.StatusText(status), status)
		return 0, false
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
