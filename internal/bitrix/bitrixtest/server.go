// Package bitrixtest runs an in-memory stand-in for the Bitrix24 REST API.
package bitrixtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
)

// WebhookPath is the path prefix the fake serves, mirroring a real inbound
// webhook URL.
const WebhookPath = "/rest/1/test-secret/"

type failure struct {
	code        string
	description string
}

// Server is a fake CRM holding items of a single entity type.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int64
	items    map[int64]map[string]any
	calls    map[string]int
	failures map[string]failure
	entity   []int
}

type request struct {
	EntityTypeID int            `json:"entityTypeId"`
	ID           int64          `json:"id"`
	Fields       map[string]any `json:"fields"`
	Filter       map[string]any `json:"filter"`
}

func New() *Server {
	s := &Server{
		nextID:   100,
		items:    make(map[int64]map[string]any),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// WebhookURL is the base URL to configure a client with.
func (s *Server) WebhookURL() string {
	return s.URL + WebhookPath
}

// FailProduct makes add and update calls for the given external id fail with
// a CRM error envelope.
func (s *Server) FailProduct(externalID, code, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[externalID] = failure{code: code, description: description}
}

// Seed stores an item directly and returns its id.
func (s *Server) Seed(fields map[string]any) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(fields)
}

func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// EntityTypeIDs lists the entity type ids seen on POST calls, in order.
func (s *Server) EntityTypeIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.entity...)
}

// Items returns a copy of every stored item ordered by id.
func (s *Server) Items() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted()
}

// ItemsByExternalID returns the stored items carrying the external id.
func (s *Server) ItemsByExternalID(externalID string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]any
	for _, item := range s.sorted() {
		if item["ufCrmPaintExternalId"] == externalID {
			out = append(out, item)
		}
	}
	return out
}

func (s *Server) insert(fields map[string]any) int64 {
	s.nextID++
	item := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		item[k] = v
	}
	item["id"] = s.nextID
	s.items[s.nextID] = item
	return s.nextID
}

func (s *Server) sorted() []map[string]any {
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		item := make(map[string]any, len(s.items[id]))
		for k, v := range s.items[id] {
			item[k] = v
		}
		out = append(out, item)
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, WebhookPath) || !strings.HasSuffix(r.URL.Path, ".json") {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid request credentials")
		return
	}
	method := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, WebhookPath), ".json")

	var req request
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	if r.Method == http.MethodPost {
		s.entity = append(s.entity, req.EntityTypeID)
	}

	switch method {
	case "crm.item.add":
		if f, ok := s.failureFor(req.Fields); ok {
			writeError(w, http.StatusBadRequest, f.code, f.description)
			return
		}
		id := s.insert(req.Fields)
		writeResult(w, map[string]any{"item": s.items[id]})
	case "crm.item.update":
		item, ok := s.items[req.ID]
		if !ok {
			writeError(w, http.StatusBadRequest, "NOT_FOUND", "Item not found")
			return
		}
		if f, ok := s.failureFor(req.Fields); ok {
			writeError(w, http.StatusBadRequest, f.code, f.description)
			return
		}
		for k, v := range req.Fields {
			item[k] = v
		}
		writeResult(w, map[string]any{"item": item})
	case "crm.item.delete":
		if _, ok := s.items[req.ID]; !ok {
			writeError(w, http.StatusBadRequest, "NOT_FOUND", "Item not found")
			return
		}
		delete(s.items, req.ID)
		writeResult(w, []any{})
	case "crm.item.list":
		items := s.sorted()
		if want, ok := req.Filter["=ufCrmPaintExternalId"]; ok {
			filtered := items[:0]
			for _, item := range items {
				if item["ufCrmPaintExternalId"] == want {
					filtered = append(filtered, item)
				}
			}
			items = filtered
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": map[string]any{"items": items}, "total": len(items)})
	case "crm.type.list":
		writeResult(w, map[string]any{"types": []map[string]any{{"id": 1, "entityTypeId": 1032, "title": "Paint products"}}})
	default:
		writeError(w, http.StatusNotFound, "ERROR_METHOD_NOT_FOUND", "Method not found!")
	}
}

func (s *Server) failureFor(fields map[string]any) (failure, bool) {
	ext, _ := fields["ufCrmPaintExternalId"].(string)
	f, ok := s.failures[ext]
	return f, ok
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]any{"error": code, "error_description": description})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
