package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/jx"

	"github.com/chronicle-db/timetable"
)

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /tables", s.handleTables)
	s.mux.HandleFunc("POST /tables/{table}/write", s.handleWrite)
	s.mux.HandleFunc("POST /tables/{table}/remove", s.handleRemove)
	s.mux.HandleFunc("GET /tables/{table}/rows", s.handleRows)
	s.mux.HandleFunc("GET /tables/{table}/search", s.handleSearch)
	s.mux.HandleFunc("GET /tables/{table}/series/{series}", s.handleSeries)
	s.mux.HandleFunc("POST /prometheus/write", s.handlePromWrite)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.store.Tables())
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
		e.Field("tables", func(e *jx.Encoder) { e.Int(n) })
	})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("tables", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, name := range s.store.Tables() {
					t, _ := s.store.Table(name)
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(name) })
						e.Field("id", func(e *jx.Encoder) { e.Str(t.ID().String()) })
						e.Field("rows", func(e *jx.Encoder) { e.Int(t.Len()) })
						e.Field("version", func(e *jx.Encoder) { e.UInt64(t.Version()) })
						e.Field("series", func(e *jx.Encoder) { encodeStrings(e, s.store.SeriesNames(name)) })
					})
				}
			})
		})
	})
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	switch format {
	case "", "ndjson", "json", "lineproto", "influx":
	default:
		writeError(w, s.logger, http.StatusBadRequest, fmt.Errorf("unknown format %q", format))
		return
	}

	// Read the whole body before taking the store lock so a slow client
	// cannot stall other requests.
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err)
		return
	}

	n, err := s.ingest(table, format, q, body)
	s.writeIngestResult(w, n, err)
}

func (s *Server) ingest(table, format string, q url.Values, body []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch format {
	case "lineproto", "influx":
		return s.store.IngestLineProtocol(table, bytes.NewReader(body), timetable.LineProtocolOptions{
			Measurement: q.Get("measurement"),
			Precision:   q.Get("precision"),
		})
	default:
		return s.store.IngestNDJSON(table, bytes.NewReader(body))
	}
}

func (s *Server) handlePromWrite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err)
		return
	}

	res, err := s.promWrite(body)

	if err != nil && res.Applied == 0 && !errors.Is(err, timetable.ErrInvalidKey) {
		writeError(w, s.logger, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.logger.Warn("remote write partially applied", "applied", res.Applied, "err", err)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) promWrite(body []byte) (timetable.PromWriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.IngestPromWrite(body)
}

// writeIngestResult reports applied and rejected rows. Rejected keys are a
// partial success; anything else that stopped decoding is a bad request.
func (s *Server) writeIngestResult(w http.ResponseWriter, applied int, err error) {
	var rejected int
	var be *timetable.BatchError
	if errors.As(err, &be) {
		rejected = len(be.Rejected)
	}
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, timetable.ErrUnknownTable):
		writeError(w, s.logger, http.StatusNotFound, err)
		return
	case errors.Is(err, timetable.ErrTransactionState):
		writeError(w, s.logger, http.StatusConflict, err)
		return
	case be != nil && onlyBatchErrors(err):
	default:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Field("applied", func(e *jx.Encoder) { e.Int(applied) })
		e.Field("rejected", func(e *jx.Encoder) { e.Int(rejected) })
		if err != nil {
			e.Field("error", func(e *jx.Encoder) { e.Str(err.Error()) })
		}
	})
}

// onlyBatchErrors reports whether err carries nothing but rejected keys.
func onlyBatchErrors(err error) bool {
	switch e := err.(type) {
	case *timetable.BatchError:
		return true
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if !onlyBatchErrors(inner) {
				return false
			}
		}
		return true
	case interface{ Unwrap() error }:
		return onlyBatchErrors(e.Unwrap())
	}
	return false
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	from, to, err := keyRange(r, true)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.store.Table(r.PathValue("table"))
	if err != nil {
		writeStoreError(w, s.logger, err)
		return
	}
	n, err := t.Remove(from, to)
	if err != nil {
		writeStoreError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("removed", func(e *jx.Encoder) { e.Int(n) })
	})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	from, to, err := keyRange(r, false)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.store.Table(r.PathValue("table"))
	if err != nil {
		writeStoreError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("table", func(e *jx.Encoder) { e.Str(t.Name()) })
		e.Field("version", func(e *jx.Encoder) { e.UInt64(t.Version()) })
		e.Field("columns", func(e *jx.Encoder) { encodeStrings(e, s.store.Columns(t.Name())) })
		e.Field("rows", func(e *jx.Encoder) { encodeRows(e, t.Rows(), from, to) })
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("key")
	key, err := timetable.KeyOf(timetable.String(raw))
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, fmt.Errorf("key %q: %w", raw, err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.store.Table(r.PathValue("table"))
	if err != nil {
		writeStoreError(w, s.logger, err)
		return
	}
	row, ok := t.Search(key)
	if !ok {
		writeError(w, s.logger, http.StatusNotFound, fmt.Errorf("no row at or before %v", key))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("key", func(e *jx.Encoder) { encodeFloat(e, row.Key) })
		e.Field("fields", func(e *jx.Encoder) { encodeValues(e, row.Fields()) })
	})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	from, to, err := keyRange(r, false)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, err)
		return
	}
	table, name := r.PathValue("table"), r.PathValue("series")

	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.store.Series(table, name)
	if err != nil {
		writeStoreError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Field("table", func(e *jx.Encoder) { e.Str(table) })
		e.Field("series", func(e *jx.Encoder) { e.Str(name) })
		e.Field("version", func(e *jx.Encoder) { e.UInt64(g.Version()) })
		e.Field("columns", func(e *jx.Encoder) { encodeStrings(e, g.Columns()) })
		e.Field("rows", func(e *jx.Encoder) { encodeRows(e, g.Rows(), from, to) })
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	hub := s.store.Hub()
	if hub == nil {
		writeError(w, s.logger, http.StatusNotFound, errors.New("change notification is disabled"))
		return
	}
	hub.WebSocketHandler()(w, r)
}
