package server

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/chronicle-db/timetable"
)

// writeJSON writes one JSON object built by fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	e.Obj(fn)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(e.Bytes()); err != nil {
		slog.Error("failed to write JSON response", "err", err)
	}
}

// writeError writes a JSON error response and logs it.
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	logger.Warn("HTTP error", "status", status, "err", err)
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str("error") })
		e.Field("error", func(e *jx.Encoder) { e.Str(err.Error()) })
	})
}

// writeStoreError maps store errors to status codes.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, timetable.ErrUnknownTable), errors.Is(err, timetable.ErrUnknownSeries):
		status = http.StatusNotFound
	case errors.Is(err, timetable.ErrInvalidKey):
		status = http.StatusBadRequest
	case errors.Is(err, timetable.ErrTransactionState):
		status = http.StatusConflict
	}
	writeError(w, logger, status, err)
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, s := range ss {
			e.Str(s)
		}
	})
}

// encodeFloat writes f, or null when JSON cannot represent it.
func encodeFloat(e *jx.Encoder, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		e.Null()
		return
	}
	e.Float64(f)
}

func encodeValue(e *jx.Encoder, v timetable.Value) {
	if f, ok := v.Float(); ok {
		encodeFloat(e, f)
		return
	}
	if s, ok := v.Str(); ok {
		e.Str(s)
		return
	}
	if v.IsMissing() {
		e.Null()
		return
	}
	encodeValues(e, v.Items())
}

func encodeValues(e *jx.Encoder, vs []timetable.Value) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range vs {
			encodeValue(e, v)
		}
	})
}

// encodeRows writes rows with from <= key < to as [key, fields...] arrays.
func encodeRows(e *jx.Encoder, rows iter.Seq2[int, timetable.Row], from, to timetable.Key) {
	e.Arr(func(e *jx.Encoder) {
		for _, r := range rows {
			if r.Key < from {
				continue
			}
			if r.Key >= to {
				break
			}
			e.Arr(func(e *jx.Encoder) {
				encodeFloat(e, r.Key)
				for _, v := range r.Fields() {
					encodeValue(e, v)
				}
			})
		}
	})
}

// keyRange reads the from and to query parameters. Keys are numbers or
// timestamps. Missing bounds are open unless required.
func keyRange(r *http.Request, required bool) (from, to timetable.Key, err error) {
	from, to = math.Inf(-1), math.Inf(1)
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *timetable.Key
	}{{"from", &from}, {"to", &to}} {
		raw := q.Get(p.name)
		if raw == "" {
			if required {
				return 0, 0, fmt.Errorf("query parameter %q is required", p.name)
			}
			continue
		}
		k, err := timetable.KeyOf(timetable.String(raw))
		if err != nil {
			return 0, 0, fmt.Errorf("query parameter %q: %w", p.name, err)
		}
		*p.dst = k
	}
	return from, to, nil
}
