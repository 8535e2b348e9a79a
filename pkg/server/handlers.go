package server

import (
	"context"
	stderrors "errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/boxrender/pkg/buildinfo"
	"github.com/matzehuels/boxrender/pkg/errors"
	"github.com/matzehuels/boxrender/pkg/history"
	"github.com/matzehuels/boxrender/pkg/httputil"
	"github.com/matzehuels/boxrender/pkg/pipeline"
)

// Response headers set on render and graph responses.
const (
	HeaderCache     = "X-Boxrender-Cache"
	HeaderSceneHash = "X-Boxrender-Scene-Hash"
	HeaderWarnings  = "X-Boxrender-Warnings"
	HeaderRecord    = "X-Boxrender-Record"
)

var graphContentTypes = map[string]string{
	pipeline.FormatDOT: "text/vnd.graphviz",
	pipeline.FormatSVG: "image/svg+xml",
	pipeline.FormatPNG: "image/png",
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	opts, frame, err := s.readRequest(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	opts.Frames = []int{frame}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	res, err := s.cfg.Runner.Render(ctx, opts)
	if err != nil {
		httputil.WriteError(w, timeoutError(ctx, err))
		return
	}

	rec := history.NewRecord("http", res)
	if err := s.cfg.History.Save(ctx, rec); err != nil {
		s.cfg.Logger.Warn("save history", "err", err)
	}

	fr := res.Frames[0]
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set(HeaderCache, cacheStatus(fr.Cached))
	w.Header().Set(HeaderSceneHash, res.SceneHash)
	w.Header().Set(HeaderWarnings, strconv.Itoa(len(res.Warnings)))
	w.Header().Set(HeaderRecord, rec.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(fr.PNG)
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	opts, frame, err := s.readRequest(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	data, hit, err := s.cfg.Runner.GraphWithCacheInfo(ctx, opts, frame)
	if err != nil {
		httputil.WriteError(w, timeoutError(ctx, err))
		return
	}

	w.Header().Set("Content-Type", graphContentTypes[opts.GraphFormat])
	w.Header().Set(HeaderCache, cacheStatus(hit))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := history.DefaultLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			httputil.WriteErr(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be between 1 and 200", nil)
			return
		}
		limit = n
	}
	records, err := s.cfg.History.List(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.cfg.History.Get(r.Context(), id)
	if stderrors.Is(err, history.ErrNotFound) {
		httputil.WriteErr(w, http.StatusNotFound, errors.ErrCodeNotFound, "no record "+id, nil)
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// readRequest builds pipeline options from the body and query string and
// returns the requested frame.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (pipeline.Options, int, error) {
	var opts pipeline.Options
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBody)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := httputil.DecodeJSON(r, &opts); err != nil {
			return opts, 0, err
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return opts, 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "read body")
		}
		opts.Scene = string(body)
	}
	if strings.TrimSpace(opts.Scene) == "" {
		return opts, 0, errors.New(errors.ErrCodeInvalidInput, "empty scene")
	}

	q := r.URL.Query()
	frame, err := strconv.Atoi(q.Get("frame"))
	if err != nil {
		return opts, 0, errors.New(errors.ErrCodeInvalidFrame, "frame query parameter must be an integer")
	}
	if v := q.Get("resolution"); v != "" {
		res, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, 0, errors.New(errors.ErrCodeInvalidInput, "invalid resolution %q", v)
		}
		opts.Resolution = res
	}
	if v := q.Get("format"); v != "" {
		opts.GraphFormat = v
	}
	opts.Refresh = opts.Refresh || q.Get("refresh") == "true"
	opts.Detailed = opts.Detailed || q.Get("detailed") == "true"

	opts.ScenePath = ""
	opts.BaseDir = s.cfg.BaseDir
	opts.Logger = s.cfg.Logger
	if opts.Workers == 0 {
		opts.Workers = s.cfg.Workers
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, 0, err
	}
	return opts, frame, nil
}

func timeoutError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeTimeout, err, "request timed out")
	}
	return err
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
