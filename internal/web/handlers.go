package web

import (
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvsql/internal/core"
	"github.com/JonMunkholm/csvsql/internal/logging"
	"github.com/JonMunkholm/csvsql/internal/store"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of a multipart form is held in memory before
// the rest spills to disk.
const multipartMemory = 32 << 20

// handleHealth reports store reachability and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"driver":  s.db.Driver(),
		"imports": s.service.LimiterStatus(),
	}
	if _, err := s.db.Tables(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
		body["error"] = core.MapError(err).Message
	}
	writeJSON(w, r, status, body)
}

// handleStartImport spools the uploaded file to disk and starts a background
// import of it. The response carries the import ID to poll.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	body, name, err := s.uploadBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer body.Close()

	opts, err := s.importOptions(r, name)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "PARAM001", err.Error())
		return
	}
	if opts.Table == "" {
		respondError(w, r, core.ErrNoTable)
		return
	}

	spooled, size, err := spool(body)
	if err != nil {
		respondError(w, r, err)
		return
	}
	opts.Size = size

	id, err := s.service.StartImport(r.Context(), spooled, name, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("import accepted",
		"import_id", id,
		"table", opts.Table,
		"source", name,
		"bytes", size,
	)
	w.Header().Set("Location", "/imports/"+id)
	writeJSON(w, r, http.StatusAccepted, map[string]string{
		"import_id": id,
		"table":     opts.Table,
	})
}

// handleImportStatus returns progress and, once finished, the result.
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(chi.URLParam(r, "importID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// handleCancelImport stops a running import. Rows already committed stay.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "importID")
	if err := s.service.Cancel(id); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"import_id": id, "status": "cancelled"})
}

// handleListImports lists tracked imports with the limiter state.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"imports": s.service.List(),
		"limiter": s.service.LimiterStatus(),
	})
}

// handlePreview runs the pipeline over the upload without writing.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	body, name, err := s.uploadBody(w, r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer body.Close()

	opts, err := s.importOptions(r, name)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "PARAM001", err.Error())
		return
	}

	resp, err := s.service.Preview(r.Context(), body, name, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleListTables lists the tables in the store.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.db.Tables(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tables": tables})
}

// handleTablePage returns one page of a table's rows.
func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "page_size", store.DefaultPageSize)

	res, err := store.TablePage(r.Context(), s.db, chi.URLParam(r, "table"), page, pageSize)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// uploadBody returns the uploaded file and its name. Multipart forms use
// the "file" field; any other body is the file itself, named by the
// "filename" query parameter.
func (s *Server) uploadBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, r.URL.Query().Get("filename"), nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, "", &core.SourceReadError{Source: "upload", Err: err}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", &core.SourceReadError{Source: "upload", Err: err}
	}
	return file, header.Filename, nil
}

// importOptions builds session options from the service defaults and the
// query string. The table defaults to the upload's file stem.
func (s *Server) importOptions(r *http.Request, name string) (core.Options, error) {
	opts := s.service.Defaults()
	q := r.URL.Query()

	opts.Table = q.Get("table")
	if opts.Table == "" && name != "" {
		opts.Table = core.TableName(name)
	}

	if v := q.Get("invalid"); v != "" {
		p, err := core.ParsePolicy(v)
		if err != nil {
			return opts, err
		}
		opts.Policy = p
	}
	if v := q.Get("if_exists"); v != "" {
		e, err := core.ParseIfExists(v)
		if err != nil {
			return opts, err
		}
		opts.IfExists = e
	}
	if v := q.Get("delimiters"); v != "" {
		d, err := core.ParseDelimiters(strings.Split(v, ","))
		if err != nil {
			return opts, err
		}
		opts.Delimiters = d
	}
	if v := q.Get("encoding"); v != "" {
		opts.Encoding = v
	}
	opts.SampleSize = parseIntParam(r, "sample_size", opts.SampleSize)
	opts.SniffLines = parseIntParam(r, "sniff_lines", opts.SniffLines)
	return opts, nil
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// spooledFile is an upload copied to a temp file; closing it removes the file.
type spooledFile struct {
	*os.File
}

func (f spooledFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); err == nil {
		err = rmErr
	}
	return err
}

// spool copies src to a temp file so the import can outlive the request.
func spool(src io.Reader) (io.ReadCloser, int64, error) {
	f, err := os.CreateTemp("", "csvsql-upload-*")
	if err != nil {
		return nil, 0, err
	}
	sf := spooledFile{f}

	n, err := io.Copy(f, src)
	if err != nil {
		sf.Close()
		return nil, 0, &core.SourceReadError{Source: "upload", Err: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		sf.Close()
		return nil, 0, err
	}
	return sf, n, nil
}
