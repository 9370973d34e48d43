package server

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"applysharp/internal/errors"
	"applysharp/internal/extract"
	"applysharp/internal/pipeline"
	"applysharp/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// multipartMemory is how much of a multipart body is kept in memory; the
// rest spills to temporary files.
const multipartMemory = 8 << 20

// analyzeHandler handles POST /api/analyze (multipart form)
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Observability.Tracer("applysharp.api").Start(r.Context(), "api.analyze")
	defer span.End()

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeAppError(w, requestBodyError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	if err := s.authorize(r, r.FormValue("password")); err != nil {
		span.SetAttributes(attribute.String("error.type", "auth"))
		writeAppError(w, err)
		return
	}
	if err := s.checkAnalysisLimit(r); err != nil {
		span.SetAttributes(attribute.String("error.type", "rate_limit"))
		writeAppError(w, err)
		return
	}

	cv, err := s.readUpload(r, "cv_file", "CV file")
	if err == nil && cv == nil {
		err = errors.NewInvalidInputError(errors.ErrCodeMissingField, "All fields are required.", nil)
	}
	if err != nil {
		span.RecordError(err)
		writeAppError(w, err)
		return
	}
	linkedIn, err := s.readUpload(r, "linkedin_file", "LinkedIn PDF")
	if err != nil {
		span.RecordError(err)
		writeAppError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Int("request.cv_bytes", len(cv)),
		attribute.Bool("request.has_linkedin", linkedIn != nil),
		attribute.String("operation", "analyze"),
	)

	resp, err := s.Pipeline.Analyze(ctx, pipeline.AnalyzeRequest{
		Job: types.Job{
			Company:     r.FormValue("company"),
			Role:        r.FormValue("role"),
			Location:    r.FormValue("location"),
			Description: r.FormValue("job_description"),
		},
		CV:       cv,
		LinkedIn: linkedIn,
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", string(errors.TypeOf(err))))
		s.logFailure(err, "Analyze request failed", r)
		writeAppError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("response.questions", len(resp.Questions)),
		attribute.Int("response.gaps", len(resp.GapsFound)),
	)
	writeJSON(w, http.StatusOK, resp)
}

// generateHandler handles POST /api/generate (JSON)
func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Observability.Tracer("applysharp.api").Start(r.Context(), "api.generate")
	defer span.End()

	var req types.GenerateRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		writeAppError(w, requestBodyError(err))
		return
	}

	if err := s.authorize(r, req.Password); err != nil {
		span.SetAttributes(attribute.String("error.type", "auth"))
		writeAppError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Int("request.answers", len(req.UserAnswers)),
		attribute.String("operation", "generate"),
	)

	resp, err := s.Pipeline.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", string(errors.TypeOf(err))))
		s.logFailure(err, "Generate request failed", r)
		writeAppError(w, err)
		return
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("response.change_log_entries", len(resp.Output.ChangeLog)),
	)
	writeJSON(w, http.StatusOK, resp)
}

// readUpload returns the bytes of an uploaded file, or nil when the field is absent.
func (s *Server) readUpload(r *http.Request, field, label string) ([]byte, error) {
	file, header, err := r.FormFile(field)
	if stderrors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInvalidInputError(errors.ErrCodeInvalidRequest, fmt.Sprintf("Could not read %s.", label), err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	limit := s.MaxFileSize
	if limit <= 0 {
		limit = extract.DefaultMaxFileSize
	}
	tooLarge := errors.NewInvalidInputError(errors.ErrCodeFileTooLarge,
		fmt.Sprintf("%s exceeds %s limit.", label, formatLimit(limit)), nil)
	if header.Size > limit {
		return nil, tooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("Could not read %s.", label), err)
	}
	if int64(len(data)) > limit {
		return nil, tooLarge
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

// formatLimit renders a byte limit as "5MB" when it is whole megabytes.
func formatLimit(limit int64) string {
	const mb = 1024 * 1024
	if limit >= mb && limit%mb == 0 {
		return fmt.Sprintf("%dMB", limit/mb)
	}
	return fmt.Sprintf("%d bytes", limit)
}

// logFailure logs server-side failures; client errors are logged at info.
func (s *Server) logFailure(err error, message string, r *http.Request) {
	if errors.HTTPStatus(err) >= http.StatusInternalServerError {
		s.Logger.LogError(err, message, "endpoint", r.URL.Path, "client_ip", getClientIP(r))
		return
	}
	s.Logger.Info(message,
		"endpoint", r.URL.Path,
		"error_type", errors.TypeOf(err),
		"error", strings.TrimSpace(err.Error()))
}

// requestBodyError maps a body read or parse failure to an InvalidInput error.
func requestBodyError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		return errors.NewInvalidInputError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("Request body too large (limit is %d bytes).", maxBytesErr.Limit), err)
	}
	return errors.NewInvalidInputError(errors.ErrCodeInvalidRequest, "Invalid request body.", err)
}
