package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/bokai/internal/api"
	"github.com/cloo-solutions/bokai/internal/api/middleware"
	"github.com/cloo-solutions/bokai/internal/domain"
	"github.com/cloo-solutions/bokai/internal/parser"
	"github.com/cloo-solutions/bokai/internal/service"
)

const (
	defaultListLimit   = 20
	multipartMemory    = 8 << 20
	multipartFileField = "file"
)

type KnowledgeService interface {
	AddDocument(ctx context.Context, in service.AddDocumentInput) (*service.AddDocumentResult, error)
	GetDocument(ctx context.Context, tenantID, id string) (*domain.KnowledgeDocument, error)
	ListDocuments(ctx context.Context, tenantID, cursor string, limit int) (*service.DocumentPageResult, error)
	Reindex(ctx context.Context, tenantID, documentID string, wait bool) (*domain.IndexJob, error)
	Original(ctx context.Context, tenantID, documentID string) ([]byte, string, error)
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type CreateDocumentRequest struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Category string         `json:"category"`
	Tags     []string       `json:"tags"`
	Metadata map[string]any `json:"metadata"`
	Wait     bool           `json:"wait"`
}

type IndexJobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type DocumentResponse struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Title     string            `json:"title"`
	Content   string            `json:"content,omitempty"`
	Category  string            `json:"category,omitempty"`
	Tags      []string          `json:"tags"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Archived  bool              `json:"archived"`
	CreatedAt string            `json:"createdAt"`
	Job       *IndexJobResponse `json:"job,omitempty"`
	Chunks    *int              `json:"chunks,omitempty"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"hasMore"`
}

func documentToResponse(d *domain.KnowledgeDocument, withContent bool) *DocumentResponse {
	resp := &DocumentResponse{
		ID:        d.ID,
		TenantID:  d.TenantID,
		Title:     d.Title,
		Category:  d.Category,
		Tags:      d.Tags,
		Metadata:  d.Metadata,
		Archived:  d.ArchiveKey != "",
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if withContent {
		resp.Content = d.Content
	}
	return resp
}

func jobToResponse(j *domain.IndexJob) *IndexJobResponse {
	if j == nil {
		return nil
	}
	return &IndexJobResponse{ID: j.ID, Status: string(j.Status), Error: j.Error}
}

// Create accepts either a JSON body or a multipart upload with a "file"
// field (pdf, docx, xlsx, md, txt). The document is indexed by the worker
// unless wait is set.
func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var in service.AddDocumentInput
	var err error
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		in, err = readUpload(r)
	} else {
		in, err = readJSONDocument(r)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}
	in.TenantID = tenantID
	if r.URL.Query().Get("wait") == "true" {
		in.Wait = true
	}

	res, err := h.svc.AddDocument(r.Context(), in)
	if err != nil && res == nil {
		api.HandleError(w, err)
		return
	}

	resp := documentToResponse(res.Document, false)
	resp.Job = jobToResponse(res.Job)
	if res.Index != nil {
		chunks := res.Index.Chunks
		resp.Chunks = &chunks
	}
	if err != nil {
		// Stored but indexing failed; the job records the reason.
		api.JSON(w, api.DomainErrorToHTTP(err), struct {
			Data  *DocumentResponse `json:"data"`
			Error string            `json:"error"`
			Code  string            `json:"code"`
		}{resp, "document stored but indexing failed", domain.CodeOf(err)})
		return
	}

	status := http.StatusAccepted
	if in.Wait {
		status = http.StatusCreated
	}
	api.Success(w, status, resp)
}

func readJSONDocument(r *http.Request) (service.AddDocumentInput, error) {
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return service.AddDocumentInput{}, domain.NewDomainError(domain.ErrCodeValidation, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return service.AddDocumentInput{}, domain.NewDomainError(domain.ErrCodeValidation, "title is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return service.AddDocumentInput{}, domain.NewDomainError(domain.ErrCodeValidation, "content is required")
	}
	return service.AddDocumentInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
		Metadata: req.Metadata,
		Wait:     req.Wait,
	}, nil
}

func readUpload(r *http.Request) (service.AddDocumentInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return service.AddDocumentInput{}, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid multipart body", err)
	}
	file, header, err := r.FormFile(multipartFileField)
	if err != nil {
		return service.AddDocumentInput{}, domain.NewDomainError(domain.ErrCodeValidation, "file is required")
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return service.AddDocumentInput{}, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "failed to read upload", err)
	}
	parsed, err := parser.Parse(header.Filename, raw)
	if err != nil {
		return service.AddDocumentInput{}, err
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = parsed.Title
	}
	var tags []string
	for _, tag := range strings.Split(r.FormValue("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return service.AddDocumentInput{
		Title:       title,
		Content:     parsed.Text,
		Category:    r.FormValue("category"),
		Tags:        tags,
		Metadata:    map[string]any{"source_file": header.Filename, "format": string(parsed.Format)},
		FileName:    header.Filename,
		ContentType: parsed.ContentType,
		Raw:         raw,
		Wait:        r.FormValue("wait") == "true",
	}, nil
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	cursor := r.URL.Query().Get("cursor")
	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.svc.ListDocuments(r.Context(), tenantID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		items[i] = documentToResponse(d, false)
	}
	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "docId"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, documentToResponse(doc, true))
}

func (h *KnowledgeHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	wait := r.URL.Query().Get("wait") == "true"
	job, err := h.svc.Reindex(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "docId"), wait)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	status := http.StatusAccepted
	if wait {
		status = http.StatusOK
	}
	api.Success(w, status, jobToResponse(job))
}

// Original streams the archived upload of a document.
func (h *KnowledgeHandler) Original(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := h.svc.Original(r.Context(), middleware.GetTenantID(r.Context()), chi.URLParam(r, "docId"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
