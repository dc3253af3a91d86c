package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
)

const noChunksMessage = "Failed to process any chunks from the PDF. Please try again."

type uploadResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	DocumentID      string `json:"document_id"`
	Filename        string `json:"filename"`
	Chunked         bool   `json:"chunked"`
	ChunksTotal     int    `json:"chunks_total"`
	ChunksProcessed int    `json:"chunks_processed"`
}

type searchRequest struct {
	Query       string            `json:"query"`
	UseAI       *bool             `json:"use_ai"`
	ChatHistory []models.ChatTurn `json:"chat_history"`
	TopK        int               `json:"top_k"`
}

type searchResponse struct {
	Success bool `json:"success"`
	*models.PromptResponse
}

func (s *Server) uploadDocument(c echo.Context) error {
	fh, err := c.FormFile("pdf")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "a PDF file is required in the 'pdf' field")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "only PDF files are accepted")
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds the upload limit")
	}

	out, err := s.ingester.IngestFile(c.Request().Context(), filepath.Base(fh.Filename), data)
	switch {
	case errors.Is(err, models.ErrExtraction):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, models.UnreadableDocument).SetInternal(err)
	case errors.Is(err, models.ErrNoChunksProcessed):
		return echo.NewHTTPError(http.StatusBadGateway, noChunksMessage).SetInternal(err)
	case errors.Is(err, models.ErrGateway):
		return echo.NewHTTPError(http.StatusBadGateway, "Error processing PDF: embedding service unavailable").SetInternal(err)
	case err != nil:
		return err
	}

	return c.JSON(http.StatusCreated, uploadResponse{
		Success:         true,
		Message:         out.Message(),
		DocumentID:      out.DocumentID,
		Filename:        out.Filename,
		Chunked:         out.Chunked,
		ChunksTotal:     out.Total,
		ChunksProcessed: out.Processed,
	})
}

func (s *Server) search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "query is required")
	}
	if utf8.RuneCountInString(req.Query) > s.cfg.MaxQueryChars {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "query is too long")
	}
	for _, turn := range req.ChatHistory {
		if turn.Role != "user" && turn.Role != "assistant" {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "chat_history role must be user or assistant")
		}
	}
	useAI := true
	if req.UseAI != nil {
		useAI = *req.UseAI
	}

	resp, err := s.searcher.Query(c.Request().Context(), rag.QueryRequest{
		Question: req.Query,
		History:  req.ChatHistory,
		UseAI:    useAI,
		TopK:     req.TopK,
	})
	switch {
	case errors.Is(err, models.ErrRetrievalUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Search failed: document store unavailable").SetInternal(err)
	case errors.Is(err, models.ErrGateway):
		return echo.NewHTTPError(http.StatusBadGateway, "Search failed: embedding service unavailable").SetInternal(err)
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, searchResponse{Success: true, PromptResponse: resp})
}
