// Package service ties documents, the subject index and the generators into the
// operations exposed by the CLI and TUI.
package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"studyrag/internal/domain"
	"studyrag/internal/extract"
	"studyrag/internal/logger"
	"studyrag/internal/store"
)

const tracerName = "studyrag/service"

// Indexer is the write side of the subject index.
type Indexer interface {
	Upsert(ctx context.Context, subjectID, documentID string, chunks []domain.Chunk) error
	Remove(ctx context.Context, subjectID, documentID string) error
}

// ContextBuilder turns a question into retrieved context. It never fails.
type ContextBuilder interface {
	Build(ctx context.Context, subjectID, query string) string
}

// Answerer turns context and a question into a user-facing answer. It never fails.
type Answerer interface {
	Answer(ctx context.Context, contextText, question string) string
}

// QuizGenerator produces and stores a quiz from subject text.
type QuizGenerator interface {
	Generate(ctx context.Context, subjectID, text string) (domain.Quiz, error)
}

// Deps groups the collaborators of RAGService.
type Deps struct {
	Chunker    domain.Chunker
	Index      Indexer
	Context    ContextBuilder
	Answers    Answerer
	Quizzes    QuizGenerator
	Documents  store.DocumentStore
	QuizStore  store.QuizStore
	Summarizer domain.Summarizer
	// SummarySentences bounds the ingest summary; <= 0 uses the summarizer default.
	SummarySentences int
}

// IngestResult reports what happened to an uploaded document.
type IngestResult struct {
	DocumentID string
	Name       string
	Chunks     int
	// Empty is set when the document had no extractable text. Nothing is stored then.
	Empty   bool
	Summary string
}

// RAGService is the study assistant facade.
type RAGService struct {
	deps   Deps
	log    *logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func NewRAGService(deps Deps, log *logger.Logger) *RAGService {
	return &RAGService{
		deps:   deps,
		log:    log.With("component", "RAGService"),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
}

// DocumentID derives a stable id so re-uploading a file with the same name replaces it.
func DocumentID(subjectID, name string) string {
	h := sha1.Sum([]byte(subjectID + "\x00" + name))
	return hex.EncodeToString(h[:8])
}

// IngestFile extracts text from path and ingests it under the file's base name.
func (s *RAGService) IngestFile(ctx context.Context, subjectID, path string) (IngestResult, error) {
	text, err := extract.File(path)
	if err != nil {
		return IngestResult{}, fmt.Errorf("extract %s: %w", path, err)
	}
	return s.IngestDocument(ctx, subjectID, filepath.Base(path), text)
}

// IngestDocument stores text, chunks it and adds it to the subject index.
func (s *RAGService) IngestDocument(ctx context.Context, subjectID, name, text string) (res IngestResult, err error) {
	ctx, span := s.tracer.Start(ctx, "service.ingest_document", trace.WithAttributes(
		attribute.String("subject.id", subjectID),
		attribute.String("document.name", name),
		attribute.Int("document.runes", len([]rune(text))),
	))
	defer func() { endSpan(span, err) }()

	res = IngestResult{DocumentID: DocumentID(subjectID, name), Name: name}
	if strings.TrimSpace(text) == "" {
		res.Empty = true
		span.SetAttributes(attribute.Bool("document.empty", true))
		s.log.Info("document has no text", "subject_id", subjectID, "name", name)
		return res, nil
	}
	doc := domain.Document{
		SubjectID: subjectID,
		ID:        res.DocumentID,
		Name:      name,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	chunks, err := s.deps.Chunker.Chunk(doc)
	if err != nil {
		return IngestResult{}, fmt.Errorf("chunking document: %w", err)
	}
	// The text is only listed once its vectors are searchable.
	if err := s.deps.Index.Upsert(ctx, subjectID, doc.ID, chunks); err != nil {
		return IngestResult{}, err
	}
	if err := s.deps.Documents.Put(ctx, doc); err != nil {
		if rerr := s.deps.Index.Remove(ctx, subjectID, doc.ID); rerr != nil {
			s.log.Error("rollback of indexed document failed", "document_id", doc.ID, "error", rerr)
		}
		return IngestResult{}, fmt.Errorf("saving document: %w", err)
	}
	res.Chunks = len(chunks)
	span.SetAttributes(attribute.Int("document.chunks", res.Chunks))

	if s.deps.Summarizer != nil {
		summary, err := s.deps.Summarizer.Summarize(text, s.deps.SummarySentences)
		if err != nil {
			s.log.Warn("summary failed", "document_id", doc.ID, "error", err)
		}
		res.Summary = summary
	}
	s.log.Info("document ingested", "subject_id", subjectID, "document_id", doc.ID, "chunks", res.Chunks)
	return res, nil
}

// RemoveDocument deletes a document's vectors, then its text.
func (s *RAGService) RemoveDocument(ctx context.Context, subjectID, documentID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "service.remove_document", trace.WithAttributes(
		attribute.String("subject.id", subjectID),
		attribute.String("document.id", documentID),
	))
	defer func() { endSpan(span, err) }()

	if err := s.deps.Index.Remove(ctx, subjectID, documentID); err != nil {
		return err
	}
	return s.deps.Documents.Delete(ctx, subjectID, documentID)
}

// Documents lists a subject's documents in upload order.
func (s *RAGService) Documents(ctx context.Context, subjectID string) ([]domain.Document, error) {
	return s.deps.Documents.List(ctx, subjectID)
}

// Ask answers question from the subject's notes. It always returns displayable text.
func (s *RAGService) Ask(ctx context.Context, subjectID, question string) string {
	ctx, span := s.tracer.Start(ctx, "service.ask", trace.WithAttributes(
		attribute.String("subject.id", subjectID),
	))
	defer span.End()

	contextText := s.deps.Context.Build(ctx, subjectID, question)
	span.SetAttributes(attribute.Int("context.runes", len([]rune(contextText))))
	return s.deps.Answers.Answer(ctx, contextText, question)
}

// GenerateQuiz builds a quiz from every document of the subject and stores it.
func (s *RAGService) GenerateQuiz(ctx context.Context, subjectID string) (quiz domain.Quiz, err error) {
	ctx, span := s.tracer.Start(ctx, "service.generate_quiz", trace.WithAttributes(
		attribute.String("subject.id", subjectID),
	))
	defer func() { endSpan(span, err) }()

	docs, err := s.deps.Documents.List(ctx, subjectID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("listing documents: %w", err)
	}
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	quiz, err = s.deps.Quizzes.Generate(ctx, subjectID, strings.Join(texts, "\n\n"))
	if err != nil {
		return domain.Quiz{}, err
	}
	span.SetAttributes(
		attribute.String("quiz.id", quiz.ID),
		attribute.Int("quiz.questions", len(quiz.Questions)),
	)
	return quiz, nil
}

// CurrentQuiz returns the newest quiz of the subject, or store.ErrQuizNotFound.
func (s *RAGService) CurrentQuiz(ctx context.Context, subjectID string) (domain.Quiz, error) {
	return s.deps.QuizStore.Current(ctx, subjectID)
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
