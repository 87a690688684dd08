package cx

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	artifactTitle  = "# Codebase Export"
	entrySeparator = "------"

	generatedAtLayout = "2006-01-02T15:04:05.000Z"
	timestampLayout   = "2006-01-02_15-04-05"
)

// SortFiles orders files by relative path using locale-aware collation.
// Paths that collate equal fall back to byte order so the result is total.
func SortFiles(files []CollectedFile) {
	c := collate.New(language.Und)
	slices.SortStableFunc(files, func(a, b CollectedFile) int {
		if r := c.CompareString(a.Path, b.Path); r != 0 {
			return r
		}
		return strings.Compare(a.Path, b.Path)
	})
}

// RenderArtifact serializes files, which must already be sorted, into the
// export text format.
func RenderArtifact(files []CollectedFile, generatedAt time.Time) []byte {
	size := 128
	for _, f := range files {
		size += len(f.Path) + len(f.Content) + 20
	}

	var buf bytes.Buffer
	buf.Grow(size)
	buf.WriteString(artifactTitle + "\n\n")
	buf.WriteString("Generated on: " + generatedAt.UTC().Format(generatedAtLayout) + "\n")
	buf.WriteString("Total files: " + strconv.Itoa(len(files)) + "\n\n")
	buf.WriteString("---\n\n")
	for _, f := range files {
		buf.WriteString("Path: " + f.Path + "\n")
		buf.WriteString(f.Content)
		buf.WriteString("\n" + entrySeparator + "\n\n")
	}
	return buf.Bytes()
}

// TimestampToken formats t in UTC at second resolution with filename-safe
// separators, e.g. 2025-01-02_03-04-05.
func TimestampToken(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// TimestampedFileName inserts "_<token>" between the base name and its final
// extension: notes.md becomes notes_<token>.md. A name without a dot gets no
// extension.
func TimestampedFileName(baseFileName string, t time.Time) string {
	token := TimestampToken(t)
	i := strings.LastIndexByte(baseFileName, '.')
	if i < 0 {
		return baseFileName + "_" + token
	}
	return baseFileName[:i] + "_" + token + baseFileName[i:]
}

// ReadErrorPlaceholder is the content recorded for a file that could not be read.
func ReadErrorPlaceholder(err error) string {
	return fmt.Sprintf("[Error reading file: %v]", err)
}

// Artifact is a rendered export ready to be persisted.
type Artifact struct {
	Data        []byte
	FilesCount  int
	GeneratedAt time.Time
}

// ArtifactResult describes a persisted artifact.
type ArtifactResult struct {
	OutputPath  string
	FileName    string
	FilesCount  int
	Bytes       int64
	Timestamp   string
	GeneratedAt time.Time
}

// ArtifactWriter sorts, serializes and persists collected files.
type ArtifactWriter struct {
	sink      Sink
	encryptor Encryptor
	clock     Clock
	logger    Logger
}

// NewArtifactWriter creates an ArtifactWriter. encryptor may be nil, in
// which case artifacts are written as plain text.
func NewArtifactWriter(sink Sink, encryptor Encryptor, clock Clock, logger Logger) *ArtifactWriter {
	return &ArtifactWriter{
		sink:      sink,
		encryptor: encryptor,
		clock:     clock,
		logger:    logger,
	}
}

// Prepare sorts files in place and renders them.
func (w *ArtifactWriter) Prepare(files []CollectedFile) *Artifact {
	SortFiles(files)
	now := w.clock.Now()
	return &Artifact{
		Data:        RenderArtifact(files, now),
		FilesCount:  len(files),
		GeneratedAt: now,
	}
}

// Persist writes a prepared artifact under destinationDir using a
// timestamped variant of baseFileName.
func (w *ArtifactWriter) Persist(ctx context.Context, artifact *Artifact, destinationDir, baseFileName string) (*ArtifactResult, error) {
	name := TimestampedFileName(baseFileName, artifact.GeneratedAt)
	data := artifact.Data

	if w.encryptor != nil {
		var enc bytes.Buffer
		if err := w.encryptor.Encrypt(bytes.NewReader(data), &enc); err != nil {
			return nil, fmt.Errorf("%w: encrypting artifact: %v", ErrWrite, err)
		}
		data = enc.Bytes()
		name += w.encryptor.Extension()
	}

	outputPath, err := w.sink.PutArtifact(ctx, destinationDir, name, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	w.logger.Info("artifact written", "path", outputPath, "files", artifact.FilesCount, "bytes", len(data))
	return &ArtifactResult{
		OutputPath:  outputPath,
		FileName:    name,
		FilesCount:  artifact.FilesCount,
		Bytes:       int64(len(data)),
		Timestamp:   TimestampToken(artifact.GeneratedAt),
		GeneratedAt: artifact.GeneratedAt,
	}, nil
}

// Write prepares and persists files in one step.
func (w *ArtifactWriter) Write(ctx context.Context, files []CollectedFile, destinationDir, baseFileName string) (*ArtifactResult, error) {
	return w.Persist(ctx, w.Prepare(files), destinationDir, baseFileName)
}
