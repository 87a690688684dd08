package cx_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"cx-go/internal/cx"
	"cx-go/internal/testutil"
)

var testNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type failingSink struct{ err error }

func (s failingSink) PutArtifact(context.Context, string, string, io.Reader, int64) (string, error) {
	return "", s.err
}

func (s failingSink) ValidateSetup() error { return nil }

func paths(files []cx.CollectedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestRenderArtifact(t *testing.T) {
	t.Run("exact layout", func(t *testing.T) {
		files := []cx.CollectedFile{
			{Path: "a.ts", Content: "export const a = 1;"},
			{Path: "src/b.go", Content: "package b\n"},
		}
		want := "# Codebase Export\n\n" +
			"Generated on: 2025-01-02T03:04:05.000Z\n" +
			"Total files: 2\n\n" +
			"---\n\n" +
			"Path: a.ts\nexport const a = 1;\n------\n\n" +
			"Path: src/b.go\npackage b\n\n------\n\n"

		if got := string(cx.RenderArtifact(files, testNow)); got != want {
			t.Errorf("RenderArtifact() =\n%q\nwant\n%q", got, want)
		}
	})

	t.Run("empty tree", func(t *testing.T) {
		got := string(cx.RenderArtifact(nil, testNow))
		want := "# Codebase Export\n\nGenerated on: 2025-01-02T03:04:05.000Z\nTotal files: 0\n\n---\n\n"
		if got != want {
			t.Errorf("RenderArtifact(nil) = %q, want %q", got, want)
		}
	})

	t.Run("milliseconds in UTC", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 12, 0, 0, 123_456_789, time.FixedZone("X", 2*3600))
		got := string(cx.RenderArtifact(nil, at))
		if !strings.Contains(got, "Generated on: 2025-06-01T10:00:00.123Z\n") {
			t.Errorf("unexpected header: %q", got)
		}
	})
}

func TestSortFiles(t *testing.T) {
	t.Run("collates case-insensitively", func(t *testing.T) {
		files := []cx.CollectedFile{{Path: "c.md"}, {Path: "B.md"}, {Path: "a.md"}}
		cx.SortFiles(files)
		if want := []string{"a.md", "B.md", "c.md"}; !slices.Equal(paths(files), want) {
			t.Errorf("SortFiles() = %v, want %v", paths(files), want)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		files := []cx.CollectedFile{
			{Path: "src/z.ts"}, {Path: "README.md"}, {Path: "src/a.ts"}, {Path: "docs/guide.md"},
		}
		cx.SortFiles(files)
		first := paths(files)
		cx.SortFiles(files)
		if !slices.Equal(paths(files), first) {
			t.Errorf("second sort changed order: %v -> %v", first, paths(files))
		}
	})
}

func TestTimestampedFileName(t *testing.T) {
	tests := map[string]string{
		"out.md":         "out_2025-01-02_03-04-05.md",
		"README":         "README_2025-01-02_03-04-05",
		"export.tar.txt": "export.tar_2025-01-02_03-04-05.txt",
	}
	for in, want := range tests {
		if got := cx.TimestampedFileName(in, testNow); got != want {
			t.Errorf("TimestampedFileName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := cx.TimestampToken(testNow); got != "2025-01-02_03-04-05" {
		t.Errorf("TimestampToken() = %q", got)
	}
}

func TestReadErrorPlaceholder(t *testing.T) {
	got := cx.ReadErrorPlaceholder(errors.New("permission denied"))
	if got != "[Error reading file: permission denied]" {
		t.Errorf("ReadErrorPlaceholder() = %q", got)
	}
}

func TestArtifactWriter_Write(t *testing.T) {
	ctx := context.Background()

	t.Run("writes timestamped artifact", func(t *testing.T) {
		sink := testutil.NewTestSink()
		w := cx.NewArtifactWriter(sink, nil, testutil.FixedClock(), cx.NewNopLogger())

		files := []cx.CollectedFile{{Path: "b.ts", Content: "b"}, {Path: "a.ts", Content: "a"}}
		result, err := w.Write(ctx, files, "exports", "out.md")
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}

		if result.OutputPath != "exports/out_2025-01-02_03-04-05.md" {
			t.Errorf("OutputPath = %q", result.OutputPath)
		}
		if result.FilesCount != 2 || result.Timestamp != "2025-01-02_03-04-05" {
			t.Errorf("result = %+v", result)
		}
		data, ok := sink.Get(result.OutputPath)
		if !ok {
			t.Fatalf("artifact not stored; keys = %v", sink.Keys())
		}
		if int64(len(data)) != result.Bytes {
			t.Errorf("Bytes = %d, stored %d", result.Bytes, len(data))
		}
		if !bytes.Equal(data, cx.RenderArtifact(files, testNow)) {
			t.Errorf("stored artifact differs from render:\n%s", data)
		}
		if strings.Index(string(data), "Path: a.ts") > strings.Index(string(data), "Path: b.ts") {
			t.Error("files not sorted in artifact")
		}
	})

	t.Run("encrypts when configured", func(t *testing.T) {
		sink := testutil.NewTestSink()
		w := cx.NewArtifactWriter(sink, testutil.NewTestEncryptor(), testutil.FixedClock(), cx.NewNopLogger())

		result, err := w.Write(ctx, []cx.CollectedFile{{Path: "a.ts", Content: "secret"}}, "exports", "out.md")
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if result.FileName != "out_2025-01-02_03-04-05.md.enc" {
			t.Errorf("FileName = %q", result.FileName)
		}
		data, _ := sink.Get(result.OutputPath)
		if !bytes.HasPrefix(data, []byte("CXENC")) {
			t.Error("artifact was not encrypted")
		}
	})

	t.Run("sink failure is a write error", func(t *testing.T) {
		w := cx.NewArtifactWriter(failingSink{err: errors.New("disk full")}, nil, testutil.FixedClock(), cx.NewNopLogger())

		_, err := w.Write(ctx, nil, "exports", "out.md")
		if !errors.Is(err, cx.ErrWrite) {
			t.Fatalf("expected ErrWrite, got %v", err)
		}
		if !strings.Contains(err.Error(), "disk full") {
			t.Errorf("error should carry the cause: %v", err)
		}
	})
}
