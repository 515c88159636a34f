package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// writeFile writes content to name inside a fresh temp dir and returns the path.
func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// ---------------------------------------------------------------------------
// Matchers
// ---------------------------------------------------------------------------

func TestFormatRow_KnownShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers []string
		cells   []string
		want    string
		ok      bool
	}{
		{
			name:    "fire station",
			headers: []string{"순번", "소방본부", "소방서", "주소", "전화번호", "팩스번호"},
			cells:   []string{"1", "서울", " 종로소방서 ", "서울 종로구 율곡로 1", "02-123-4567", ""},
			want:    "종로소방서의 주소는 서울 종로구 율곡로 1입니다. 전화번호는 02-123-4567입니다.",
			ok:      true,
		},
		{
			name:    "agency police",
			headers: []string{"기관유형", "기관유형별분류", "대표기관명", "전체기관명", "최하위기관명", "대표전화번호", "새우편번호", "도로명주소"},
			cells:   []string{"국가", "경찰서", "경찰청", "경찰청 서울청", "종로경찰서", "02-111-2222", "03000", "서울 종로구 1"},
			want:    "종로경찰서(경찰서)의 주소는 서울 종로구 1입니다. 대표 전화번호는 02-111-2222입니다.",
			ok:      true,
		},
		{
			name:    "agency irrelevant type",
			headers: []string{"기관유형", "기관유형별분류", "대표기관명", "전체기관명", "최하위기관명", "대표전화번호", "새우편번호", "도로명주소"},
			cells:   []string{"국가", "세무서", "국세청", "국세청", "종로세무서", "02-000-0000", "03000", "서울 종로구 2"},
			ok:      false,
		},
		{
			name:    "police station",
			headers: []string{"시도경찰청", "위치", "경찰서명칭", "경찰서주소"},
			cells:   []string{"서울청", "종로", "종로경찰서", "서울 종로구 3"},
			want:    "서울청 종로경찰서의 주소는 서울 종로구 3입니다.",
			ok:      true,
		},
		{
			name:    "police station without agency",
			headers: []string{"시도경찰청", "위치", "경찰서명칭", "경찰서주소"},
			cells:   []string{" ", "종로", "종로경찰서", "서울 종로구 3"},
			want:    "종로경찰서의 주소는 서울 종로구 3입니다.",
			ok:      true,
		},
		{
			name:    "police station without address",
			headers: []string{"시도경찰청", "위치", "경찰서명칭", "경찰서주소"},
			cells:   []string{"서울청", "종로", "종로경찰서", ""},
			ok:      false,
		},
		{
			name:    "short row",
			headers: []string{"시도경찰청", "위치", "경찰서명칭", "경찰서주소"},
			cells:   []string{"서울청", "종로"},
			ok:      false,
		},
		{
			name:    "blank required cell",
			headers: []string{"순번", "소방본부", "소방서", "주소", "전화번호"},
			cells:   []string{"1", "서울", "종로소방서", "  ", "02-123-4567"},
			ok:      false,
		},
		{
			name:    "unknown shape",
			headers: []string{"name", "address"},
			cells:   []string{"shelter", "somewhere"},
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FormatRow(DefaultMatchers(), tt.headers, tt.cells)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (sentence %q)", ok, tt.ok, got)
			}
			if got != tt.want {
				t.Errorf("sentence:\n got  %q\n want %q", got, tt.want)
			}
		})
	}
}

func TestFormatRow_FirstMatchWins(t *testing.T) {
	t.Parallel()

	declines := Matcher{
		Name:    "declines",
		Columns: []string{"a"},
		Format:  func(Row) (string, bool) { return "", false },
	}
	accepts := Matcher{
		Name:    "accepts",
		Columns: []string{"a"},
		Format:  func(r Row) (string, bool) { return "accepted " + r["a"], true },
	}

	if _, ok := FormatRow([]Matcher{declines, accepts}, []string{"a"}, []string{"x"}); ok {
		t.Error("a declining first match must not fall through to later matchers")
	}
	got, ok := FormatRow([]Matcher{accepts, declines}, []string{"a"}, []string{"x"})
	if !ok || got != "accepted x" {
		t.Errorf("got %q, %v", got, ok)
	}
}

// ---------------------------------------------------------------------------
// Tabular
// ---------------------------------------------------------------------------

func TestTabular_UTF8WithBOM(t *testing.T) {
	t.Parallel()

	csv := "\ufeff시도경찰청,위치,경찰서명칭,경찰서주소\n" +
		"서울청,종로,종로경찰서,서울 종로구 3\n" +
		"부산청,중구\n" +
		"부산청,중구,중부경찰서,부산 중구 4\n"
	path := writeFile(t, "police.csv", []byte(csv))

	got, err := Tabular{Logger: nil}.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := []string{
		"서울청 종로경찰서의 주소는 서울 종로구 3입니다.",
		"부산청 중부경찰서의 주소는 부산 중구 4입니다.",
	}
	if len(got) != len(want) {
		t.Fatalf("want %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTabular_EUCKREncoded(t *testing.T) {
	t.Parallel()

	utf := "순번,소방본부,소방서,주소,전화번호,팩스번호\n1,서울,종로소방서,서울 종로구 1,02-123-4567,\n"
	encoded, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(utf))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeFile(t, "fire.csv", encoded)

	got, err := Tabular{}.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 || got[0] != "종로소방서의 주소는 서울 종로구 1입니다. 전화번호는 02-123-4567입니다." {
		t.Errorf("unexpected sentences: %v", got)
	}
}

func TestTabular_TSV(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "police.tsv", []byte("시도경찰청\t위치\t경찰서명칭\t경찰서주소\n서울청\t종로\t종로경찰서\t서울 종로구 3\n"))
	got, err := Tabular{}.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("want 1 sentence, got %v", got)
	}
}

func TestTabular_EmptyFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "empty.csv", nil)
	got, err := Tabular{}.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want no sentences, got %v", got)
	}
}

func TestTabular_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Tabular{}.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("want *ExtractionError, got %T: %v", err, err)
	}
}

// ---------------------------------------------------------------------------
// Prose
// ---------------------------------------------------------------------------

func TestProse_PlainText(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "manual.txt", []byte("Flood guide.\n\nMove to high ground."))
	got, err := Prose{}.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Flood guide.\n\nMove to high ground." {
		t.Errorf("got %q", got)
	}
}

func TestProse_PDFPagesJoinedInOrder(t *testing.T) {
	t.Parallel()

	got, err := Prose{}.Extract(context.Background(), filepath.Join("testdata", "two_pages.pdf"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// Each text object starts on a new line; nothing is added between pages.
	want := "\nFlood shelters open at level three.\nBring water for three days."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestProse_EncryptedPDF(t *testing.T) {
	t.Parallel()

	path := filepath.Join("testdata", "encrypted.pdf")
	text, err := Prose{}.Extract(context.Background(), path)
	if text != "" {
		t.Errorf("want empty text, got %q", text)
	}
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("want *ExtractionError, got %T: %v", err, err)
	}
	if extractErr.Source != path {
		t.Errorf("Source = %q, want %q", extractErr.Source, path)
	}
	if !errors.Is(err, ErrEncrypted) {
		t.Errorf("want errors.Is(err, ErrEncrypted), got %v", err)
	}
}

func TestProse_ParserPanicBecomesError(t *testing.T) {
	t.Parallel()

	// A valid header followed only by line breaks makes the PDF reader
	// index past the start of its trailer buffer.
	content := append([]byte("%PDF-1.4\n"), []byte(strings.Repeat("\n", 200))...)
	path := writeFile(t, "blank.pdf", content)

	text, err := Prose{}.Extract(context.Background(), path)
	if text != "" {
		t.Errorf("want empty text, got %q", text)
	}
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("want *ExtractionError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "malformed pdf") {
		t.Errorf("want recovered parser panic, got %v", err)
	}
}

func TestProse_Failures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(garbage, []byte("this is not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		is   error
	}{
		{"missing file", filepath.Join(dir, "missing.pdf"), nil},
		{"not a pdf", garbage, nil},
		{"unsupported extension", filepath.Join(dir, "slides.pptx"), ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			text, err := Prose{}.Extract(context.Background(), tt.path)
			if text != "" {
				t.Errorf("want empty text on failure, got %q", text)
			}
			var extractErr *ExtractionError
			if !errors.As(err, &extractErr) {
				t.Fatalf("want *ExtractionError, got %T: %v", err, err)
			}
			if extractErr.Source != tt.path {
				t.Errorf("Source = %q, want %q", extractErr.Source, tt.path)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("want errors.Is(err, %v), got %v", tt.is, err)
			}
		})
	}
}

func TestProse_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Prose{}.Extract(ctx, "whatever.txt")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}
