package pdftext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/checklistrenamer/internal/models"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestPagesReadsTextInPageOrder(t *testing.T) {
	pages, err := New(Config{}, nil).Pages(context.Background(), readFixture(t, "checklist_serial_page2.pdf"))
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Contains(t, pages[0], "Checklist de inspeção")
	assert.Contains(t, pages[0], "bomba centrífuga")
	assert.NotContains(t, pages[0], "1A234567B")
	assert.Contains(t, pages[1], "Número de Série: 1A234567B")
}

func TestPagesHonoursPageLimit(t *testing.T) {
	pages, err := New(Config{MaxPages: 1}, nil).Pages(context.Background(), readFixture(t, "checklist_serial_page2.pdf"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.True(t, strings.HasPrefix(pages[0], "Checklist"))
}

func TestPagesReportsPasswordProtected(t *testing.T) {
	_, err := New(Config{}, nil).Pages(context.Background(), readFixture(t, "checklist_encrypted.pdf"))
	require.Error(t, err)
	assert.Equal(t, models.KindPasswordProtected, models.KindOf(err))
}

func TestPagesRejectsEmptyInput(t *testing.T) {
	_, err := New(Config{}, nil).Pages(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, models.KindInvalidInput, models.KindOf(err))
}

func TestPagesClassifiesGarbageAsCorrupt(t *testing.T) {
	_, err := New(Config{}, nil).Pages(context.Background(), []byte("this is not a pdf at all"))
	require.Error(t, err)
	assert.Equal(t, models.KindCorruptDocument, models.KindOf(err))
}

func TestPagesClassifiesTruncatedHeaderAsCorrupt(t *testing.T) {
	_, err := New(Config{}, nil).Pages(context.Background(), []byte("%PDF-1.7\n1 0 obj\n<<"))
	require.Error(t, err)
	assert.Equal(t, models.KindCorruptDocument, models.KindOf(err))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want models.ErrorKind
	}{
		{pdf.ErrInvalidPassword, models.KindPasswordProtected},
		{fmt.Errorf("read: %w", pdf.ErrInvalidPassword), models.KindPasswordProtected},
		{errors.New("pdfcpu: please provide the correct password"), models.KindPasswordProtected},
		{errors.New("unsupported Encrypt dictionary"), models.KindPasswordProtected},
		{errors.New("malformed xref table"), models.KindCorruptDocument},
		{context.DeadlineExceeded, models.KindIOFailure},
		{models.NewDocumentError(models.KindIOFailure, errors.New("short read")), models.KindIOFailure},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, models.KindOf(classify(tc.err)), tc.err.Error())
	}
	assert.NoError(t, classify(nil))
}

func TestTextFunc(t *testing.T) {
	fn := TextFunc(func(_ context.Context, data []byte) ([]string, error) {
		return []string{string(data)}, nil
	})
	pages, err := fn.Pages(context.Background(), []byte("1A234567B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1A234567B"}, pages)
}
