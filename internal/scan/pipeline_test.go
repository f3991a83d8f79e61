package scan

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/ticketscan/internal/assemble"
	"github.com/fieldops/ticketscan/internal/enhance"
	"github.com/fieldops/ticketscan/internal/layout"
	"github.com/fieldops/ticketscan/internal/recognize"
	"github.com/fieldops/ticketscan/internal/ticket"
)

type fakeStore struct {
	mu      sync.Mutex
	records []ticket.Record
	numbers []string
}

func (s *fakeStore) InsertTicket(_ context.Context, r *ticket.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = int64(len(s.records) + 1)
	s.records = append(s.records, *r)
	if r.TicketNumber != nil {
		s.numbers = append(s.numbers, *r.TicketNumber)
	}
	return nil
}

func (s *fakeStore) TicketNumberExists(_ context.Context, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.numbers {
		if strings.EqualFold(n, number) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) TicketNumbersWithBase(_ context.Context, base string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, n := range s.numbers {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(base)) {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	processed  []string
	duplicates [][2]string
}

func (n *fakeNotifier) TicketProcessed(_, _ int64, number string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.processed = append(n.processed, number)
}

func (n *fakeNotifier) DuplicateTicket(_, _ int64, detected, assigned string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.duplicates = append(n.duplicates, [2]string{detected, assigned})
}

type fixedModel struct {
	text string
}

func (m *fixedModel) RecognizeBatch(_ context.Context, crops []image.Image) ([]string, error) {
	out := make([]string, len(crops))
	for i := range out {
		out[i] = m.text
	}
	return out, nil
}

func (m *fixedModel) Close() error { return nil }

func whitePage(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

// tablePage draws a 3x3 ruled table with blank cells.
func tablePage() *image.Gray {
	g := whitePage(600, 600)
	for _, y := range []int{50, 183, 316, 447} {
		for dy := 0; dy < 3; dy++ {
			for x := 50; x < 550; x++ {
				g.Pix[(y+dy)*g.Stride+x] = 0
			}
		}
	}
	for _, x := range []int{50, 216, 383, 547} {
		for dx := 0; dx < 3; dx++ {
			for y := 50; y < 450; y++ {
				g.Pix[y*g.Stride+x+dx] = 0
			}
		}
	}
	return g
}

// textPage draws one solid word-sized blob, short enough to survive
// ruling-line removal.
func textPage() *image.Gray {
	g := whitePage(600, 600)
	for y := 50; y < 70; y++ {
		for x := 50; x < 110; x++ {
			g.Pix[y*g.Stride+x] = 0
		}
	}
	return g
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, store *fakeStore, notifier *fakeNotifier, modelText string) *Pipeline {
	t.Helper()
	cfg := Config{
		Table:    layout.DefaultTableConfig(),
		Segment:  layout.DefaultSegmentConfig(),
		Enhance:  enhance.DefaultConfig(),
		MediaDir: t.TempDir(),
	}
	rec := recognize.NewBatchRecognizer(&fixedModel{text: modelText}, nil)
	return NewPipeline(cfg, layout.NewMorphDetector(cfg.Table), rec, store, notifier, nil)
}

func TestProcessTwoPageSubmission(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	p := newTestPipeline(t, store, notifier, "Ticket #: 42")

	record, err := p.Process(context.Background(), Submission{
		ForemanID: 7,
		Timesheet: ticket.Timesheet{ID: 3, JobPhaseID: 5},
		Files: []File{
			{Name: "haul_page_1.png", Data: encodePNG(t, tablePage())},
			{Name: "haul_page_2.png", Data: encodePNG(t, textPage())},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, record.TicketNumber)
	assert.Equal(t, "42", *record.TicketNumber)

	// The blank table keeps its 3x3 shape with empty cells.
	require.Len(t, record.TableData, 3)
	for _, row := range record.TableData {
		assert.Equal(t, []string{"", "", ""}, row)
	}

	assert.Contains(t, record.RawText, "--- PAGE 1 ---")
	assert.Contains(t, record.RawText, "--- PAGE 2 ---")
	assert.Contains(t, record.RawText, "Ticket #: 42")

	assert.FileExists(t, record.ImagePath)
	assert.Equal(t, []string{"42"}, notifier.processed)
	assert.Empty(t, notifier.duplicates)
}

func TestProcessDuplicateTicketNumber(t *testing.T) {
	store := &fakeStore{numbers: []string{"42"}}
	notifier := &fakeNotifier{}
	p := newTestPipeline(t, store, notifier, "Ticket #: 42")

	record, err := p.Process(context.Background(), Submission{
		ForemanID: 7,
		Files:     []File{{Name: "t.png", Data: encodePNG(t, textPage())}},
	})
	require.NoError(t, err)

	require.NotNil(t, record.TicketNumber)
	assert.Equal(t, "42.1", *record.TicketNumber)
	require.Len(t, notifier.duplicates, 1)
	assert.Equal(t, [2]string{"42", "42.1"}, notifier.duplicates[0])
	assert.Empty(t, notifier.processed)
}

func TestProcessSkipsUndecodablePages(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store, &fakeNotifier{}, "Ticket #: 9")

	record, err := p.Process(context.Background(), Submission{
		ForemanID: 7,
		Files: []File{
			{Name: "bad.png", Data: []byte("not an image")},
			{Name: "good.png", Data: encodePNG(t, textPage())},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, record.TicketNumber)
	assert.Equal(t, "9", *record.TicketNumber)

	// The surviving page keeps its uploaded position.
	assert.Contains(t, record.RawText, "--- PAGE 2 ---")
	assert.NotContains(t, record.RawText, "--- PAGE 1 ---")
}

func TestProcessAllPagesUndecodable(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store, &fakeNotifier{}, "")

	_, err := p.Process(context.Background(), Submission{
		ForemanID: 7,
		Files:     []File{{Name: "a", Data: []byte("junk")}, {Name: "b", Data: nil}},
	})

	assert.ErrorIs(t, err, ErrNoValidPages)
	assert.Empty(t, store.records)
}

func TestProcessBlankPagesStillPersist(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(t, store, &fakeNotifier{}, "")

	record, err := p.Process(context.Background(), Submission{
		ForemanID: 7,
		Files:     []File{{Name: "blank.png", Data: encodePNG(t, whitePage(400, 400))}},
	})
	require.NoError(t, err)

	assert.Equal(t, assemble.EmptyDocumentText, record.RawText)
	assert.Nil(t, record.TicketNumber)
	require.Len(t, store.records, 1)
}
