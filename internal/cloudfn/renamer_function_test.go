package cloudfn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/checklistrenamer/internal/gcp"
	"github.com/Lllllllleong/checklistrenamer/internal/models"
	"github.com/Lllllllleong/checklistrenamer/internal/services"
)

func TestShouldProcess(t *testing.T) {
	cases := []struct {
		name  string
		event GCSEvent
		want  bool
	}{
		{"pdf upload", GCSEvent{Bucket: "in", Name: "lote/checklist.PDF"}, true},
		{"zip upload", GCSEvent{Bucket: "in", Name: "lote.zip"}, true},
		{"other file", GCSEvent{Bucket: "in", Name: "notes.txt"}, false},
		{"folder marker", GCSEvent{Bucket: "in", Name: "lote/"}, false},
		{"own archive", GCSEvent{Bucket: "out", Name: "runs/abc/checklists_renomeados_2026-10-15.zip"}, false},
		{"runs prefix in other bucket", GCSEvent{Bucket: "in", Name: "runs/lote.zip"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldProcess(tc.event, "out"))
		})
	}
}

func TestHandoff(t *testing.T) {
	result := &services.BatchResult{
		RunID:      "run-1",
		Summary:    services.Summary{Total: 3, Succeeded: 2, Failed: 1},
		ArchiveURI: "gs://out/runs/run-1/a.zip",
		ReportURI:  "gs://out/runs/run-1/r.csv",
	}
	assert.Equal(t, models.BatchHandoff{
		RunID:      "run-1",
		SourceURI:  "gs://in/lote.zip",
		ArchiveURI: "gs://out/runs/run-1/a.zip",
		ReportURI:  "gs://out/runs/run-1/r.csv",
		Total:      3,
		Succeeded:  2,
		Failed:     1,
	}, Handoff(result, "gs://in/lote.zip"))
}

func TestFolderHandlesKeepsOnlyPDFs(t *testing.T) {
	objects := []gcp.ObjectInfo{
		{Name: "lote/a.pdf", Size: 10},
		{Name: "lote/leia-me.txt", Size: 3},
		{Name: "lote/B.PDF", Size: 20},
	}
	handles := FolderHandles(nil, "in", objects)
	if assert.Len(t, handles, 2) {
		assert.Equal(t, "a.pdf", handles[0].DisplayName())
		assert.Equal(t, int64(20), handles[1].Size)
		assert.Equal(t, gcp.ObjectSource{Bucket: "in", Object: "lote/B.PDF"}, handles[1].Source)
	}
}
