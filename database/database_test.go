package database

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SirZenith/gimme/database/data_model"
)

func TestDownloadRecord(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(filepath.Join(dir, "gimme.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer Close(db)

	dest := filepath.Join(dir, "a.jpg")
	if IsDownloaded(db, "http://x.com/a.jpg") {
		t.Fatalf("unrecorded uri reported as downloaded")
	}

	if err := SaveRecord(db, "http://x.com/a.jpg", "http://x.com/t/a.jpg", dest, false); err != nil {
		t.Fatal(err)
	}
	if IsDownloaded(db, "http://x.com/a.jpg") {
		t.Errorf("record without file reported as downloaded")
	}

	if err := os.WriteFile(dest, []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !IsDownloaded(db, "http://x.com/a.jpg") {
		t.Errorf("saved file not reported as downloaded")
	}

	if err := SaveRecord(db, "http://x.com/a.jpg", "http://x.com/t/a.jpg", dest, true); err != nil {
		t.Fatal(err)
	}
	if IsDownloaded(db, "http://x.com/a.jpg") {
		t.Errorf("failed download reported as downloaded")
	}

	var count int64
	db.Model(&data_model.DownloadRecord{}).Count(&count)
	if count != 1 {
		t.Errorf("output:\n\t%d\nwant:\n\t%d", count, 1)
	}
}

func TestExportTable(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "gimme.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer Close(db)

	for _, entry := range []*data_model.HarvestEntry{
		{ThumbURI: "http://x.com/t1.jpg", TargetURI: "http://x.com/1.jpg"},
		{ThumbURI: "http://x.com/t2.jpg", TargetURI: "http://x.com/2.jpg"},
	} {
		if err := entry.Upsert(db); err != nil {
			t.Fatal(err)
		}
	}

	buf := &bytes.Buffer{}
	if err := ExportTable(db, &data_model.HarvestEntry{}, buf); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output:\n\t%v\nwant:\n\t3 lines", lines)
	}

	if !strings.Contains(lines[0], "thumb_uri") || !strings.Contains(lines[0], "target_uri") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "http://x.com/1.jpg") {
		t.Errorf("unexpected row: %s", lines[1])
	}
}
